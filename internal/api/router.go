package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/Harshitk-cp/evotier/internal/api/handlers"
	mw "github.com/Harshitk-cp/evotier/internal/api/middleware"
	"github.com/Harshitk-cp/evotier/internal/buildconfig"
	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	healthCheckTimeout    = 2 * time.Second
	rateLimitIdleTimeout  = 10 * time.Minute
	defaultRateLimitRPS   = 100
	defaultRateLimitBurst = 20
)

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP surface is built from. Prices,
// Snapshots and Checks are optional.
type Deps struct {
	Manager   *service.SharedManager
	Decisions domain.DecisionStore
	Prices    domain.PriceSeriesSource
	Snapshots *service.SnapshotService
	Checks    map[string]Pinger

	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Snapshots *service.SnapshotService

	manager     *service.SharedManager
	rateLimiter *mw.RateLimiter
	metrics     mw.Metrics
	startTime   time.Time
	stopCh      chan struct{}
}

func NewApp(deps Deps, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.RateLimitRPS <= 0 {
		deps.RateLimitRPS = defaultRateLimitRPS
	}
	if deps.RateLimitBurst <= 0 {
		deps.RateLimitBurst = defaultRateLimitBurst
	}

	selectionHandler := handlers.NewSelectionHandler(deps.Manager, deps.Decisions, deps.Prices, logger)
	tierHandler := handlers.NewTierHandler(deps.Manager)

	r := chi.NewRouter()
	app := &App{
		Router:      r,
		Snapshots:   deps.Snapshots,
		manager:     deps.Manager,
		rateLimiter: mw.NewRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst),
		startTime:   time.Now(),
		stopCh:      make(chan struct{}),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(app.rateLimiter.Middleware)

	// Health, metrics and version (no auth)
	r.Get("/health", healthHandler(deps.Checks))
	r.Get("/metrics", app.metricsHandler())
	r.Get("/version", versionHandler)

	r.Route("/v1", func(r chi.Router) {
		if deps.APIKey != "" {
			r.Use(mw.APIKeyAuth(deps.APIKey))
		} else {
			logger.Warn("API_KEY not set, /v1 routes are unauthenticated")
		}

		r.Post("/selections", selectionHandler.Select)
		r.Post("/outcomes", selectionHandler.RecordOutcome)
		r.Get("/decisions", selectionHandler.ListDecisions)

		r.Get("/recommendations", tierHandler.GetRecommendations)
		r.Get("/state", tierHandler.GetState)
		r.Put("/thresholds", tierHandler.SetThresholds)
		r.Get("/distribution", tierHandler.GetDistribution)
		r.Delete("/learning", tierHandler.ResetLearning)
	})

	return app
}

// Start launches background work: rate limiter eviction and, if configured,
// the snapshot loop.
func (app *App) Start() {
	go app.rateLimiter.RunCleanup(rateLimitIdleTimeout, app.stopCh)
	if app.Snapshots != nil {
		app.Snapshots.Start()
	}
}

func (app *App) Stop() {
	close(app.stopCh)
	if app.Snapshots != nil {
		app.Snapshots.Stop()
	}
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		failures := make(map[string]string)
		for name, p := range checks {
			if err := p.Ping(ctx); err != nil {
				failures[name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "errors": failures})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(buildconfig.VersionInfo())
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		thresholds := app.manager.Thresholds()

		response := map[string]any{
			"uptime_seconds":     uptime.Seconds(),
			"uptime_human":       uptime.Round(time.Second).String(),
			"request_count":      app.metrics.Requests.Load(),
			"client_error_count": app.metrics.ClientErrors.Load(),
			"server_error_count": app.metrics.ServerErrors.Load(),
			"tracked_clients":    app.rateLimiter.Len(),
			"goroutines":         runtime.NumGoroutine(),
			"tier1_threshold":    thresholds.Tier1,
			"tier2_threshold":    thresholds.Tier2,
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}
