package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/evotier/internal/api"
	"github.com/Harshitk-cp/evotier/internal/config"
	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/service"
	"github.com/Harshitk-cp/evotier/internal/store"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("invalid LOG_LEVEL, using info", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	checks := make(map[string]api.Pinger)

	var (
		stateStore domain.LearnerStateStore
		decisions  domain.DecisionStore
		snapshots  domain.SnapshotStore
		coalescing *store.CoalescingStateStore
	)

	if dbURL := config.DatabaseURL(); dbURL != "" {
		pool, err := store.NewPool(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("connected to database")

		if err := store.Migrate(ctx, pool); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}

		coalescing = store.NewCoalescingStateStore(store.NewLearnerStateStore(pool, "default"), config.PersistTimeout(), logger)
		stateStore = coalescing
		decisions = store.NewDecisionStore(pool)
		snapshots = store.NewSnapshotStore(pool)
		checks["postgres"] = pool
	} else {
		logger.Warn("DATABASE_URL not set, decisions and snapshots are kept in memory")
		decisions = store.NewMemoryDecisionStore()
		snapshots = store.NewMemorySnapshotStore()

		if path := config.StateFile(); path != "" {
			coalescing = store.NewCoalescingStateStore(store.NewFileStateStore(path), config.PersistTimeout(), logger)
			stateStore = coalescing
			logger.Info("learner state file", zap.String("path", path))
		} else {
			stateStore = store.NewMemoryStateStore()
		}
	}

	var prices domain.PriceSeriesSource
	if chURL := config.ClickHouseURL(); chURL != "" {
		conn, err := store.NewClickHouseConn(ctx, chURL)
		if err != nil {
			logger.Fatal("failed to connect to clickhouse", zap.Error(err))
		}
		defer func() { _ = conn.Close() }()

		source, err := store.NewPriceSource(conn, config.ClickHousePriceTable())
		if err != nil {
			logger.Fatal("invalid price table", zap.Error(err))
		}
		prices = source
		checks["clickhouse"] = conn
		logger.Info("connected to clickhouse", zap.String("table", config.ClickHousePriceTable()))
	}

	mgr, err := service.NewTierSelectionManager(ctx, config.ManagerConfig(), stateStore, logger)
	if err != nil {
		logger.Fatal("invalid selection config", zap.Error(err))
	}
	shared := service.NewSharedManager(mgr)

	var snapshotSvc *service.SnapshotService
	if interval := config.SnapshotInterval(); interval > 0 {
		snapshotSvc = service.NewSnapshotService(shared, snapshots, logger)
		snapshotSvc.SetInterval(interval)
	}

	app := api.NewApp(api.Deps{
		Manager:        shared,
		Decisions:      decisions,
		Prices:         prices,
		Snapshots:      snapshotSvc,
		Checks:         checks,
		APIKey:         config.APIKey(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}, logger)

	// Start background services
	app.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop background services, then flush pending learner state
	app.Stop()
	if coalescing != nil {
		coalescing.Close()
	}

	logger.Info("server stopped")
}
