package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	mw "github.com/Harshitk-cp/evotier/internal/api/middleware"
	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/service"
	"github.com/Harshitk-cp/evotier/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPriceLimit    = 200
	maxPriceLimit        = 5000
	defaultDecisionLimit = 50
	maxDecisionLimit     = 500
)

type SelectionHandler struct {
	manager   *service.SharedManager
	decisions domain.DecisionStore
	prices    domain.PriceSeriesSource
	logger    *zap.Logger
}

// NewSelectionHandler builds the selection endpoints. prices may be nil, in
// which case requests naming a symbol are rejected.
func NewSelectionHandler(manager *service.SharedManager, decisions domain.DecisionStore, prices domain.PriceSeriesSource, logger *zap.Logger) *SelectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SelectionHandler{manager: manager, decisions: decisions, prices: prices, logger: logger}
}

type selectRequest struct {
	Strategy     *domain.StrategySummary `json:"strategy,omitempty"`
	Factors      []domain.Factor         `json:"factors,omitempty"`
	Prices       []float64               `json:"prices,omitempty"`
	Symbol       string                  `json:"symbol,omitempty"`
	PriceLimit   int                     `json:"price_limit,omitempty"`
	Intent       string                  `json:"intent"`
	OverrideTier *int                    `json:"override_tier,omitempty"`
	Config       map[string]any          `json:"config,omitempty"`
}

func (h *SelectionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Intent == "" {
		writeError(w, http.StatusBadRequest, "intent is required")
		return
	}

	sel := service.SelectionRequest{
		Strategy: req.Strategy,
		Intent:   domain.MutationIntent(req.Intent),
		Config:   req.Config,
	}

	// A factor list takes precedence over a precomputed summary
	if len(req.Factors) > 0 {
		strategyID := ""
		if req.Strategy != nil {
			strategyID = req.Strategy.StrategyID
		}
		summary, err := domain.SummarizeFactors(strategyID, req.Factors)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sel.Strategy = summary
	}

	if req.OverrideTier != nil {
		tier, err := domain.ParseTier(*req.OverrideTier)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sel.Override = &tier
	}

	switch {
	case len(req.Prices) > 0:
		sel.Prices = &domain.PriceSeries{Symbol: req.Symbol, Close: req.Prices}
	case req.Symbol != "":
		if h.prices == nil {
			writeError(w, http.StatusBadRequest, "no price source configured")
			return
		}
		limit := req.PriceLimit
		if limit <= 0 {
			limit = defaultPriceLimit
		}
		series, err := h.prices.CloseSeries(r.Context(), req.Symbol, min(limit, maxPriceLimit))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no prices for symbol")
				return
			}
			mw.RequestLogger(r.Context(), h.logger).Error("failed to load prices", zap.String("symbol", req.Symbol), zap.Error(err))
			writeError(w, http.StatusBadGateway, "failed to load prices")
			return
		}
		sel.Prices = series
	}

	plan, err := h.manager.SelectMutationTier(sel)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOverrideDisabled):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrInvalidTier),
			errors.Is(err, service.ErrInvalidStrategySummary):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to select tier")
		}
		return
	}

	if err := h.decisions.Create(r.Context(), domain.NewDecisionRecord(plan)); err != nil {
		mw.RequestLogger(r.Context(), h.logger).Error("failed to record decision", zap.String("plan_id", plan.ID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record decision")
		return
	}

	writeJSON(w, http.StatusCreated, plan)
}

type outcomeRequest struct {
	PlanID       string   `json:"plan_id"`
	Success      *bool    `json:"success"`
	FitnessDelta *float64 `json:"fitness_delta,omitempty"`
}

type outcomeResponse struct {
	PlanID     uuid.UUID             `json:"plan_id"`
	Tier       domain.Tier           `json:"tier"`
	Success    bool                  `json:"success"`
	Thresholds domain.ThresholdState `json:"thresholds"`
}

// RecordOutcome reports the result of a previously issued plan.
func (h *SelectionHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan_id")
		return
	}
	if req.Success == nil {
		writeError(w, http.StatusBadRequest, "success is required")
		return
	}

	record, err := h.decisions.GetByID(r.Context(), planID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "plan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load plan")
		return
	}
	if record.Resolved() {
		writeError(w, http.StatusConflict, "outcome already recorded")
		return
	}

	if err := h.decisions.Resolve(r.Context(), planID, *req.Success, req.FitnessDelta); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "outcome already recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record outcome")
		return
	}

	metrics := &domain.OutcomeMetrics{FitnessDelta: req.FitnessDelta}
	if err := h.manager.RecordMutationResult(r.Context(), record.Plan(), *req.Success, metrics); err != nil {
		mw.RequestLogger(r.Context(), h.logger).Error("failed to apply outcome", zap.String("plan_id", planID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to apply outcome")
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse{
		PlanID:     planID,
		Tier:       record.Tier,
		Success:    *req.Success,
		Thresholds: h.manager.Thresholds(),
	})
}

type listDecisionsResponse struct {
	Decisions []domain.DecisionRecord `json:"decisions"`
	Count     int                     `json:"count"`
}

func (h *SelectionHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultDecisionLimit, maxDecisionLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	decisions, err := h.decisions.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	if decisions == nil {
		decisions = []domain.DecisionRecord{}
	}

	writeJSON(w, http.StatusOK, listDecisionsResponse{Decisions: decisions, Count: len(decisions)})
}
