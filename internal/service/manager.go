package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"go.uber.org/zap"
)

type ManagerConfig struct {
	Weights          RiskWeights   `json:"weights"`
	Tier1Threshold   float64       `json:"tier1_threshold"`
	Tier2Threshold   float64       `json:"tier2_threshold"`
	AllowOverride    bool          `json:"allow_override"`
	EnableAdaptation bool          `json:"enable_adaptation"`
	Learner          LearnerConfig `json:"learner"`
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Weights:          DefaultRiskWeights(),
		Tier1Threshold:   DefaultTier1Threshold,
		Tier2Threshold:   DefaultTier2Threshold,
		AllowOverride:    true,
		EnableAdaptation: true,
		Learner:          DefaultLearnerConfig(),
	}
}

// SelectionRequest is the input to SelectMutationTier. Strategy and Prices
// are optional; a nil Strategy scores maximum strategy risk and nil Prices
// score neutral market risk.
type SelectionRequest struct {
	Strategy *domain.StrategySummary
	Prices   *domain.PriceSeries
	Intent   domain.MutationIntent
	Override *domain.Tier
	Config   map[string]any
}

// ManagerRecommendations extends the learner's recommendations with the
// current thresholds and the simulated tier distribution under them.
type ManagerRecommendations struct {
	domain.Recommendations
	Thresholds   domain.ThresholdState            `json:"thresholds"`
	Distribution map[domain.Tier]float64          `json:"tier_distribution"`
	TierStats    map[domain.Tier]domain.TierStats `json:"tier_stats"`
}

// ManagerState is a point-in-time export for persistence and debugging.
type ManagerState struct {
	Thresholds       domain.ThresholdState                  `json:"thresholds"`
	TierStats        map[domain.Tier]domain.TierPerformance `json:"tier_stats"`
	Recommendations  ManagerRecommendations                 `json:"recommendations"`
	ThresholdHistory []domain.ThresholdHistoryEntry         `json:"threshold_history"`
	Config           ManagerConfig                          `json:"config"`
	ExportedAt       time.Time                              `json:"exported_at"`
}

// TierSelectionManager wires risk assessment, routing and learning together.
// It owns the canonical threshold state and pushes every change into the
// router. It is not safe for concurrent use; see SharedManager.
type TierSelectionManager struct {
	cfg        ManagerConfig
	assessor   *RiskAssessor
	router     *TierRouter
	learner    *AdaptiveLearner
	thresholds domain.ThresholdState
	logger     *zap.Logger
}

func NewTierSelectionManager(ctx context.Context, cfg ManagerConfig, stateStore domain.LearnerStateStore, logger *zap.Logger) (*TierSelectionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	thresholds := domain.ThresholdState{Tier1: cfg.Tier1Threshold, Tier2: cfg.Tier2Threshold}
	if err := thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	assessor, err := NewRiskAssessor(cfg.Weights, logger)
	if err != nil {
		return nil, err
	}
	router, err := NewTierRouter(thresholds.Tier1, thresholds.Tier2, cfg.AllowOverride, logger)
	if err != nil {
		return nil, err
	}
	learner := NewAdaptiveLearner(ctx, cfg.Learner, stateStore, logger)
	cfg.Learner = learner.Config()

	return &TierSelectionManager{
		cfg:        cfg,
		assessor:   assessor,
		router:     router,
		learner:    learner,
		thresholds: thresholds,
		logger:     logger,
	}, nil
}

func (m *TierSelectionManager) Thresholds() domain.ThresholdState {
	return m.thresholds
}

func (m *TierSelectionManager) Config() ManagerConfig {
	return m.cfg
}

// Router exposes the router for diagnostics such as seeding the sampler.
func (m *TierSelectionManager) Router() *TierRouter {
	return m.router
}

func (m *TierSelectionManager) Learner() *AdaptiveLearner {
	return m.learner
}

// SelectMutationTier assesses risk for a proposed mutation and returns the
// routed plan. The risk breakdown is embedded in the plan config under
// "risk_metrics".
func (m *TierSelectionManager) SelectMutationTier(req SelectionRequest) (domain.MutationPlan, error) {
	stats := m.learner.HistoricalStats()

	metrics, err := m.assessor.AssessOverallRisk(req.Strategy, req.Prices, req.Intent, stats)
	if err != nil {
		return domain.MutationPlan{}, err
	}

	strategyID := ""
	if req.Strategy != nil {
		strategyID = req.Strategy.StrategyID
	}

	plan, err := m.router.RouteMutation(RouteRequest{
		StrategyID: strategyID,
		Intent:     req.Intent,
		RiskScore:  metrics.OverallRisk,
		TierStats:  stats,
		Override:   req.Override,
		Config:     req.Config,
	})
	if err != nil {
		return domain.MutationPlan{}, err
	}

	plan.Config["risk_metrics"] = riskMetricsConfig(metrics)
	return plan, nil
}

func riskMetricsConfig(metrics domain.RiskMetrics) map[string]any {
	out := make(map[string]any, len(metrics.Details)+4)
	for k, v := range metrics.Details {
		out[k] = v
	}
	out["strategy_risk"] = metrics.StrategyRisk
	out["market_risk"] = metrics.MarketRisk
	out["mutation_risk"] = metrics.MutationRisk
	out["overall_risk"] = metrics.OverallRisk
	return out
}

// RecordMutationResult feeds a plan's outcome back into the learner and, if
// adaptation is enabled, retunes the thresholds.
func (m *TierSelectionManager) RecordMutationResult(ctx context.Context, plan domain.MutationPlan, success bool, metrics *domain.OutcomeMetrics) error {
	enriched := domain.OutcomeMetrics{}
	if metrics != nil {
		enriched = *metrics
	}
	enriched.MutationType = plan.MutationType
	enriched.StrategyID = plan.StrategyID()

	if err := m.learner.UpdateTierStats(ctx, plan.Tier, success, &enriched); err != nil {
		return err
	}

	if m.cfg.EnableAdaptation {
		m.maybeAdaptThresholds()
	}
	return nil
}

func (m *TierSelectionManager) maybeAdaptThresholds() {
	adj := m.learner.AdjustThresholds(m.thresholds.Tier1, m.thresholds.Tier2)
	if !adj.Adjusted {
		return
	}

	if err := m.router.SetThresholds(adj.Tier1, adj.Tier2); err != nil {
		m.logger.Warn("rejected adapted thresholds",
			zap.Float64("tier1", adj.Tier1),
			zap.Float64("tier2", adj.Tier2),
			zap.Error(err))
		return
	}
	old := m.thresholds
	m.thresholds = domain.ThresholdState{Tier1: adj.Tier1, Tier2: adj.Tier2}

	if old != m.thresholds {
		m.logger.Info("tier thresholds adapted",
			zap.Float64("old_tier1", old.Tier1),
			zap.Float64("new_tier1", adj.Tier1),
			zap.Float64("old_tier2", old.Tier2),
			zap.Float64("new_tier2", adj.Tier2))
	}
}

// AdjustThresholdsManually overrides one or both thresholds. Nil leaves a
// threshold unchanged.
func (m *TierSelectionManager) AdjustThresholdsManually(tier1, tier2 *float64) error {
	next := m.thresholds
	if tier1 != nil {
		if *tier1 < 0 || *tier1 > 1 {
			return fmt.Errorf("%w: tier1 threshold %.4f outside [0,1]", ErrConfiguration, *tier1)
		}
		next.Tier1 = *tier1
	}
	if tier2 != nil {
		if *tier2 < 0 || *tier2 > 1 {
			return fmt.Errorf("%w: tier2 threshold %.4f outside [0,1]", ErrConfiguration, *tier2)
		}
		next.Tier2 = *tier2
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := m.router.SetThresholds(next.Tier1, next.Tier2); err != nil {
		return err
	}

	m.logger.Info("tier thresholds set manually",
		zap.Float64("tier1", next.Tier1),
		zap.Float64("tier2", next.Tier2))
	m.thresholds = next
	return nil
}

func (m *TierSelectionManager) GetRecommendations() ManagerRecommendations {
	return m.recommendations(DefaultDistributionSamples)
}

func (m *TierSelectionManager) recommendations(samples int) ManagerRecommendations {
	return ManagerRecommendations{
		Recommendations: m.learner.TierRecommendations(),
		Thresholds:      m.thresholds,
		Distribution:    m.router.TierDistribution(samples),
		TierStats:       m.learner.HistoricalStats(),
	}
}

// TierDistribution simulates how uniformly distributed risk scores would be
// routed under the current thresholds.
func (m *TierSelectionManager) TierDistribution(samples int) map[domain.Tier]float64 {
	return m.router.TierDistribution(samples)
}

func (m *TierSelectionManager) ExportState() ManagerState {
	return ManagerState{
		Thresholds:       m.thresholds,
		TierStats:        m.learner.TierStats(),
		Recommendations:  m.GetRecommendations(),
		ThresholdHistory: m.learner.ThresholdHistory(),
		Config:           m.cfg,
		ExportedAt:       time.Now().UTC(),
	}
}

// ResetLearning clears the learner. Thresholds are left as they are.
func (m *TierSelectionManager) ResetLearning(ctx context.Context) {
	m.learner.ResetStats(ctx)
}
