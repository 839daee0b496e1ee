package service

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cfg ManagerConfig, st domain.LearnerStateStore) *TierSelectionManager {
	t.Helper()
	m, err := NewTierSelectionManager(context.Background(), cfg, st, testLogger())
	require.NoError(t, err)
	return m
}

func TestNewTierSelectionManager_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ManagerConfig)
	}{
		{"equal thresholds", func(c *ManagerConfig) { c.Tier1Threshold, c.Tier2Threshold = 0.5, 0.5 }},
		{"inverted thresholds", func(c *ManagerConfig) { c.Tier1Threshold, c.Tier2Threshold = 0.8, 0.2 }},
		{"threshold above one", func(c *ManagerConfig) { c.Tier2Threshold = 1.2 }},
		{"weights do not sum to one", func(c *ManagerConfig) { c.Weights = RiskWeights{0.5, 0.5, 0.5} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultManagerConfig()
			tt.mutate(&cfg)
			_, err := NewTierSelectionManager(context.Background(), cfg, nil, nil)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestSelectMutationTier_EmptyStrategyNoHistory(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)

	plan, err := m.SelectMutationTier(SelectionRequest{
		Strategy: &domain.StrategySummary{StrategyID: "alpha-1"},
		Intent:   domain.IntentModifyFactor,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Tier2, plan.Tier)
	assert.Equal(t, "rewrite_factor", plan.MutationType)
	assert.InDelta(t, 0.3, plan.RiskScore, 1e-9)
	assert.Equal(t, "alpha-1", plan.StrategyID())

	metrics, ok := plan.Config["risk_metrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0.0, metrics["strategy_risk"])
	assert.Equal(t, 0.5, metrics["market_risk"])
	assert.Equal(t, 0.5, metrics["mutation_risk"])
	assert.InDelta(t, 0.3, metrics["overall_risk"], 1e-9)
}

func TestSelectMutationTier_MissingStrategyIsHighRisk(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)

	plan, err := m.SelectMutationTier(SelectionRequest{Intent: domain.IntentAddFactor})
	require.NoError(t, err)

	// 0.4*1.0 + 0.3*0.5 + 0.3*0.5
	assert.InDelta(t, 0.7, plan.RiskScore, 1e-9)
	assert.Empty(t, plan.StrategyID())
}

func TestSelectMutationTier_Override(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)

	plan, err := m.SelectMutationTier(SelectionRequest{
		Strategy: &domain.StrategySummary{StrategyID: "s"},
		Intent:   domain.IntentRemoveFactor,
		Override: ptr(domain.Tier1),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Tier1, plan.Tier)
	assert.Equal(t, "disable_factor", plan.MutationType)

	cfg := DefaultManagerConfig()
	cfg.AllowOverride = false
	locked := newTestManager(t, cfg, nil)
	_, err = locked.SelectMutationTier(SelectionRequest{Intent: domain.IntentRemoveFactor, Override: ptr(domain.Tier1)})
	assert.ErrorIs(t, err, ErrOverrideDisabled)
}

func TestSelectMutationTier_InvalidSummary(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)

	_, err := m.SelectMutationTier(SelectionRequest{
		Strategy: &domain.StrategySummary{CodeLines: -1},
		Intent:   domain.IntentAddFactor,
	})
	assert.ErrorIs(t, err, ErrInvalidStrategySummary)
}

func TestRecordMutationResult_AdaptsThresholds(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 19; i++ {
		require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier1, "s"), true, nil))
	}
	assert.Equal(t, domain.ThresholdState{Tier1: 0.3, Tier2: 0.7}, m.Thresholds())

	require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier1, "s"), true, nil))
	assert.InDelta(t, 0.35, m.Thresholds().Tier1, 1e-9)
	assert.InDelta(t, 0.7, m.Thresholds().Tier2, 1e-9)

	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier1, "s"), true, nil))
	}
	assert.InDelta(t, 0.5, m.Thresholds().Tier1, 1e-9)
	assert.InDelta(t, 0.7, m.Thresholds().Tier2, 1e-9)

	// The router always routes with the manager's thresholds.
	assert.Equal(t, m.Thresholds(), m.Router().Thresholds())
	tier, err := m.Router().SelectTier(0.45, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Tier1, tier)
}

func TestRecordMutationResult_AdaptationDisabled(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.EnableAdaptation = false
	m := newTestManager(t, cfg, nil)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier1, "s"), true, nil))
	}
	assert.Equal(t, domain.ThresholdState{Tier1: 0.3, Tier2: 0.7}, m.Thresholds())
	assert.Equal(t, 30, m.Learner().TierStats()[domain.Tier1].Attempts)
}

func TestRecordMutationResult_EnrichesHistory(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)

	plan := planFor(domain.Tier2, "beta")
	require.NoError(t, m.RecordMutationResult(context.Background(), plan, false, &domain.OutcomeMetrics{FitnessDelta: ptr(-0.01)}))

	history := m.Learner().History()
	require.Len(t, history, 1)
	assert.Equal(t, "beta", history[0].StrategyID)
	assert.Equal(t, plan.MutationType, history[0].MutationType)
	assert.False(t, history[0].Success)
}

func TestRecordMutationResult_InvalidTier(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)

	err := m.RecordMutationResult(context.Background(), planFor(domain.Tier(9), "s"), true, nil)
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestAdjustThresholdsManually(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)

	require.NoError(t, m.AdjustThresholdsManually(ptr(0.2), nil))
	assert.Equal(t, domain.ThresholdState{Tier1: 0.2, Tier2: 0.7}, m.Thresholds())

	require.NoError(t, m.AdjustThresholdsManually(nil, ptr(0.6)))
	assert.Equal(t, domain.ThresholdState{Tier1: 0.2, Tier2: 0.6}, m.Thresholds())
	assert.Equal(t, m.Thresholds(), m.Router().Thresholds())

	tests := []struct {
		name   string
		t1, t2 *float64
	}{
		{"tier1 above tier2", ptr(0.8), nil},
		{"equal", ptr(0.6), nil},
		{"tier2 out of range", nil, ptr(1.5)},
		{"tier1 negative", ptr(-0.1), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.AdjustThresholdsManually(tt.t1, tt.t2), ErrConfiguration)
			assert.Equal(t, domain.ThresholdState{Tier1: 0.2, Tier2: 0.6}, m.Thresholds())
			assert.Equal(t, m.Thresholds(), m.Router().Thresholds())
		})
	}
}

func TestGetRecommendations(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)
	m.Router().SetSeed(7)

	recs := m.GetRecommendations()
	assert.Equal(t, domain.Tier2, recs.RecommendedTier)
	assert.Equal(t, m.Thresholds(), recs.Thresholds)
	assert.Len(t, recs.Distribution, 3)
	assert.Len(t, recs.TierStats, 3)
}

func TestExportState_RestoresAcrossInstances(t *testing.T) {
	ctx := context.Background()
	st := &mockStateStore{}

	m := newTestManager(t, DefaultManagerConfig(), st)
	for i := 0; i < 6; i++ {
		require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier2, "s"), i%2 == 0, &domain.OutcomeMetrics{FitnessDelta: ptr(0.01)}))
	}
	require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier3, "s"), false, nil))

	state := m.ExportState()
	assert.Equal(t, m.Thresholds(), state.Thresholds)
	assert.Equal(t, 6, state.TierStats[domain.Tier2].Attempts)
	assert.Equal(t, 7, state.Recommendations.TotalAttempts)
	assert.False(t, state.ExportedAt.IsZero())

	again := newTestManager(t, DefaultManagerConfig(), st)
	assert.Equal(t, state.TierStats, again.ExportState().TierStats)
}

func TestResetLearning_KeepsThresholds(t *testing.T) {
	m := newTestManager(t, DefaultManagerConfig(), nil)
	ctx := context.Background()

	require.NoError(t, m.AdjustThresholdsManually(ptr(0.25), ptr(0.65)))
	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier3, "s"), true, nil))
	}

	m.ResetLearning(ctx)

	assert.Equal(t, domain.ThresholdState{Tier1: 0.25, Tier2: 0.65}, m.Thresholds())
	assert.Equal(t, 0, m.Learner().TierStats()[domain.Tier3].Attempts)
}

func TestNewTierSelectionManager_ThresholdsComeFromConfig(t *testing.T) {
	ctx := context.Background()
	st := &mockStateStore{}

	m := newTestManager(t, DefaultManagerConfig(), st)
	for i := 0; i < 22; i++ {
		require.NoError(t, m.RecordMutationResult(ctx, planFor(domain.Tier1, "s"), true, nil))
	}
	require.Greater(t, m.Thresholds().Tier1, DefaultTier1Threshold)

	restarted := newTestManager(t, DefaultManagerConfig(), st)
	assert.Equal(t, domain.ThresholdState{Tier1: DefaultTier1Threshold, Tier2: DefaultTier2Threshold}, restarted.Thresholds())
	assert.Equal(t, restarted.Thresholds(), restarted.Router().Thresholds())

	// Learned thresholds stay visible in the restored history.
	history := restarted.Learner().ThresholdHistory()
	require.NotEmpty(t, history)
	assert.Greater(t, history[len(history)-1].Tier1, DefaultTier1Threshold)
}
