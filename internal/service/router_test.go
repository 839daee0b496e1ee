package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) *TierRouter {
	t.Helper()
	r, err := NewTierRouter(DefaultTier1Threshold, DefaultTier2Threshold, true, testLogger())
	require.NoError(t, err)
	return r
}

func TestNewTierRouter_Validation(t *testing.T) {
	tests := []struct {
		name    string
		t1, t2  float64
		wantErr bool
	}{
		{"defaults", 0.3, 0.7, false},
		{"equal thresholds", 0.5, 0.5, false},
		{"full range", 0, 1, false},
		{"inverted", 0.7, 0.3, true},
		{"negative", -0.1, 0.5, true},
		{"above one", 0.3, 1.1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTierRouter(tt.t1, tt.t2, true, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSelectTier_Boundaries(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		score float64
		want  domain.Tier
	}{
		{0.0, domain.Tier1},
		{0.29, domain.Tier1},
		{0.3, domain.Tier2},
		{0.5, domain.Tier2},
		{0.69, domain.Tier2},
		{0.7, domain.Tier3},
		{1.0, domain.Tier3},
		{-3.0, domain.Tier1},
		{7.5, domain.Tier3},
	}

	for _, tt := range tests {
		got, err := r.SelectTier(tt.score, nil)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("SelectTier(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestSelectTier_Monotonic(t *testing.T) {
	r := newTestRouter(t)

	prev := domain.Tier1
	for i := 0; i <= 1000; i++ {
		tier, err := r.SelectTier(float64(i)/1000, nil)
		require.NoError(t, err)
		if tier < prev {
			t.Fatalf("tier decreased from %v to %v at score %.3f", prev, tier, float64(i)/1000)
		}
		prev = tier
	}
}

func TestSelectTier_Override(t *testing.T) {
	r := newTestRouter(t)

	tier, err := r.SelectTier(0.01, ptr(domain.Tier3))
	require.NoError(t, err)
	assert.Equal(t, domain.Tier3, tier)

	tier, err = r.SelectTier(0.99, ptr(domain.Tier1))
	require.NoError(t, err)
	assert.Equal(t, domain.Tier1, tier)

	_, err = r.SelectTier(0.5, ptr(domain.Tier(4)))
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestSelectTier_OverrideDisabled(t *testing.T) {
	r, err := NewTierRouter(0.3, 0.7, false, nil)
	require.NoError(t, err)

	_, err = r.SelectTier(0.5, ptr(domain.Tier1))
	if !errors.Is(err, ErrOverrideDisabled) {
		t.Fatalf("expected ErrOverrideDisabled, got %v", err)
	}

	tier, err := r.SelectTier(0.5, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Tier2, tier)
}

func TestRouteMutation_Plan(t *testing.T) {
	r := newTestRouter(t)

	plan, err := r.RouteMutation(RouteRequest{
		StrategyID: "momentum-7",
		Intent:     domain.IntentAddFactor,
		RiskScore:  0.85,
		TierStats: map[domain.Tier]domain.TierStats{
			domain.Tier3: {Attempts: 4, Successes: 3},
		},
		Config: map[string]any{"max_factors": 12},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Tier3, plan.Tier)
	assert.Equal(t, "insert_subgraph", plan.MutationType)
	assert.Equal(t, 0.85, plan.RiskScore)
	assert.Equal(t, "momentum-7", plan.StrategyID())
	assert.Equal(t, 3, plan.Config["tier"])
	assert.Equal(t, 12, plan.Config["max_factors"])
	assert.NotEqual(t, [16]byte{}, [16]byte(plan.ID))
	assert.False(t, plan.CreatedAt.IsZero())

	assert.Contains(t, plan.Rationale, "high")
	assert.Contains(t, plan.Rationale, "tier2 threshold")
	assert.Contains(t, plan.Rationale, "75% over 4 attempts")
	assert.NotContains(t, plan.Rationale, "override")
}

func TestRouteMutation_OverrideRationale(t *testing.T) {
	r := newTestRouter(t)

	plan, err := r.RouteMutation(RouteRequest{
		StrategyID: "s",
		Intent:     domain.IntentChangeLogic,
		RiskScore:  0.1,
		Override:   ptr(domain.Tier3),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.Tier3, plan.Tier)
	assert.Equal(t, "rewire_dependencies", plan.MutationType)
	assert.True(t, strings.Contains(plan.Rationale, "override"))
	assert.Contains(t, plan.Rationale, "low")
}

func TestRouteMutation_UnmappedIntent(t *testing.T) {
	r := newTestRouter(t)

	plan, err := r.RouteMutation(RouteRequest{Intent: "swap_universe", RiskScore: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "tier2_swap_universe", plan.MutationType)
	assert.Contains(t, plan.Rationale, "medium")
}

func TestRouteMutation_DoesNotAliasConfig(t *testing.T) {
	r := newTestRouter(t)

	extra := map[string]any{"seed": 1}
	plan, err := r.RouteMutation(RouteRequest{Intent: domain.IntentAddFactor, Config: extra})
	require.NoError(t, err)

	plan.Config["seed"] = 2
	assert.Equal(t, 1, extra["seed"])
	_, leaked := extra["tier"]
	assert.False(t, leaked)
}

func TestRouterAdjustThresholds(t *testing.T) {
	r := newTestRouter(t)

	t1, t2 := r.AdjustThresholds(map[domain.Tier]float64{
		domain.Tier1: 1.0,
		domain.Tier2: 0.9,
		domain.Tier3: 0.1,
	}, DefaultAdjustmentRate)
	assert.InDelta(t, 0.325, t1, 1e-9)
	assert.InDelta(t, 0.72, t2, 1e-9)

	// Internal state is untouched until SetThresholds.
	assert.Equal(t, domain.ThresholdState{Tier1: 0.3, Tier2: 0.7}, r.Thresholds())
}

func TestRouterAdjustThresholds_Clamps(t *testing.T) {
	r, err := NewTierRouter(0.1, 0.2, true, nil)
	require.NoError(t, err)

	t1, t2 := r.AdjustThresholds(map[domain.Tier]float64{
		domain.Tier1: 0.0,
		domain.Tier2: 0.0,
		domain.Tier3: 1.0,
	}, 1.0)
	assert.Equal(t, 0.1, t1)
	assert.InDelta(t, 0.2, t2, 1e-9)

	r2, err := NewTierRouter(0.49, 0.89, true, nil)
	require.NoError(t, err)
	t1, t2 = r2.AdjustThresholds(map[domain.Tier]float64{
		domain.Tier1: 1.0,
		domain.Tier2: 1.0,
		domain.Tier3: 0.0,
	}, 1.0)
	assert.Equal(t, 0.5, t1)
	assert.Equal(t, 0.9, t2)
}

func TestRouterAdjustThresholds_MissingRatesAreNeutral(t *testing.T) {
	r := newTestRouter(t)

	t1, t2 := r.AdjustThresholds(nil, DefaultAdjustmentRate)
	assert.InDelta(t, 0.3, t1, 1e-9)
	assert.InDelta(t, 0.7, t2, 1e-9)
}

func TestSetThresholds(t *testing.T) {
	r := newTestRouter(t)

	require.NoError(t, r.SetThresholds(0.2, 0.6))
	tier, err := r.SelectTier(0.25, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.Tier2, tier)

	assert.ErrorIs(t, r.SetThresholds(0.8, 0.2), ErrConfiguration)
	assert.Equal(t, domain.ThresholdState{Tier1: 0.2, Tier2: 0.6}, r.Thresholds())
}

func TestTierDistribution_DefaultThresholds(t *testing.T) {
	r := newTestRouter(t)
	r.SetSeed(42)

	dist := r.TierDistribution(100000)
	assert.InDelta(t, 0.30, dist[domain.Tier1], 0.05)
	assert.InDelta(t, 0.40, dist[domain.Tier2], 0.05)
	assert.InDelta(t, 0.30, dist[domain.Tier3], 0.05)
	assert.InDelta(t, 1.0, dist[domain.Tier1]+dist[domain.Tier2]+dist[domain.Tier3], 1e-9)
}

func TestTierDistribution_DefaultSampleCount(t *testing.T) {
	r := newTestRouter(t)

	dist := r.TierDistribution(0)
	assert.Len(t, dist, 3)
	assert.InDelta(t, 1.0, dist[domain.Tier1]+dist[domain.Tier2]+dist[domain.Tier3], 1e-9)
}
