package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidTier      = errors.New("invalid tier")
	ErrOverrideDisabled = errors.New("tier override is disabled")
)

const (
	DefaultTier1Threshold      = 0.3
	DefaultTier2Threshold      = 0.7
	DefaultAdjustmentRate      = 0.05
	DefaultDistributionSamples = 1000

	// Bounds for adapted thresholds
	minTier1Threshold = 0.1
	maxTier1Threshold = 0.5
	maxTier2Threshold = 0.9
	minThresholdGap   = 0.1
)

// RouteRequest is the input to TierRouter.RouteMutation.
type RouteRequest struct {
	StrategyID string
	Intent     domain.MutationIntent
	RiskScore  float64
	// TierStats, when present, is quoted in the rationale.
	TierStats map[domain.Tier]domain.TierStats
	Override  *domain.Tier
	Config    map[string]any
}

// TierRouter maps risk scores onto tiers using two thresholds.
type TierRouter struct {
	tier1         float64
	tier2         float64
	allowOverride bool
	rng           *rand.Rand
	logger        *zap.Logger
}

func NewTierRouter(tier1, tier2 float64, allowOverride bool, logger *zap.Logger) (*TierRouter, error) {
	if err := validateRouterThresholds(tier1, tier2); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TierRouter{
		tier1:         tier1,
		tier2:         tier2,
		allowOverride: allowOverride,
		rng:           rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		logger:        logger,
	}, nil
}

func validateRouterThresholds(tier1, tier2 float64) error {
	if tier1 < 0 || tier2 > 1 || tier1 > tier2 {
		return fmt.Errorf("%w: thresholds must satisfy 0 <= tier1 <= tier2 <= 1, got tier1=%.4f tier2=%.4f",
			ErrConfiguration, tier1, tier2)
	}
	return nil
}

// SetSeed makes tier distribution sampling deterministic.
func (r *TierRouter) SetSeed(seed uint64) {
	r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (r *TierRouter) Thresholds() domain.ThresholdState {
	return domain.ThresholdState{Tier1: r.tier1, Tier2: r.tier2}
}

// SetThresholds replaces the routing thresholds. The manager calls this after
// every adaptation so routing never lags behind its copy of record.
func (r *TierRouter) SetThresholds(tier1, tier2 float64) error {
	if err := validateRouterThresholds(tier1, tier2); err != nil {
		return err
	}
	r.tier1 = tier1
	r.tier2 = tier2
	return nil
}

func (r *TierRouter) AllowOverride() bool {
	return r.allowOverride
}

// SelectTier picks a tier for a risk score. An override, when allowed, wins
// over the score. Without an override the result depends only on the clamped
// score and the current thresholds and is monotonic in risk.
func (r *TierRouter) SelectTier(riskScore float64, override *domain.Tier) (domain.Tier, error) {
	if override != nil {
		if !override.Valid() {
			return 0, fmt.Errorf("%w: override %d", ErrInvalidTier, override.Number())
		}
		if !r.allowOverride {
			return 0, ErrOverrideDisabled
		}
		return *override, nil
	}
	return r.tierFor(clamp01(riskScore)), nil
}

func (r *TierRouter) tierFor(score float64) domain.Tier {
	switch {
	case score < r.tier1:
		return domain.Tier1
	case score >= r.tier2:
		return domain.Tier3
	default:
		return domain.Tier2
	}
}

// RouteMutation selects a tier and builds the complete mutation plan.
func (r *TierRouter) RouteMutation(req RouteRequest) (domain.MutationPlan, error) {
	tier, err := r.SelectTier(req.RiskScore, req.Override)
	if err != nil {
		return domain.MutationPlan{}, err
	}
	score := clamp01(req.RiskScore)

	config := make(map[string]any, len(req.Config)+2)
	for k, v := range req.Config {
		config[k] = v
	}
	config["strategy_id"] = req.StrategyID
	config["tier"] = tier.Number()

	plan := domain.MutationPlan{
		ID:           uuid.New(),
		Tier:         tier,
		MutationType: domain.MutationTypeFor(req.Intent, tier),
		Config:       config,
		RiskScore:    score,
		Rationale:    r.rationale(tier, score, req.Override != nil, req.TierStats),
		CreatedAt:    time.Now().UTC(),
	}

	r.logger.Debug("mutation routed",
		zap.String("strategy_id", req.StrategyID),
		zap.String("intent", string(req.Intent)),
		zap.Int("tier", tier.Number()),
		zap.String("mutation_type", plan.MutationType),
		zap.Float64("risk_score", score),
		zap.Bool("override", req.Override != nil))

	return plan, nil
}

func (r *TierRouter) rationale(tier domain.Tier, score float64, overridden bool, stats map[domain.Tier]domain.TierStats) string {
	bucket := domain.RiskBucket(score)
	var text string
	if overridden {
		text = fmt.Sprintf("Tier %d (%s) selected by explicit override; assessed risk %.3f is %s",
			tier.Number(), tier.Level(), score, bucket)
	} else {
		var rule string
		switch tier {
		case domain.Tier1:
			rule = fmt.Sprintf("below tier1 threshold %.3f", r.tier1)
		case domain.Tier2:
			rule = fmt.Sprintf("between thresholds %.3f and %.3f", r.tier1, r.tier2)
		case domain.Tier3:
			rule = fmt.Sprintf("at or above tier2 threshold %.3f", r.tier2)
		}
		text = fmt.Sprintf("Tier %d (%s) selected: %s risk %.3f is %s",
			tier.Number(), tier.Level(), bucket, score, rule)
	}
	if s, ok := stats[tier]; ok && s.Attempts > 0 {
		text += fmt.Sprintf("; historical success %.0f%% over %d attempts",
			100*float64(s.Successes)/float64(s.Attempts), s.Attempts)
	}
	return text
}

// AdjustThresholds computes new thresholds from per-tier success rates without
// applying them. Tiers missing from rates count as 0.5.
//
// The update is asymmetric: tier1 follows its own success rate while tier2
// follows the gap between tiers 2 and 3.
func (r *TierRouter) AdjustThresholds(rates map[domain.Tier]float64, adjustmentRate float64) (float64, float64) {
	return adjustThresholdPair(r.tier1, r.tier2, rateOr(rates, domain.Tier1), rateOr(rates, domain.Tier2),
		rateOr(rates, domain.Tier3), adjustmentRate)
}

func rateOr(rates map[domain.Tier]float64, t domain.Tier) float64 {
	if v, ok := rates[t]; ok {
		return v
	}
	return 0.5
}

func adjustThresholdPair(t1, t2, rate1, rate2, rate3, adjustmentRate float64) (float64, float64) {
	newT1 := clamp(t1+(rate1-0.5)*adjustmentRate, minTier1Threshold, maxTier1Threshold)
	newT2 := clamp(t2+(rate2-rate3)*adjustmentRate*0.5, newT1+minThresholdGap, maxTier2Threshold)
	return newT1, newT2
}

// TierDistribution samples uniform risk scores and reports the fraction that
// lands in each tier under the current thresholds.
func (r *TierRouter) TierDistribution(numSamples int) map[domain.Tier]float64 {
	if numSamples <= 0 {
		numSamples = DefaultDistributionSamples
	}
	counts := make(map[domain.Tier]int, 3)
	for i := 0; i < numSamples; i++ {
		counts[r.tierFor(r.rng.Float64())]++
	}
	dist := make(map[domain.Tier]float64, 3)
	for _, t := range domain.AllTiers() {
		dist[t] = float64(counts[t]) / float64(numSamples)
	}
	return dist
}
