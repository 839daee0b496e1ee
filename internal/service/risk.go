package service

import (
	"errors"
	"fmt"
	"math"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"go.uber.org/zap"
)

var (
	ErrConfiguration          = errors.New("invalid configuration")
	ErrInvalidStrategySummary = errors.New("invalid strategy summary")
)

const (
	// Normalisation caps for strategy complexity
	maxGraphDepth  = 10.0
	maxFactorCount = 20.0
	maxCodeLines   = 300.0

	// Normalisation caps for market conditions
	maxVolatility    = 0.05
	maxRegimeChanges = 8.0
	maxDrawdown      = 0.20

	shortMAWindow = 5
	longMAWindow  = 20

	neutralRisk = 0.5
	maximumRisk = 1.0

	weightTolerance = 0.01
)

// RiskWeights blends the three risk components into the overall score.
type RiskWeights struct {
	Strategy float64 `json:"strategy"`
	Market   float64 `json:"market"`
	Mutation float64 `json:"mutation"`
}

func DefaultRiskWeights() RiskWeights {
	return RiskWeights{Strategy: 0.4, Market: 0.3, Mutation: 0.3}
}

func (w RiskWeights) Validate() error {
	if w.Strategy < 0 || w.Market < 0 || w.Mutation < 0 {
		return fmt.Errorf("%w: risk weights must be non-negative, got %+v", ErrConfiguration, w)
	}
	sum := w.Strategy + w.Market + w.Mutation
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: risk weights must sum to 1.0, got %.4f", ErrConfiguration, sum)
	}
	return nil
}

// RiskAssessor scores how dangerous a proposed mutation is. It holds no state
// beyond its weights.
type RiskAssessor struct {
	weights RiskWeights
	logger  *zap.Logger
}

func NewRiskAssessor(weights RiskWeights, logger *zap.Logger) (*RiskAssessor, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiskAssessor{weights: weights, logger: logger}, nil
}

func (a *RiskAssessor) Weights() RiskWeights {
	return a.weights
}

// AssessStrategyRisk scores strategy complexity. A nil summary means the
// factor graph was unavailable and scores maximum risk.
func (a *RiskAssessor) AssessStrategyRisk(s *domain.StrategySummary) float64 {
	if s == nil || s.Validate() != nil {
		return maximumRisk
	}
	depth := clamp01(float64(s.Depth) / maxGraphDepth)
	count := clamp01(float64(s.FactorCount) / maxFactorCount)
	lines := clamp01(float64(s.CodeLines) / maxCodeLines)
	return (depth + count + lines) / 3
}

// marketComponents are the three sub-scores of market risk.
type marketComponents struct {
	volatility     float64
	regimeChanges  int
	maxDrawdown    float64
	volatilityRisk float64
	regimeRisk     float64
	drawdownRisk   float64
}

// AssessMarketRisk scores volatility, regime instability and drawdown of a
// close-price series. Series with fewer than two prices are neutral.
func (a *RiskAssessor) AssessMarketRisk(p *domain.PriceSeries) float64 {
	c, ok := marketRisk(p)
	if !ok {
		return neutralRisk
	}
	return (c.volatilityRisk + c.regimeRisk + c.drawdownRisk) / 3
}

func marketRisk(p *domain.PriceSeries) (marketComponents, bool) {
	if p.Len() < 2 {
		return marketComponents{}, false
	}
	closes := p.Close

	var c marketComponents
	c.volatility = returnVolatility(closes)
	c.regimeChanges = regimeChanges(closes)
	c.maxDrawdown = maxDrawdownOf(closes)

	c.volatilityRisk = clamp01(c.volatility / maxVolatility)
	c.regimeRisk = clamp01(float64(c.regimeChanges) / maxRegimeChanges)
	c.drawdownRisk = clamp01(c.maxDrawdown / maxDrawdown)
	return c, true
}

// returnVolatility is the population standard deviation of period returns.
// Returns that overflow or are undefined are skipped.
func returnVolatility(closes []float64) float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		r := closes[i]/closes[i-1] - 1
		if !isFinite(r) {
			continue
		}
		returns = append(returns, r)
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	return math.Sqrt(variance)
}

// regimeChanges counts how often the short moving average crosses the long
// one. Both windows shrink to the series length for short series.
func regimeChanges(closes []float64) int {
	n := len(closes)
	short := min(shortMAWindow, n)
	long := min(longMAWindow, n)

	prefix := make([]float64, n+1)
	for i, v := range closes {
		prefix[i+1] = prefix[i] + v
	}
	mean := func(end, window int) float64 {
		return (prefix[end+1] - prefix[end+1-window]) / float64(window)
	}

	changes := 0
	prevAbove := false
	for i := long - 1; i < n; i++ {
		above := mean(i, short) > mean(i, long)
		if i > long-1 && above != prevAbove {
			changes++
		}
		prevAbove = above
	}
	return changes
}

func maxDrawdownOf(closes []float64) float64 {
	peak := closes[0]
	worst := 0.0
	for _, v := range closes {
		if !isFinite(v) {
			continue
		}
		if !isFinite(peak) || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// AssessMutationRisk scores the historical failure rate across tiers. Tiers
// with no attempts count as neutral; no history at all is neutral.
func (a *RiskAssessor) AssessMutationRisk(intent domain.MutationIntent, stats map[domain.Tier]domain.TierStats) float64 {
	if len(stats) == 0 {
		return neutralRisk
	}
	var total float64
	for _, s := range stats {
		if s.Attempts > 0 {
			total += 1 - float64(s.Successes)/float64(s.Attempts)
		} else {
			total += neutralRisk
		}
	}
	return clamp01(total / float64(len(stats)))
}

// AssessOverallRisk combines the three component scores with the configured
// weights. Missing optional inputs fall back to neutral scores. A non-nil
// summary with negative sizes is rejected.
func (a *RiskAssessor) AssessOverallRisk(
	s *domain.StrategySummary,
	p *domain.PriceSeries,
	intent domain.MutationIntent,
	stats map[domain.Tier]domain.TierStats,
) (domain.RiskMetrics, error) {
	if s != nil {
		if err := s.Validate(); err != nil {
			return domain.RiskMetrics{}, fmt.Errorf("%w: %v", ErrInvalidStrategySummary, err)
		}
	}

	strategyRisk := a.AssessStrategyRisk(s)
	marketRiskScore := a.AssessMarketRisk(p)
	mutationRisk := a.AssessMutationRisk(intent, stats)

	overall := a.weights.Strategy*strategyRisk +
		a.weights.Market*marketRiskScore +
		a.weights.Mutation*mutationRisk

	details := map[string]any{
		"intent": string(intent),
		"weights": map[string]float64{
			"strategy": a.weights.Strategy,
			"market":   a.weights.Market,
			"mutation": a.weights.Mutation,
		},
		"strategy_available": s != nil,
		"market_available":   p.Len() >= 2,
		"history_tiers":      len(stats),
	}
	if s != nil {
		details["strategy_depth"] = s.Depth
		details["factor_count"] = s.FactorCount
		details["code_lines"] = s.CodeLines
	}
	if c, ok := marketRisk(p); ok {
		details["regime_changes"] = c.regimeChanges
		if isFinite(c.volatility) {
			details["volatility"] = c.volatility
		}
		if isFinite(c.maxDrawdown) {
			details["max_drawdown"] = c.maxDrawdown
		}
	}

	metrics := domain.RiskMetrics{
		StrategyRisk: strategyRisk,
		MarketRisk:   marketRiskScore,
		MutationRisk: mutationRisk,
		OverallRisk:  clamp01(overall),
		Details:      details,
	}

	a.logger.Debug("risk assessed",
		zap.String("intent", string(intent)),
		zap.Float64("strategy_risk", strategyRisk),
		zap.Float64("market_risk", marketRiskScore),
		zap.Float64("mutation_risk", mutationRisk),
		zap.Float64("overall_risk", metrics.OverallRisk))

	return metrics, nil
}

// clamp01 bounds a score to [0,1]. An undefined score is neutral.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return neutralRisk
	}
	return clamp(v, 0, 1)
}

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
