package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultHistoryWindow  = 100
	DefaultLearningRate   = 0.1
	DefaultMinSamples     = 20
	DefaultPersistTimeout = 2 * time.Second

	// EMA weight for new fitness deltas
	fitnessAlpha = 0.1

	maxRecentWindow        = 20
	minRecentRecords       = 3
	minTrendRecords        = 10
	trendDelta             = 0.1
	minRecommendAttempts   = 3
	minThresholdAdviceData = 5
	maxThresholdHistory    = 100

	// Fitness deltas are normalised from this range onto [0,1] when scoring tiers
	fitnessFloor   = -0.1
	fitnessCeiling = 0.1
)

type LearnerConfig struct {
	HistoryWindow  int           `json:"history_window"`
	LearningRate   float64       `json:"learning_rate"`
	MinSamples     int           `json:"min_samples"`
	PersistTimeout time.Duration `json:"persist_timeout"`
}

func DefaultLearnerConfig() LearnerConfig {
	return LearnerConfig{
		HistoryWindow:  DefaultHistoryWindow,
		LearningRate:   DefaultLearningRate,
		MinSamples:     DefaultMinSamples,
		PersistTimeout: DefaultPersistTimeout,
	}
}

func (c LearnerConfig) withDefaults() LearnerConfig {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.LearningRate <= 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.MinSamples < 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = DefaultPersistTimeout
	}
	return c
}

// AdaptiveLearner accumulates per-tier outcomes and recommends threshold
// changes. It is not safe for concurrent use.
type AdaptiveLearner struct {
	cfg    LearnerConfig
	store  domain.LearnerStateStore
	logger *zap.Logger

	performance      map[domain.Tier]*domain.TierPerformance
	history          []domain.MutationHistoryRecord
	thresholdHistory []domain.ThresholdHistoryEntry
}

// NewAdaptiveLearner builds a learner. When stateStore is non-nil the
// learner restores its previous state from it; load failures start fresh.
func NewAdaptiveLearner(ctx context.Context, cfg LearnerConfig, stateStore domain.LearnerStateStore, logger *zap.Logger) *AdaptiveLearner {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &AdaptiveLearner{
		cfg:    cfg.withDefaults(),
		store:  stateStore,
		logger: logger,
	}
	l.clear()
	l.load(ctx)
	return l
}

func (l *AdaptiveLearner) Config() LearnerConfig {
	return l.cfg
}

func (l *AdaptiveLearner) clear() {
	l.performance = make(map[domain.Tier]*domain.TierPerformance, 3)
	for _, t := range domain.AllTiers() {
		l.performance[t] = &domain.TierPerformance{}
	}
	l.history = make([]domain.MutationHistoryRecord, 0, l.cfg.HistoryWindow)
	l.thresholdHistory = nil
}

func (l *AdaptiveLearner) recentWindow() int {
	return min(maxRecentWindow, l.cfg.HistoryWindow/3)
}

// UpdateTierStats records one mutation outcome for tier.
func (l *AdaptiveLearner) UpdateTierStats(ctx context.Context, tier domain.Tier, success bool, metrics *domain.OutcomeMetrics) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier.Number())
	}

	perf := l.performance[tier]
	perf.Attempts++
	if success {
		perf.Successes++
	} else {
		perf.Failures++
	}

	record := domain.MutationHistoryRecord{
		Tier:       tier,
		Success:    success,
		RecordedAt: time.Now().UTC(),
	}
	if metrics != nil {
		if metrics.FitnessDelta != nil {
			delta := *metrics.FitnessDelta
			perf.AvgFitnessDelta = fitnessAlpha*delta + (1-fitnessAlpha)*perf.AvgFitnessDelta
			record.FitnessDelta = &delta
		}
		record.MutationType = metrics.MutationType
		record.StrategyID = metrics.StrategyID
	}

	l.history = append(l.history, record)
	if len(l.history) > l.cfg.HistoryWindow {
		n := copy(l.history, l.history[len(l.history)-l.cfg.HistoryWindow:])
		l.history = l.history[:n]
	}

	l.refreshRecentRates()
	l.persist(ctx)
	return nil
}

func (l *AdaptiveLearner) refreshRecentRates() {
	window := l.recentWindow()
	for _, t := range domain.AllTiers() {
		records := l.tierHistory(t)
		if len(records) > window {
			records = records[len(records)-window:]
		}
		if len(records) < minRecentRecords {
			continue
		}
		l.performance[t].RecentSuccessRate = successRate(records)
	}
}

func (l *AdaptiveLearner) tierHistory(t domain.Tier) []domain.MutationHistoryRecord {
	var out []domain.MutationHistoryRecord
	for _, r := range l.history {
		if r.Tier == t {
			out = append(out, r)
		}
	}
	return out
}

func successRate(records []domain.MutationHistoryRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	n := 0
	for _, r := range records {
		if r.Success {
			n++
		}
	}
	return float64(n) / float64(len(records))
}

func (l *AdaptiveLearner) totalAttempts() int {
	total := 0
	for _, p := range l.performance {
		total += p.Attempts
	}
	return total
}

func (l *AdaptiveLearner) recentRates() map[domain.Tier]float64 {
	rates := make(map[domain.Tier]float64, 3)
	for t, p := range l.performance {
		rates[t] = p.RecentSuccessRate
	}
	return rates
}

// AdjustThresholds recommends new thresholds from recent per-tier success
// rates. Below MinSamples total attempts it returns Adjusted=false with a
// reason instead of an error so the adaptation loop keeps running.
func (l *AdaptiveLearner) AdjustThresholds(tier1, tier2 float64) domain.ThresholdAdjustment {
	total := l.totalAttempts()
	if total < l.cfg.MinSamples {
		return domain.ThresholdAdjustment{
			Adjusted: false,
			Reason:   fmt.Sprintf("insufficient data: %d of %d samples required", total, l.cfg.MinSamples),
			Tier1:    tier1,
			Tier2:    tier2,
		}
	}

	rates := l.recentRates()
	newT1, newT2 := adjustThresholdPair(tier1, tier2,
		rates[domain.Tier1], rates[domain.Tier2], rates[domain.Tier3], l.cfg.LearningRate)

	l.thresholdHistory = append(l.thresholdHistory, domain.ThresholdHistoryEntry{
		Tier1:       newT1,
		Tier2:       newT2,
		RecentRates: rates,
		RecordedAt:  time.Now().UTC(),
	})
	if len(l.thresholdHistory) > maxThresholdHistory {
		l.thresholdHistory = l.thresholdHistory[len(l.thresholdHistory)-maxThresholdHistory:]
	}

	return domain.ThresholdAdjustment{
		Adjusted: true,
		Tier1:    newT1,
		Tier2:    newT2,
		Deltas: domain.ThresholdDeltas{
			Tier1: newT1 - tier1,
			Tier2: newT2 - tier2,
		},
	}
}

// TierRecommendations summarises per-tier performance and picks the tier
// that currently pays off best.
func (l *AdaptiveLearner) TierRecommendations() domain.Recommendations {
	recs := domain.Recommendations{
		Tiers:                    make(map[domain.Tier]domain.TierRecommendation, 3),
		RecommendedTier:          domain.Tier2,
		TotalAttempts:            l.totalAttempts(),
		ThresholdRecommendations: make(map[domain.Tier]string, 3),
	}

	bestScore := 0.0
	qualified := false
	for _, t := range domain.AllTiers() {
		p := l.performance[t]
		rec := domain.TierRecommendation{
			SuccessRate:       p.SuccessRate(),
			RecentSuccessRate: p.RecentSuccessRate,
			AvgFitnessDelta:   p.AvgFitnessDelta,
			Attempts:          p.Attempts,
			Trend:             trendOf(l.tierHistory(t)),
		}
		recs.Tiers[t] = rec
		recs.ThresholdRecommendations[t] = thresholdAdvice(rec)

		if p.Attempts < minRecommendAttempts {
			continue
		}
		score := 0.6*p.RecentSuccessRate + 0.4*normalizeFitness(p.AvgFitnessDelta)
		if !qualified || score > bestScore {
			bestScore = score
			recs.RecommendedTier = t
			qualified = true
		}
	}

	recs.Confidence = l.confidence()
	recs.Insights = l.insights(recs, qualified)
	return recs
}

func trendOf(records []domain.MutationHistoryRecord) string {
	if len(records) < minTrendRecords {
		return domain.TrendInsufficientData
	}
	half := len(records) / 2
	delta := successRate(records[half:]) - successRate(records[:half])
	switch {
	case delta > trendDelta:
		return domain.TrendImproving
	case delta < -trendDelta:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func thresholdAdvice(rec domain.TierRecommendation) string {
	switch {
	case rec.Attempts < minThresholdAdviceData:
		return domain.ThresholdNeedData
	case rec.RecentSuccessRate >= 0.7:
		return domain.ThresholdExpand
	case rec.RecentSuccessRate < 0.4:
		return domain.ThresholdReduce
	default:
		return domain.ThresholdMaintain
	}
}

func normalizeFitness(delta float64) float64 {
	return clamp01((delta - fitnessFloor) / (fitnessCeiling - fitnessFloor))
}

func (l *AdaptiveLearner) confidence() float64 {
	sampleTarget := float64(l.cfg.MinSamples * 3)
	sampleScore := 1.0
	if sampleTarget > 0 {
		sampleScore = clamp01(float64(l.totalAttempts()) / sampleTarget)
	}

	rates := l.recentRates()
	var mean float64
	for _, r := range rates {
		mean += r
	}
	mean /= float64(len(rates))
	var variance float64
	for _, r := range rates {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rates))

	return 0.6*sampleScore + 0.4*(1-clamp01(2*variance))
}

func (l *AdaptiveLearner) insights(recs domain.Recommendations, qualified bool) []string {
	var out []string
	if recs.TotalAttempts < l.cfg.MinSamples {
		out = append(out, fmt.Sprintf("Only %d mutations recorded; thresholds adapt after %d",
			recs.TotalAttempts, l.cfg.MinSamples))
	}
	if qualified {
		t := recs.RecommendedTier
		out = append(out, fmt.Sprintf("Tier %d (%s) has the best recent success and fitness balance (%.0f%% recent success)",
			t.Number(), t.Level(), 100*recs.Tiers[t].RecentSuccessRate))
	} else {
		out = append(out, "No tier has enough attempts yet; defaulting to tier 2")
	}
	for _, t := range domain.AllTiers() {
		rec := recs.Tiers[t]
		switch rec.Trend {
		case domain.TrendImproving:
			out = append(out, fmt.Sprintf("Tier %d success rate is improving", t.Number()))
		case domain.TrendDeclining:
			out = append(out, fmt.Sprintf("Tier %d success rate is declining", t.Number()))
		}
		if rec.Attempts >= minThresholdAdviceData && rec.RecentSuccessRate < 0.3 {
			out = append(out, fmt.Sprintf("Tier %d fails often (%.0f%% recent success)",
				t.Number(), 100*rec.RecentSuccessRate))
		}
	}
	return out
}

// TierStats returns a copy of the raw per-tier counters.
func (l *AdaptiveLearner) TierStats() map[domain.Tier]domain.TierPerformance {
	out := make(map[domain.Tier]domain.TierPerformance, len(l.performance))
	for t, p := range l.performance {
		out[t] = *p
	}
	return out
}

// HistoricalStats returns attempts and successes per tier for risk assessment.
func (l *AdaptiveLearner) HistoricalStats() map[domain.Tier]domain.TierStats {
	out := make(map[domain.Tier]domain.TierStats, len(l.performance))
	for t, p := range l.performance {
		out[t] = domain.TierStats{Attempts: p.Attempts, Successes: p.Successes}
	}
	return out
}

func (l *AdaptiveLearner) History() []domain.MutationHistoryRecord {
	return append([]domain.MutationHistoryRecord(nil), l.history...)
}

func (l *AdaptiveLearner) ThresholdHistory() []domain.ThresholdHistoryEntry {
	return append([]domain.ThresholdHistoryEntry(nil), l.thresholdHistory...)
}

// ResetStats clears all counters and history.
func (l *AdaptiveLearner) ResetStats(ctx context.Context) {
	l.clear()
	l.persist(ctx)
	l.logger.Info("learner statistics reset")
}

func (l *AdaptiveLearner) Snapshot() domain.LearnerSnapshot {
	return domain.LearnerSnapshot{
		TierPerformance:  l.TierStats(),
		MutationHistory:  l.History(),
		ThresholdHistory: l.ThresholdHistory(),
		SavedAt:          time.Now().UTC(),
	}
}

func (l *AdaptiveLearner) restore(s domain.LearnerSnapshot) {
	l.clear()
	for t, p := range s.TierPerformance {
		if !t.Valid() {
			continue
		}
		perf := p
		l.performance[t] = &perf
	}
	for _, r := range s.MutationHistory {
		if r.Tier.Valid() {
			l.history = append(l.history, r)
		}
	}
	if len(l.history) > l.cfg.HistoryWindow {
		l.history = l.history[len(l.history)-l.cfg.HistoryWindow:]
	}
	l.thresholdHistory = s.ThresholdHistory
	if len(l.thresholdHistory) > maxThresholdHistory {
		l.thresholdHistory = l.thresholdHistory[len(l.thresholdHistory)-maxThresholdHistory:]
	}
}

func (l *AdaptiveLearner) persist(ctx context.Context) {
	if l.store == nil {
		return
	}
	blob, err := json.Marshal(l.Snapshot())
	if err != nil {
		l.logger.Warn("failed to encode learner state", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.PersistTimeout)
	defer cancel()
	if err := l.store.Save(ctx, blob); err != nil {
		l.logger.Warn("failed to persist learner state", zap.Error(err))
	}
}

func (l *AdaptiveLearner) load(ctx context.Context) {
	if l.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.PersistTimeout)
	defer cancel()
	blob, err := l.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.logger.Warn("failed to load learner state, starting fresh", zap.Error(err))
		}
		return
	}
	if len(blob) == 0 {
		return
	}

	var snap domain.LearnerSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		l.logger.Warn("failed to decode learner state, starting fresh", zap.Error(err))
		return
	}
	l.restore(snap)
	l.logger.Info("learner state restored",
		zap.Int("total_attempts", l.totalAttempts()),
		zap.Int("history", len(l.history)))
}
