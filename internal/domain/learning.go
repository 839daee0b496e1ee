package domain

import (
	"time"

	"github.com/google/uuid"
)

// TierStats is the attempts/successes pair used for mutation risk.
type TierStats struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

// TierPerformance accumulates outcome statistics for one tier.
type TierPerformance struct {
	Attempts          int     `json:"attempts"`
	Successes         int     `json:"successes"`
	Failures          int     `json:"failures"`
	AvgFitnessDelta   float64 `json:"avg_fitness_delta"`
	RecentSuccessRate float64 `json:"recent_success_rate"`
}

func (p TierPerformance) SuccessRate() float64 {
	if p.Attempts == 0 {
		return 0
	}
	return float64(p.Successes) / float64(p.Attempts)
}

// OutcomeMetrics carries post-mutation measurements reported by the caller.
type OutcomeMetrics struct {
	FitnessDelta *float64       `json:"fitness_delta,omitempty"`
	MutationType string         `json:"mutation_type,omitempty"`
	StrategyID   string         `json:"strategy_id,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

type MutationHistoryRecord struct {
	Tier         Tier      `json:"tier"`
	MutationType string    `json:"mutation_type,omitempty"`
	Success      bool      `json:"success"`
	FitnessDelta *float64  `json:"fitness_delta,omitempty"`
	StrategyID   string    `json:"strategy_id,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
}

type ThresholdHistoryEntry struct {
	Tier1       float64          `json:"tier1_threshold"`
	Tier2       float64          `json:"tier2_threshold"`
	RecentRates map[Tier]float64 `json:"recent_success_rates"`
	RecordedAt  time.Time        `json:"recorded_at"`
}

// LearnerSnapshot is the persisted form of the adaptive learner.
type LearnerSnapshot struct {
	TierPerformance  map[Tier]TierPerformance `json:"tier_performance"`
	MutationHistory  []MutationHistoryRecord  `json:"mutation_history"`
	ThresholdHistory []ThresholdHistoryEntry  `json:"threshold_history"`
	SavedAt          time.Time                `json:"saved_at"`
}

type ThresholdDeltas struct {
	Tier1 float64 `json:"tier1"`
	Tier2 float64 `json:"tier2"`
}

// ThresholdAdjustment is the learner's answer to an adaptation request. When
// Adjusted is false, Tier1/Tier2 echo the current thresholds and Reason says why.
type ThresholdAdjustment struct {
	Adjusted bool            `json:"adjusted"`
	Reason   string          `json:"reason,omitempty"`
	Tier1    float64         `json:"tier1_threshold"`
	Tier2    float64         `json:"tier2_threshold"`
	Deltas   ThresholdDeltas `json:"deltas"`
}

const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

const (
	ThresholdExpand   = "expand"
	ThresholdReduce   = "reduce"
	ThresholdMaintain = "maintain"
	ThresholdNeedData = "need more data"
)

type TierRecommendation struct {
	SuccessRate       float64 `json:"success_rate"`
	RecentSuccessRate float64 `json:"recent_success_rate"`
	AvgFitnessDelta   float64 `json:"avg_fitness_delta"`
	Attempts          int     `json:"attempts"`
	Trend             string  `json:"trend"`
}

type Recommendations struct {
	Tiers                    map[Tier]TierRecommendation `json:"tiers"`
	RecommendedTier          Tier                        `json:"recommended_tier"`
	Confidence               float64                     `json:"confidence"`
	TotalAttempts            int                         `json:"total_attempts"`
	Insights                 []string                    `json:"insights"`
	ThresholdRecommendations map[Tier]string             `json:"threshold_recommendations"`
}

// DecisionRecord is a persisted routing decision and, once reported, its outcome.
type DecisionRecord struct {
	PlanID       uuid.UUID      `json:"plan_id"`
	StrategyID   string         `json:"strategy_id"`
	Tier         Tier           `json:"tier"`
	MutationType string         `json:"mutation_type"`
	RiskScore    float64        `json:"risk_score"`
	Rationale    string         `json:"rationale"`
	Config       map[string]any `json:"config,omitempty"`
	Success      *bool          `json:"success,omitempty"`
	FitnessDelta *float64       `json:"fitness_delta,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
}

func NewDecisionRecord(p MutationPlan) *DecisionRecord {
	return &DecisionRecord{
		PlanID:       p.ID,
		StrategyID:   p.StrategyID(),
		Tier:         p.Tier,
		MutationType: p.MutationType,
		RiskScore:    p.RiskScore,
		Rationale:    p.Rationale,
		Config:       p.Config,
		CreatedAt:    p.CreatedAt,
	}
}

// Plan rebuilds the mutation plan the record was created from.
func (r DecisionRecord) Plan() MutationPlan {
	return MutationPlan{
		ID:           r.PlanID,
		Tier:         r.Tier,
		MutationType: r.MutationType,
		Config:       r.Config,
		RiskScore:    r.RiskScore,
		Rationale:    r.Rationale,
		CreatedAt:    r.CreatedAt,
	}
}

func (r DecisionRecord) Resolved() bool {
	return r.ResolvedAt != nil
}
