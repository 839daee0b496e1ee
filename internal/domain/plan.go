package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MutationIntent describes the desired change independent of the tier that
// will carry it out.
type MutationIntent string

const (
	IntentAddFactor       MutationIntent = "add_factor"
	IntentRemoveFactor    MutationIntent = "remove_factor"
	IntentModifyFactor    MutationIntent = "modify_factor"
	IntentAdjustParameter MutationIntent = "adjust_parameter"
	IntentChangeLogic     MutationIntent = "change_logic"
)

func AllIntents() []MutationIntent {
	return []MutationIntent{
		IntentAddFactor,
		IntentRemoveFactor,
		IntentModifyFactor,
		IntentAdjustParameter,
		IntentChangeLogic,
	}
}

var mutationTypes = map[MutationIntent][3]string{
	IntentAddFactor:       {"enable_factor", "add_factor", "insert_subgraph"},
	IntentRemoveFactor:    {"disable_factor", "remove_factor", "prune_subgraph"},
	IntentModifyFactor:    {"tune_factor_params", "rewrite_factor", "restructure_factor"},
	IntentAdjustParameter: {"tune_parameters", "adjust_factor_params", "rebalance_parameters"},
	IntentChangeLogic:     {"adjust_thresholds", "modify_factor_logic", "rewire_dependencies"},
}

// MutationTypeFor maps an intent onto the operation name understood by the
// editor for tier t. Unmapped pairs get a generated "tier<N>_<intent>" name.
func MutationTypeFor(intent MutationIntent, t Tier) string {
	if names, ok := mutationTypes[intent]; ok && t.Valid() {
		return names[t.Number()-1]
	}
	return fmt.Sprintf("tier%d_%s", t.Number(), intent)
}

// MutationPlan is the routing decision handed to the mutation editors.
type MutationPlan struct {
	ID           uuid.UUID      `json:"id"`
	Tier         Tier           `json:"tier"`
	MutationType string         `json:"mutation_type"`
	Config       map[string]any `json:"config"`
	RiskScore    float64        `json:"risk_score"`
	Rationale    string         `json:"rationale"`
	CreatedAt    time.Time      `json:"created_at"`
}

// StrategyID returns the strategy identifier recorded in the plan config.
func (p MutationPlan) StrategyID() string {
	id, _ := p.Config["strategy_id"].(string)
	return id
}

// ThresholdState holds the two routing thresholds.
// Invariant: 0 <= Tier1 < Tier2 <= 1.
type ThresholdState struct {
	Tier1 float64 `json:"tier1_threshold"`
	Tier2 float64 `json:"tier2_threshold"`
}

func DefaultThresholds() ThresholdState {
	return ThresholdState{Tier1: 0.3, Tier2: 0.7}
}

func (s ThresholdState) Validate() error {
	if s.Tier1 < 0 || s.Tier1 > 1 {
		return fmt.Errorf("tier1 threshold %.4f outside [0,1]", s.Tier1)
	}
	if s.Tier2 < 0 || s.Tier2 > 1 {
		return fmt.Errorf("tier2 threshold %.4f outside [0,1]", s.Tier2)
	}
	if s.Tier1 >= s.Tier2 {
		return fmt.Errorf("tier1 threshold %.4f must be below tier2 threshold %.4f", s.Tier1, s.Tier2)
	}
	return nil
}
