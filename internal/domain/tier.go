package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidTier = errors.New("invalid tier")

// Tier is a mutation mechanism class, ordered by blast radius.
type Tier int

const (
	Tier1 Tier = 1 // configuration-level
	Tier2 Tier = 2 // factor-level
	Tier3 Tier = 3 // structural
)

func ParseTier(n int) (Tier, error) {
	t := Tier(n)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTier, n)
	}
	return t, nil
}

func (t Tier) Valid() bool {
	switch t {
	case Tier1, Tier2, Tier3:
		return true
	}
	return false
}

func (t Tier) Number() int {
	return int(t)
}

func (t Tier) String() string {
	switch t {
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Level names the kind of editor a tier dispatches to.
func (t Tier) Level() string {
	switch t {
	case Tier1:
		return "config"
	case Tier2:
		return "factor"
	case Tier3:
		return "structural"
	default:
		return "unknown"
	}
}

func AllTiers() []Tier {
	return []Tier{Tier1, Tier2, Tier3}
}

type TierBehavior struct {
	Tier        Tier
	Description string
	// RiskTolerance is the highest risk score the tier is meant to absorb.
	RiskTolerance float64
}

var TierBehaviors = map[Tier]TierBehavior{
	Tier1: {
		Tier:          Tier1,
		Description:   "configuration-level parameter edits",
		RiskTolerance: 0.3,
	},
	Tier2: {
		Tier:          Tier2,
		Description:   "factor-level edits within the existing graph",
		RiskTolerance: 0.7,
	},
	Tier3: {
		Tier:          Tier3,
		Description:   "structural edits to the factor graph",
		RiskTolerance: 1.0,
	},
}

func GetTierBehavior(t Tier) TierBehavior {
	if b, ok := TierBehaviors[t]; ok {
		return b
	}
	return TierBehaviors[Tier2]
}

const (
	RiskBucketLow    = "low"
	RiskBucketMedium = "medium"
	RiskBucketHigh   = "high"
)

// RiskBucket labels a risk score for rationale text. The bucket edges are
// fixed and do not follow the router's adaptive thresholds.
func RiskBucket(score float64) string {
	switch {
	case score < 0.3:
		return RiskBucketLow
	case score < 0.7:
		return RiskBucketMedium
	default:
		return RiskBucketHigh
	}
}
