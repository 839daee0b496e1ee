package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFactorCycle     = errors.New("factor dependency cycle")
	ErrDuplicateFactor = errors.New("duplicate factor name")
)

// StrategySummary is the size information the risk assessor needs from a
// strategy's factor graph. A nil *StrategySummary means the graph was not
// available and is scored as maximum risk.
type StrategySummary struct {
	StrategyID  string `json:"strategy_id"`
	Depth       int    `json:"depth"`
	FactorCount int    `json:"factor_count"`
	CodeLines   int    `json:"code_lines"`
}

func (s StrategySummary) Validate() error {
	if s.Depth < 0 {
		return fmt.Errorf("depth must be non-negative, got %d", s.Depth)
	}
	if s.FactorCount < 0 {
		return fmt.Errorf("factor_count must be non-negative, got %d", s.FactorCount)
	}
	if s.CodeLines < 0 {
		return fmt.Errorf("code_lines must be non-negative, got %d", s.CodeLines)
	}
	return nil
}

// Factor is one node of a strategy's computation graph.
type Factor struct {
	Name      string   `json:"name"`
	DependsOn []string `json:"depends_on,omitempty"`
	Code      string   `json:"code,omitempty"`
}

// SummarizeFactors computes a StrategySummary from a factor list. Depth is
// the number of factors on the longest dependency chain. Dependencies on
// names not present in the list are treated as external inputs.
func SummarizeFactors(strategyID string, factors []Factor) (*StrategySummary, error) {
	byName := make(map[string]Factor, len(factors))
	for _, f := range factors {
		if _, dup := byName[f.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFactor, f.Name)
		}
		byName[f.Name] = f
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(factors))
	depth := make(map[string]int, len(factors))

	var visit func(name string) (int, error)
	visit = func(name string) (int, error) {
		switch state[name] {
		case visiting:
			return 0, fmt.Errorf("%w at %q", ErrFactorCycle, name)
		case done:
			return depth[name], nil
		}
		state[name] = visiting
		longest := 0
		for _, dep := range byName[name].DependsOn {
			if _, ok := byName[dep]; !ok {
				continue
			}
			d, err := visit(dep)
			if err != nil {
				return 0, err
			}
			if d > longest {
				longest = d
			}
		}
		state[name] = done
		depth[name] = longest + 1
		return depth[name], nil
	}

	summary := &StrategySummary{StrategyID: strategyID, FactorCount: len(factors)}
	for _, f := range factors {
		d, err := visit(f.Name)
		if err != nil {
			return nil, err
		}
		if d > summary.Depth {
			summary.Depth = d
		}
		summary.CodeLines += countCodeLines(f.Code)
	}
	return summary, nil
}

func countCodeLines(code string) int {
	n := 0
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
