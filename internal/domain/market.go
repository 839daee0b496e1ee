package domain

// PriceSeries is an ordered close-price series, oldest first. Volume is
// optional and, when present, aligned with Close.
type PriceSeries struct {
	Symbol string    `json:"symbol,omitempty"`
	Close  []float64 `json:"close"`
	Volume []float64 `json:"volume,omitempty"`
}

func (p *PriceSeries) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Close)
}

// RiskMetrics is the result of one risk assessment. Each component is in [0,1].
type RiskMetrics struct {
	StrategyRisk float64        `json:"strategy_risk"`
	MarketRisk   float64        `json:"market_risk"`
	MutationRisk float64        `json:"mutation_risk"`
	OverallRisk  float64        `json:"overall_risk"`
	Details      map[string]any `json:"details,omitempty"`
}
