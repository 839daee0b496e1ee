package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/service"
	"github.com/spf13/cobra"
)

var assessInput string

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score a strategy and route a mutation intent",
	Long: `Read a selection request from a JSON file and print the risk metrics
and the mutation plan the default engine would issue.

Input format:
  {
    "strategy": {"strategy_id": "s1", "depth": 3, "factor_count": 5, "code_lines": 80},
    "factors": [{"name": "ret", "depends_on": ["close"], "code": "..."}],
    "closes": [101.2, 100.8, 102.5],
    "intent": "add_factor",
    "override_tier": 2
  }

"factors" replaces "strategy" when both are given. Use --input - for stdin.`,
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVarP(&assessInput, "input", "i", "-", "Request file (- for stdin)")
	rootCmd.AddCommand(assessCmd)
}

type assessRequest struct {
	Strategy     *domain.StrategySummary `json:"strategy,omitempty"`
	Factors      []domain.Factor         `json:"factors,omitempty"`
	Closes       []float64               `json:"closes,omitempty"`
	Intent       domain.MutationIntent   `json:"intent"`
	OverrideTier *int                    `json:"override_tier,omitempty"`
}

type assessResult struct {
	Risk domain.RiskMetrics  `json:"risk" yaml:"risk"`
	Plan domain.MutationPlan `json:"plan" yaml:"plan"`
}

func runAssess(cmd *cobra.Command, args []string) error {
	req, err := readAssessRequest(cmd.InOrStdin())
	if err != nil {
		return err
	}

	sel := service.SelectionRequest{Strategy: req.Strategy, Intent: req.Intent}
	if len(req.Factors) > 0 {
		strategyID := ""
		if req.Strategy != nil {
			strategyID = req.Strategy.StrategyID
		}
		if sel.Strategy, err = domain.SummarizeFactors(strategyID, req.Factors); err != nil {
			return err
		}
	}
	if len(req.Closes) > 0 {
		sel.Prices = &domain.PriceSeries{Close: req.Closes}
	}
	if req.OverrideTier != nil {
		tier, err := domain.ParseTier(*req.OverrideTier)
		if err != nil {
			return err
		}
		sel.Override = &tier
	}

	logger := newLogger()
	cfg := service.DefaultManagerConfig()

	assessor, err := service.NewRiskAssessor(cfg.Weights, logger)
	if err != nil {
		return err
	}
	risk, err := assessor.AssessOverallRisk(sel.Strategy, sel.Prices, sel.Intent, nil)
	if err != nil {
		return err
	}

	mgr, err := service.NewTierSelectionManager(context.Background(), cfg, nil, logger)
	if err != nil {
		return err
	}
	plan, err := mgr.SelectMutationTier(sel)
	if err != nil {
		return err
	}

	result := assessResult{Risk: risk, Plan: plan}
	return writeResult(cmd.OutOrStdout(), result, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "STRATEGY RISK\t%.3f\n", risk.StrategyRisk)
		fmt.Fprintf(tw, "MARKET RISK\t%.3f\n", risk.MarketRisk)
		fmt.Fprintf(tw, "MUTATION RISK\t%.3f\n", risk.MutationRisk)
		fmt.Fprintf(tw, "OVERALL RISK\t%.3f (%s)\n", risk.OverallRisk, domain.RiskBucket(risk.OverallRisk))
		fmt.Fprintf(tw, "TIER\t%s (%s)\n", plan.Tier, plan.Tier.Level())
		fmt.Fprintf(tw, "MUTATION\t%s\n", plan.MutationType)
		fmt.Fprintf(tw, "RATIONALE\t%s\n", plan.Rationale)
	})
}

func readAssessRequest(stdin io.Reader) (assessRequest, error) {
	var r io.Reader = stdin
	if assessInput != "-" {
		f, err := os.Open(assessInput)
		if err != nil {
			return assessRequest{}, fmt.Errorf("open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var req assessRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return assessRequest{}, fmt.Errorf("decode input: %w", err)
	}
	if req.Intent == "" {
		return assessRequest{}, fmt.Errorf("intent is required")
	}
	return req, nil
}
