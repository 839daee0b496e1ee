package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/Harshitk-cp/evotier/internal/config"
	"github.com/Harshitk-cp/evotier/internal/domain"
	"github.com/Harshitk-cp/evotier/internal/service"
	"github.com/Harshitk-cp/evotier/internal/store"
	"github.com/spf13/cobra"
)

var (
	stateFile          string
	stateHistoryWindow int
	stateMinSamples    int
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show recommendations from a persisted learner state file",
	Long: `Load the learner state written by the server (STATE_FILE) and print
per-tier performance and the learner's recommendations. Pass the server's
HISTORY_WINDOW and MIN_SAMPLES (read from the environment by default) so the
numbers match what the server reports.

Examples:
  tierctl state --state-file ./data/learner.json
  tierctl state --state-file ./data/learner.json -o yaml
  tierctl state --state-file ./data/learner.json --history-window 50 --min-samples 10`,
	RunE: runState,
}

func init() {
	stateCmd.Flags().StringVar(&stateFile, "state-file", "", "Path to the learner state file")
	stateCmd.Flags().IntVar(&stateHistoryWindow, "history-window", config.HistoryWindow(), "Learner history window the state was written with")
	stateCmd.Flags().IntVar(&stateMinSamples, "min-samples", config.MinSamples(), "Samples required before thresholds adapt")
	_ = stateCmd.MarkFlagRequired("state-file")
	rootCmd.AddCommand(stateCmd)
}

type stateResult struct {
	Path            string                                 `json:"path" yaml:"path"`
	TierStats       map[domain.Tier]domain.TierPerformance `json:"tier_stats" yaml:"tier_stats"`
	Recommendations domain.Recommendations                 `json:"recommendations" yaml:"recommendations"`
}

func runState(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(stateFile); err != nil {
		return fmt.Errorf("state file: %w", err)
	}

	if stateHistoryWindow <= 0 {
		return fmt.Errorf("history window must be positive, got %d", stateHistoryWindow)
	}
	if stateMinSamples < 0 {
		return fmt.Errorf("min samples must not be negative, got %d", stateMinSamples)
	}

	cfg := service.DefaultLearnerConfig()
	cfg.HistoryWindow = stateHistoryWindow
	cfg.MinSamples = stateMinSamples

	fs := store.NewFileStateStore(stateFile)
	learner := service.NewAdaptiveLearner(context.Background(), cfg, fs, newLogger())

	result := stateResult{
		Path:            fs.Path(),
		TierStats:       learner.TierStats(),
		Recommendations: learner.TierRecommendations(),
	}

	return writeResult(cmd.OutOrStdout(), result, func(tw *tabwriter.Writer) {
		recs := result.Recommendations
		fmt.Fprintf(tw, "TIER\tATTEMPTS\tSUCCESS\tRECENT\tAVG DELTA\tTREND\tTHRESHOLD\n")
		for _, t := range domain.AllTiers() {
			r := recs.Tiers[t]
			fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.0f%%\t%+.4f\t%s\t%s\n",
				t, r.Attempts, r.SuccessRate*100, r.RecentSuccessRate*100, r.AvgFitnessDelta, r.Trend, recs.ThresholdRecommendations[t])
		}
		fmt.Fprintf(tw, "\nRECOMMENDED\t%s (confidence %.2f, %d attempts)\n", recs.RecommendedTier, recs.Confidence, recs.TotalAttempts)

		for _, in := range recs.Insights {
			fmt.Fprintf(tw, "  - %s\n", in)
		}
	})
}
