package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	// Global flags
	output  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tierctl",
	Short: "Inspect and simulate mutation tier selection",
	Long: `tierctl is the operator CLI for the evotier selection engine.

Commands:
  simulate   Tier distribution under a pair of thresholds
  assess     Score a strategy and route a mutation intent
  state      Recommendations from a persisted learner state file
  version    Show version information`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (json, table, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger returns a development logger with --verbose and a no-op logger
// otherwise.
func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// writeResult renders v in the selected output format. table is used for
// the default table format.
func writeResult(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()

	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()

	default:
		return fmt.Errorf("unknown output format %q (json, table, yaml)", output)
	}
}
