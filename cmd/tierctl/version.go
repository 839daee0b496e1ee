package main

import (
	"fmt"

	"github.com/Harshitk-cp/evotier/internal/buildconfig"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the version, build information, and runtime details.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildconfig.VersionInfo()
		if output == "json" || output == "yaml" {
			return writeResult(cmd.OutOrStdout(), info, nil)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tierctl version %s\n", info["version"])
		fmt.Fprintf(cmd.OutOrStdout(), "  Commit: %s\n", info["commit"])
		fmt.Fprintf(cmd.OutOrStdout(), "  Built: %s\n", info["build_date"])
		fmt.Fprintf(cmd.OutOrStdout(), "  Go version: %s\n", info["go_version"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
