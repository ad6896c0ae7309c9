// Package main provides the evalforge CLI: synthetic tabular data
// generation and evaluation-case derivation/grading over CSV datasets.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "evalforge",
		Short: "Evalforge - synthetic data and evaluation-case pipeline",
		Long: `Evalforge synthesizes tabular datasets from a sample CSV and derives
evaluation cases from them: group-by aggregations, time-window
comparisons, and custom business metrics, each paired with a
deterministically computed expected answer for later grading.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildSynthCmd(),
		buildEvalsCmd(),
		buildGradeCmd(),
		buildPipelineCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}
