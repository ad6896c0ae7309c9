// commands.go contains the cobra command definitions and their flag
// configurations. Each builder wires a command to its handler.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildSynthCmd() *cobra.Command {
	var (
		configPath string
		rows       int
		columns    int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "synth <sample.csv>",
		Short: "Generate synthetic data imitating a sample CSV",
		Long: `Generate synthetic rows that imitate a sample CSV's schema.

A model from the configured candidate list proposes a row specification;
if every candidate fails, a deterministic heuristic derived from the
column names takes over.`,
		Example: `  # 5000 rows from a sample
  evalforge synth marketing_sample.csv --rows 5000 -o synthetic.csv

  # only the first 3 columns
  evalforge synth marketing_sample.csv --rows 1000 --columns 3 -o out.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(cmd.Context(), configPath, args[0], output, rows, columns)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().IntVarP(&rows, "rows", "r", 0, "Number of rows to generate (default from config)")
	cmd.Flags().IntVar(&columns, "columns", 0, "Use only the first N columns of the sample")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output CSV path (default <sample>_synthetic_<rows>.csv)")
	return cmd
}

func buildEvalsCmd() *cobra.Command {
	var (
		configPath string
		outputDir  string
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "evals <data.csv>",
		Short: "Derive evaluation cases from a dataset",
		Long: `Derive the evaluation-case corpus from a CSV dataset: aggregation,
time-comparison, and custom-metric cases, each with its expected answer
computed from the data. Writes the combined corpus plus one file per
category.`,
		Example: `  evalforge evals synthetic.csv -o evals/
  evalforge evals synthetic.csv --seed 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvals(configPath, args[0], outputDir, seed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for the corpus files")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for case selection (0 seeds from the clock)")
	return cmd
}

func buildGradeCmd() *cobra.Command {
	var (
		configPath string
		casesPath  string
		reportPath string
	)

	cmd := &cobra.Command{
		Use:   "grade <data.csv>",
		Short: "Grade an evaluation corpus against a dataset",
		Long: `Re-derive each case's answer from the dataset and compare it with the
stored expected result using the tolerant comparator. Prints per
category accuracy and writes an optional JSON report.`,
		Example: `  evalforge grade synthetic.csv --cases eval_dataset_all.json
  evalforge grade synthetic.csv --cases eval_dataset_all.json --report report.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if casesPath == "" {
				return fmt.Errorf("--cases is required")
			}
			return runGrade(configPath, args[0], casesPath, reportPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().StringVar(&casesPath, "cases", "", "Path to the corpus JSON file")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the full grading report to this JSON file")
	return cmd
}

func buildPipelineCmd() *cobra.Command {
	var (
		configPath string
		rows       int
		columns    int
		baseDir    string
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "pipeline <sample.csv>",
		Short: "Run the full dataset pipeline",
		Long: `Run the end-to-end workflow: scaffold the dataset folder, synthesize
data from the sample, derive the evaluation corpus, and write a README
summary.`,
		Example: `  evalforge pipeline appsflyer.csv --rows 5000
  evalforge pipeline appsflyer.csv --rows 5000 --columns 20 --base-dir my_datasets`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), configPath, args[0], baseDir, rows, columns, seed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().IntVarP(&rows, "rows", "r", 0, "Number of synthetic rows (default from config)")
	cmd.Flags().IntVar(&columns, "columns", 0, "Use only the first N columns of the sample")
	cmd.Flags().StringVarP(&baseDir, "base-dir", "b", "datasets", "Base directory for datasets")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for the run (0 seeds from the clock)")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("evalforge %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
