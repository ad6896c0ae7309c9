// handlers.go contains the RunE handler functions for the CLI
// commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/evalforge/internal/config"
	"github.com/haasonsaas/evalforge/internal/evalcase"
	"github.com/haasonsaas/evalforge/internal/generator"
	"github.com/haasonsaas/evalforge/internal/grader"
	"github.com/haasonsaas/evalforge/internal/observability"
	"github.com/haasonsaas/evalforge/internal/pipeline"
	"github.com/haasonsaas/evalforge/internal/synth"
	"github.com/haasonsaas/evalforge/internal/table"
)

// providerEnvKeys maps provider names to their conventional API key
// environment variables, consulted when the config has no key.
var providerEnvKeys = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// newRNG seeds from the clock when seed is zero.
func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)) // #nosec G404 -- statistical data generation
}

// providerAPIKey resolves a provider's key from config, then the
// environment.
func providerAPIKey(cfg *config.Config, provider string) string {
	if p, ok := cfg.Synthesis.Providers[provider]; ok && p.APIKey != "" {
		return p.APIKey
	}
	if env, ok := providerEnvKeys[provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

// buildSynthesizer wires the configured model candidates to their
// provider clients. Candidates whose provider has no API key are
// dropped with a warning; with none left the heuristic path carries
// the run.
func buildSynthesizer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*synth.Synthesizer, error) {
	candidates, err := cfg.Candidates()
	if err != nil {
		return nil, err
	}

	sources := make(map[string]synth.SpecSource)
	var usable []synth.Candidate
	for _, cand := range candidates {
		if _, ok := sources[cand.Provider]; ok {
			usable = append(usable, cand)
			continue
		}
		key := providerAPIKey(cfg, cand.Provider)
		if key == "" {
			logger.Warn("dropping model candidate, no API key", "provider", cand.Provider, "model", cand.Model)
			continue
		}

		var source synth.SpecSource
		switch cand.Provider {
		case "gemini":
			source, err = synth.NewGeminiSource(ctx, key)
		case "openai":
			source, err = synth.NewOpenAISource(key)
		case "anthropic":
			source, err = synth.NewAnthropicSource(key)
		default:
			logger.Warn("dropping model candidate, unknown provider", "provider", cand.Provider)
			continue
		}
		if err != nil {
			return nil, err
		}
		sources[cand.Provider] = source
		usable = append(usable, cand)
	}

	return synth.NewSynthesizer(sources, synth.Options{
		Candidates:       usable,
		MaxAttempts:      cfg.Synthesis.MaxAttempts,
		DisableHeuristic: cfg.Synthesis.DisableHeuristic,
		Logger:           logger,
	})
}

func runSynth(ctx context.Context, configPath, input, output string, rows, columns int) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if rows <= 0 {
		rows = cfg.Synthesis.Rows
	}
	if output == "" {
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		output = fmt.Sprintf("%s_synthetic_%d.csv", stem, rows)
	}

	header, records, err := table.LoadRecords(input)
	if err != nil {
		return err
	}
	if columns > 0 && columns < len(header) {
		header, records = truncate(header, records, columns)
	}

	schema, err := synth.AnalyzeRecords(header, records)
	if err != nil {
		return err
	}

	synthesizer, err := buildSynthesizer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	synHeader, synRecords, err := synthesizer.Generate(ctx, schema, rows, newRNG(cfg.Generation.Seed))
	if err != nil {
		return err
	}
	if err := table.WriteCSV(output, synHeader, synRecords); err != nil {
		return err
	}

	fmt.Printf("Generated %d rows x %d columns: %s\n", len(synRecords), len(synHeader), output)
	return nil
}

func truncate(header []string, records [][]string, n int) ([]string, [][]string) {
	out := make([][]string, len(records))
	for i, rec := range records {
		if len(rec) > n {
			rec = rec[:n]
		}
		out[i] = rec
	}
	return header[:n], out
}

func runEvals(configPath, data, outputDir string, seed int64) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	tbl, err := table.LoadCSV(data)
	if err != nil {
		return err
	}
	if seed == 0 {
		seed = cfg.Generation.Seed
	}

	genCfg := generator.Config{
		AggregationCases:       cfg.Generation.AggregationCases,
		MultiAggregationCases:  cfg.Generation.MultiAggregationCases,
		TimeComparisonCases:    cfg.Generation.TimeComparisonCases,
		GroupedComparisonCases: cfg.Generation.GroupedComparisonCases,
		CustomMetricCases:      cfg.Generation.CustomMetricCases,
		GroupedMetricCases:     cfg.Generation.GroupedMetricCases,
		SourceData:             filepath.Base(data),
	}
	corpus, err := generator.New(tbl, newRNG(seed), logger).Corpus(genCfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", outputDir, err)
	}
	files, err := pipeline.WriteCorpusFiles(outputDir, corpus)
	if err != nil {
		return err
	}

	fmt.Printf("Generated %d evaluation cases from %s\n", corpus.Metadata.TotalCases, data)
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
	return nil
}

func runGrade(configPath, data, casesPath, reportPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	tbl, err := table.LoadCSV(data)
	if err != nil {
		return err
	}
	corpus, err := evalcase.Load(casesPath)
	if err != nil {
		return err
	}

	tolerances := grader.Tolerances{
		Generic: cfg.Grading.Tolerance,
		Window:  cfg.Grading.WindowTolerance,
	}
	report := grader.New(tbl, tolerances, logger).Grade(corpus)

	printReport(report)

	if reportPath != "" {
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		if err := os.WriteFile(reportPath, append(payload, '\n'), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("\nReport written to %s\n", reportPath)
	}

	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d cases failed", report.Failed(), len(report.Results))
	}
	return nil
}

func printReport(report *grader.Report) {
	fmt.Printf("Graded %d cases: %d passed, %d failed (%.1f%% accuracy)\n",
		len(report.Results), report.Passed(), report.Failed(), report.Accuracy())

	tally := report.ByFamily()
	families := make([]string, 0, len(tally))
	for family := range tally {
		families = append(families, family)
	}
	sort.Strings(families)
	for _, family := range families {
		t := tally[family]
		fmt.Printf("  %-20s %d/%d\n", family, t[0], t[1])
	}

	for _, res := range report.Results {
		if res.Outcome == grader.Passed {
			continue
		}
		detail := res.Mismatch
		if detail == "" {
			detail = res.Error
		}
		fmt.Printf("  FAIL %s (%s): %s\n", res.ID, res.Category, detail)
	}
}

func runPipeline(ctx context.Context, configPath, input, baseDir string, rows, columns int, seed int64) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if rows <= 0 {
		rows = cfg.Synthesis.Rows
	}
	if seed == 0 {
		seed = cfg.Generation.Seed
	}

	synthesizer, err := buildSynthesizer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	genCfg := generator.Config{
		AggregationCases:       cfg.Generation.AggregationCases,
		MultiAggregationCases:  cfg.Generation.MultiAggregationCases,
		TimeComparisonCases:    cfg.Generation.TimeComparisonCases,
		GroupedComparisonCases: cfg.Generation.GroupedComparisonCases,
		CustomMetricCases:      cfg.Generation.CustomMetricCases,
		GroupedMetricCases:     cfg.Generation.GroupedMetricCases,
		SourceData:             cfg.Generation.SourceData,
	}

	result, err := pipeline.New(synthesizer, genCfg, logger).Run(ctx, pipeline.Options{
		InputFile: input,
		Rows:      rows,
		Columns:   columns,
		BaseDir:   baseDir,
		Seed:      seed,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Pipeline complete: %s\n", result.Layout.OutputDir)
	fmt.Printf("  synthetic data: %s (%d rows x %d columns)\n",
		filepath.Base(result.Layout.SyntheticFile), result.Rows, result.Columns)
	fmt.Printf("  evaluation cases: %d\n", result.TotalCases)
	for _, f := range result.CorpusFiles {
		fmt.Printf("  %s\n", filepath.Base(f))
	}
	return nil
}
