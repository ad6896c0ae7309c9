// Package pipeline orchestrates the end-to-end dataset workflow:
// scaffold the dataset folder, synthesize data imitating a sample CSV,
// derive the evaluation-case corpus from the synthetic data, and write
// a README summarizing the run.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/haasonsaas/evalforge/internal/evalcase"
	"github.com/haasonsaas/evalforge/internal/generator"
	"github.com/haasonsaas/evalforge/internal/synth"
	"github.com/haasonsaas/evalforge/internal/table"
)

// Corpus file names inside the output directory.
const (
	CombinedFile       = "eval_dataset_all.json"
	AggregationFile    = "eval_dataset_aggregation.json"
	TimeComparisonFile = "eval_dataset_time_comparison.json"
	CustomMetricsFile  = "eval_dataset_custom_metrics.json"
	ReadmeFile         = "README.md"
)

// Options configures one pipeline run.
type Options struct {
	// InputFile is the sample CSV the synthetic data imitates.
	InputFile string

	// Rows is the synthetic row count.
	Rows int

	// Columns optionally truncates the sample schema to its first N
	// columns; 0 keeps all of them.
	Columns int

	// BaseDir is the dataset root, "datasets" by default.
	BaseDir string

	// Seed fixes both synthesis and case-generation randomness; 0
	// seeds from the clock.
	Seed int64
}

// Layout is the resolved on-disk structure for a run:
// <base>/<Name>/<name>_sample.csv next to <base>/<Name>/<rows>/ holding
// the synthetic CSV, the corpus files, and the README.
type Layout struct {
	DatasetName   string
	DatasetDir    string
	OutputDir     string
	SampleFile    string
	SyntheticFile string
}

// Result reports what a run produced.
type Result struct {
	Layout      Layout
	CorpusFiles []string
	TotalCases  int
	Rows        int
	Columns     int
}

// Pipeline wires synthesis and case generation together.
type Pipeline struct {
	synthesizer *synth.Synthesizer
	genCfg      generator.Config
	log         *slog.Logger
}

// New creates a pipeline. The synthesizer handles the model/heuristic
// spec acquisition; genCfg sets the corpus mix.
func New(synthesizer *synth.Synthesizer, genCfg generator.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{synthesizer: synthesizer, genCfg: genCfg, log: logger}
}

// DatasetName derives the dataset name from the input filename:
// "appsflyer_sample.csv" and "appsflyer.csv" both become "Appsflyer",
// "ad spend.csv" becomes "AdSpend".
func DatasetName(inputFile string) string {
	stem := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	stem = strings.TrimSuffix(stem, "_sample")
	words := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	var sb strings.Builder
	for _, w := range words {
		sb.WriteString(strings.ToUpper(w[:1]))
		sb.WriteString(strings.ToLower(w[1:]))
	}
	return sb.String()
}

// ResolveLayout computes the folder structure for the options without
// touching the filesystem.
func ResolveLayout(opts Options) Layout {
	name := DatasetName(opts.InputFile)
	baseDir := opts.BaseDir
	if baseDir == "" {
		baseDir = "datasets"
	}

	folder := fmt.Sprintf("%d", opts.Rows)
	syntheticName := fmt.Sprintf("%s_synthetic_%d.csv", strings.ToLower(name), opts.Rows)
	if opts.Columns > 0 {
		folder = fmt.Sprintf("%drows_%dcols", opts.Rows, opts.Columns)
		syntheticName = fmt.Sprintf("%s_synthetic_%drows_%dcols.csv", strings.ToLower(name), opts.Rows, opts.Columns)
	}

	datasetDir := filepath.Join(baseDir, name)
	outputDir := filepath.Join(datasetDir, folder)
	return Layout{
		DatasetName:   name,
		DatasetDir:    datasetDir,
		OutputDir:     outputDir,
		SampleFile:    filepath.Join(datasetDir, strings.ToLower(name)+"_sample.csv"),
		SyntheticFile: filepath.Join(outputDir, syntheticName),
	}
}

// Run executes the full workflow.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Rows <= 0 {
		return nil, fmt.Errorf("pipeline: row count %d must be positive", opts.Rows)
	}
	if opts.Columns < 0 {
		return nil, fmt.Errorf("pipeline: column count %d must not be negative", opts.Columns)
	}

	layout := ResolveLayout(opts)
	p.log.Info("starting pipeline",
		"dataset", layout.DatasetName,
		"rows", opts.Rows,
		"output", layout.OutputDir)

	if err := p.scaffold(opts.InputFile, layout); err != nil {
		return nil, err
	}

	header, records, err := table.LoadRecords(layout.SampleFile)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Columns > 0 {
		header, records = truncateColumns(header, records, opts.Columns)
	}

	schema, err := synth.AnalyzeRecords(header, records)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	seed := opts.Seed
	rng := rand.New(rand.NewSource(seed)) // #nosec G404 -- reproducibility matters, secrecy does not
	if seed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63())) // #nosec G404
	}

	synHeader, synRecords, err := p.synthesizer.Generate(ctx, schema, opts.Rows, rng)
	if err != nil {
		return nil, fmt.Errorf("pipeline: synthesize: %w", err)
	}
	if err := table.WriteCSV(layout.SyntheticFile, synHeader, synRecords); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	p.log.Info("synthetic data written",
		"file", layout.SyntheticFile,
		"rows", len(synRecords),
		"columns", len(synHeader))

	tbl, err := table.FromRecords(synHeader, synRecords)
	if err != nil {
		return nil, fmt.Errorf("pipeline: synthetic data: %w", err)
	}

	genCfg := p.genCfg
	if genCfg.SourceData == "" {
		genCfg.SourceData = filepath.Base(layout.SyntheticFile)
	}
	corpus, err := generator.New(tbl, rng, p.log).Corpus(genCfg)
	if err != nil {
		return nil, fmt.Errorf("pipeline: derive cases: %w", err)
	}

	files, err := WriteCorpusFiles(layout.OutputDir, corpus)
	if err != nil {
		return nil, err
	}

	if err := writeReadme(layout, corpus, len(synRecords), len(synHeader)); err != nil {
		return nil, err
	}

	p.log.Info("pipeline complete",
		"cases", corpus.Metadata.TotalCases,
		"output", layout.OutputDir)
	return &Result{
		Layout:      layout,
		CorpusFiles: files,
		TotalCases:  corpus.Metadata.TotalCases,
		Rows:        len(synRecords),
		Columns:     len(synHeader),
	}, nil
}

// scaffold creates the dataset directories and puts the sample in
// place. An existing sample copy is left untouched.
func (p *Pipeline) scaffold(inputFile string, layout Layout) error {
	if err := os.MkdirAll(layout.OutputDir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create %s: %w", layout.OutputDir, err)
	}
	if _, err := os.Stat(layout.SampleFile); err == nil {
		return nil
	}
	if err := copyFile(inputFile, layout.SampleFile); err != nil {
		return fmt.Errorf("pipeline: copy sample: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func truncateColumns(header []string, records [][]string, n int) ([]string, [][]string) {
	if n >= len(header) {
		return header, records
	}
	out := make([][]string, len(records))
	for i, rec := range records {
		if len(rec) > n {
			rec = rec[:n]
		}
		out[i] = rec
	}
	return header[:n], out
}

// WriteCorpusFiles saves the combined corpus plus one flat file per
// category family into outputDir.
func WriteCorpusFiles(outputDir string, corpus *evalcase.Corpus) ([]string, error) {
	combined := filepath.Join(outputDir, CombinedFile)
	if err := corpus.Save(combined); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	files := []string{combined}

	perFamily := []struct {
		family string
		file   string
	}{
		{"aggregation", AggregationFile},
		{"time_comparison", TimeComparisonFile},
		{"custom_metric", CustomMetricsFile},
	}
	for _, pf := range perFamily {
		sec, ok := corpus.Categories[pf.family]
		if !ok {
			continue
		}
		path := filepath.Join(outputDir, pf.file)
		part := &evalcase.Corpus{Metadata: corpus.Metadata, Cases: sec.Cases}
		if err := part.Save(path); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		files = append(files, path)
	}
	return files, nil
}
