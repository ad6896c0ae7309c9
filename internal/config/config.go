// Package config loads the evalforge YAML configuration. Environment
// variables in the file are expanded before parsing, so API keys can
// stay out of version control.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/evalforge/internal/compare"
	"github.com/haasonsaas/evalforge/internal/synth"
)

// Config is the top-level configuration.
type Config struct {
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Generation GenerationConfig `yaml:"generation"`
	Grading    GradingConfig    `yaml:"grading"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SynthesisConfig drives the synthetic-data path.
type SynthesisConfig struct {
	// Models is the prioritized candidate list, "provider/model".
	Models []string `yaml:"models"`

	// MaxAttempts caps total model calls across the list.
	MaxAttempts int `yaml:"max_attempts"`

	// Rows is the default synthetic row count.
	Rows int `yaml:"rows"`

	// DisableHeuristic makes model exhaustion fatal instead of
	// falling back to the name-based row spec.
	DisableHeuristic bool `yaml:"disable_heuristic"`

	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds one provider's credentials.
type ProviderConfig struct {
	APIKey string `yaml:"api_key"`
}

// GenerationConfig sets per-category case counts and the corpus seed.
type GenerationConfig struct {
	AggregationCases       int    `yaml:"aggregation_cases"`
	MultiAggregationCases  int    `yaml:"multi_aggregation_cases"`
	TimeComparisonCases    int    `yaml:"time_comparison_cases"`
	GroupedComparisonCases int    `yaml:"grouped_comparison_cases"`
	CustomMetricCases      int    `yaml:"custom_metric_cases"`
	GroupedMetricCases     int    `yaml:"grouped_metric_cases"`
	SourceData             string `yaml:"source_data"`

	// Seed fixes corpus randomness; 0 means seed from the clock.
	Seed int64 `yaml:"seed"`
}

// GradingConfig sets comparison tolerances.
type GradingConfig struct {
	Tolerance       float64 `yaml:"tolerance"`
	WindowTolerance float64 `yaml:"window_tolerance"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a configuration file, expanding environment
// variables and filling defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.Synthesis.Models) == 0 {
		cfg.Synthesis.Models = []string{"gemini/gemini-2.0-flash-001"}
	}
	if cfg.Synthesis.MaxAttempts == 0 {
		cfg.Synthesis.MaxAttempts = synth.DefaultMaxAttempts
	}
	if cfg.Synthesis.Rows == 0 {
		cfg.Synthesis.Rows = 100
	}

	gen := &cfg.Generation
	if gen.AggregationCases == 0 {
		gen.AggregationCases = 20
	}
	if gen.MultiAggregationCases == 0 {
		gen.MultiAggregationCases = 5
	}
	if gen.TimeComparisonCases == 0 {
		gen.TimeComparisonCases = 15
	}
	if gen.GroupedComparisonCases == 0 {
		gen.GroupedComparisonCases = 5
	}
	if gen.CustomMetricCases == 0 {
		gen.CustomMetricCases = 15
	}
	if gen.GroupedMetricCases == 0 {
		gen.GroupedMetricCases = 5
	}
	if gen.SourceData == "" {
		gen.SourceData = "synthetic marketing data"
	}

	if cfg.Grading.Tolerance == 0 {
		cfg.Grading.Tolerance = compare.DefaultTolerance
	}
	if cfg.Grading.WindowTolerance == 0 {
		cfg.Grading.WindowTolerance = compare.WindowTolerance
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	for _, ref := range c.Synthesis.Models {
		if _, err := synth.ParseCandidate(ref); err != nil {
			return fmt.Errorf("config: synthesis.models: %w", err)
		}
	}
	if c.Synthesis.MaxAttempts < 1 {
		return fmt.Errorf("config: synthesis.max_attempts %d must be positive", c.Synthesis.MaxAttempts)
	}
	if c.Synthesis.Rows < 1 {
		return fmt.Errorf("config: synthesis.rows %d must be positive", c.Synthesis.Rows)
	}
	for name, count := range map[string]int{
		"aggregation_cases":        c.Generation.AggregationCases,
		"multi_aggregation_cases":  c.Generation.MultiAggregationCases,
		"time_comparison_cases":    c.Generation.TimeComparisonCases,
		"grouped_comparison_cases": c.Generation.GroupedComparisonCases,
		"custom_metric_cases":      c.Generation.CustomMetricCases,
		"grouped_metric_cases":     c.Generation.GroupedMetricCases,
	} {
		if count < 0 {
			return fmt.Errorf("config: generation.%s %d must not be negative", name, count)
		}
	}
	if c.Grading.Tolerance < 0 {
		return fmt.Errorf("config: grading.tolerance %v must not be negative", c.Grading.Tolerance)
	}
	if c.Grading.WindowTolerance < 0 {
		return fmt.Errorf("config: grading.window_tolerance %v must not be negative", c.Grading.WindowTolerance)
	}
	return nil
}

// Candidates parses the synthesis model list.
func (c *Config) Candidates() ([]synth.Candidate, error) {
	candidates := make([]synth.Candidate, 0, len(c.Synthesis.Models))
	for _, ref := range c.Synthesis.Models {
		cand, err := synth.ParseCandidate(ref)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}
