// Package generator derives evaluation-case corpora from a table by
// sampling random parameter tuples and computing each case's expected
// result with the aggregation, time-window, and custom-metric engines.
//
// Randomness is injected: the same seed over the same table yields a
// reproducible corpus, and independent generators never share state.
package generator

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haasonsaas/evalforge/internal/aggregate"
	"github.com/haasonsaas/evalforge/internal/compare"
	"github.com/haasonsaas/evalforge/internal/evalcase"
	"github.com/haasonsaas/evalforge/internal/metric"
	"github.com/haasonsaas/evalforge/internal/table"
	"github.com/haasonsaas/evalforge/internal/window"
)

// Config sets the per-category case counts and the source label stamped
// into corpus metadata.
type Config struct {
	AggregationCases        int
	MultiAggregationCases   int
	TimeComparisonCases     int
	GroupedComparisonCases  int
	CustomMetricCases       int
	GroupedMetricCases      int
	SourceData              string
}

// DefaultConfig mirrors the standard corpus mix.
func DefaultConfig() Config {
	return Config{
		AggregationCases:       20,
		MultiAggregationCases:  5,
		TimeComparisonCases:    15,
		GroupedComparisonCases: 5,
		CustomMetricCases:      15,
		GroupedMetricCases:     5,
		SourceData:             "synthetic marketing data",
	}
}

// funcWords maps reductions to the wording used in question text.
var funcWords = map[aggregate.Func]string{
	aggregate.Sum:    "total",
	aggregate.Mean:   "average",
	aggregate.Min:    "minimum",
	aggregate.Max:    "maximum",
	aggregate.Count:  "number of",
	aggregate.Median: "median",
}

// Generator builds case corpora from one table.
type Generator struct {
	tbl *table.Table
	rng *rand.Rand
	log *slog.Logger
}

// New creates a generator over a table with an explicit random source.
func New(tbl *table.Table, rng *rand.Rand, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{tbl: tbl, rng: rng, log: logger}
}

// Corpus generates the full mixed corpus. Categories whose prerequisites
// the table cannot satisfy (no categorical columns, no temporal axis,
// no supported formulas) are reported as errors only when cases were
// requested for them.
func (g *Generator) Corpus(cfg Config) (*evalcase.Corpus, error) {
	aggCases, err := g.AggregationCases(cfg.AggregationCases, cfg.MultiAggregationCases)
	if err != nil {
		return nil, err
	}
	timeCases, err := g.TimeComparisonCases(cfg.TimeComparisonCases, cfg.GroupedComparisonCases)
	if err != nil {
		return nil, err
	}
	metricCases, err := g.CustomMetricCases(cfg.CustomMetricCases, cfg.GroupedMetricCases)
	if err != nil {
		return nil, err
	}

	total := len(aggCases) + len(timeCases) + len(metricCases)
	corpus := &evalcase.Corpus{
		Metadata: evalcase.Metadata{
			GeneratedAt: time.Now().UTC(),
			RunID:       uuid.NewString(),
			SourceData:  cfg.SourceData,
			TotalCases:  total,
		},
		Categories: map[string]evalcase.Section{
			"aggregation": {
				Description: evalcase.SectionDescriptions["aggregation"],
				Count:       len(aggCases),
				Cases:       aggCases,
			},
			"time_comparison": {
				Description: evalcase.SectionDescriptions["time_comparison"],
				Count:       len(timeCases),
				Cases:       timeCases,
			},
			"custom_metric": {
				Description: evalcase.SectionDescriptions["custom_metric"],
				Count:       len(metricCases),
				Cases:       metricCases,
			},
		},
	}
	g.log.Info("generated corpus",
		"aggregation", len(aggCases),
		"time_comparison", len(timeCases),
		"custom_metric", len(metricCases),
		"total", total)
	return corpus, nil
}

// AggregationCases emits single-column group-by cases plus two-column
// variants. A table without categorical or numeric columns yields no
// cases rather than an error, so narrow tables still run.
func (g *Generator) AggregationCases(single, multi int) ([]evalcase.Case, error) {
	if single == 0 && multi == 0 {
		return nil, nil
	}
	groups := g.tbl.CategoricalColumns()
	metrics := g.tbl.NumericColumns()
	if len(groups) == 0 || len(metrics) == 0 {
		g.log.Warn("skipping aggregation cases",
			"categorical_columns", len(groups), "numeric_columns", len(metrics))
		return nil, nil
	}
	if multi > 0 && len(groups) < 2 {
		g.log.Warn("skipping multi-column aggregation cases", "categorical_columns", len(groups))
		multi = 0
	}

	singleFns := []aggregate.Func{aggregate.Sum, aggregate.Mean, aggregate.Min, aggregate.Max, aggregate.Count}
	multiFns := []aggregate.Func{aggregate.Sum, aggregate.Mean, aggregate.Count}

	var cases []evalcase.Case
	for i := 0; i < single; i++ {
		groupCol := pick(g.rng, groups)
		metricCol := pick(g.rng, metrics)
		fn := singleFns[g.rng.Intn(len(singleFns))]

		expected, err := toExpected(aggregate.Aggregate(g.tbl, []string{groupCol}, metricCol, fn))
		if err != nil {
			return nil, err
		}
		cases = append(cases, evalcase.Case{
			ID:            fmt.Sprintf("agg_%d", i+1),
			Category:      evalcase.CategoryAggregation,
			Question:      fmt.Sprintf("What is the %s of %s by %s?", funcWords[fn], metricCol, groupCol),
			Difficulty:    "medium",
			GroupByColumn: groupCol,
			MetricColumn:  metricCol,
			Function:      fn.String(),
			Operation:     fmt.Sprintf("GROUP BY %s, %s(%s)", groupCol, strings.ToUpper(fn.String()), metricCol),
			Expected:      expected,
		})
	}

	for i := 0; i < multi; i++ {
		a, b := sample2(g.rng, groups)
		metricCol := pick(g.rng, metrics)
		fn := multiFns[g.rng.Intn(len(multiFns))]

		expected, err := toExpected(aggregate.Aggregate(g.tbl, []string{a, b}, metricCol, fn))
		if err != nil {
			return nil, err
		}
		cases = append(cases, evalcase.Case{
			ID:             fmt.Sprintf("agg_multi_%d", i+1),
			Category:       evalcase.CategoryAggregationMulti,
			Question:       fmt.Sprintf("What is the %s of %s grouped by %s and %s?", funcWords[fn], metricCol, a, b),
			Difficulty:     "hard",
			GroupByColumns: []string{a, b},
			MetricColumn:   metricCol,
			Function:       fn.String(),
			Operation:      fmt.Sprintf("GROUP BY %s, %s, %s(%s)", a, b, strings.ToUpper(fn.String()), metricCol),
			Expected:       expected,
		})
	}
	return cases, g.selfCheck(cases)
}

// TimeComparisonCases emits canonical-split comparison cases, ungrouped
// and grouped.
func (g *Generator) TimeComparisonCases(ungrouped, grouped int) ([]evalcase.Case, error) {
	if ungrouped == 0 && grouped == 0 {
		return nil, nil
	}
	metrics := g.tbl.NumericColumns()
	if len(metrics) == 0 {
		g.log.Warn("skipping time comparison cases, no numeric columns")
		return nil, nil
	}

	p1, p2, err := window.CanonicalSplit(g.tbl)
	if err != nil {
		g.log.Warn("skipping time comparison cases", "err", err)
		return nil, nil
	}
	if min, max, ok := g.tbl.DateRange(); ok {
		if span := max.Sub(min); span < 30*24*time.Hour {
			g.log.Warn("date range under 30 days, time comparison cases may be limited",
				"days", int(span.Hours()/24))
		}
	}

	var cases []evalcase.Case
	for i := 0; i < ungrouped; i++ {
		metricCol := pick(g.rng, metrics)
		result, err := window.Compare(g.tbl, metricCol, p1, p2)
		if err != nil {
			return nil, err
		}
		pp1, pp2 := p1, p2
		cases = append(cases, evalcase.Case{
			ID:           fmt.Sprintf("time_comp_%d", i+1),
			Category:     evalcase.CategoryTimeComparison,
			Question:     fmt.Sprintf("Compare the total %s between %s and %s. What is the difference?", metricCol, p1, p2),
			Difficulty:   "medium",
			MetricColumn: metricCol,
			Period1:      &pp1,
			Period2:      &pp2,
			Expected:     result.AsMap(),
		})
	}

	groups := g.tbl.CategoricalColumns()
	if grouped > 0 && len(groups) == 0 {
		g.log.Warn("skipping grouped time comparison cases, no categorical columns")
		grouped = 0
	}
	for i := 0; i < grouped; i++ {
		metricCol := pick(g.rng, metrics)
		groupCol := pick(g.rng, groups)
		result, err := window.CompareGrouped(g.tbl, metricCol, groupCol, p1, p2)
		if err != nil {
			return nil, err
		}
		expected := make(map[string]any, len(result))
		for k, v := range result {
			expected[k] = v.AsMap()
		}
		pp1, pp2 := p1, p2
		cases = append(cases, evalcase.Case{
			ID:            fmt.Sprintf("time_comp_grouped_%d", i+1),
			Category:      evalcase.CategoryTimeComparisonGrouped,
			Question:      fmt.Sprintf("Compare the total %s by %s between %s and %s.", metricCol, groupCol, p1, p2),
			Difficulty:    "hard",
			MetricColumn:  metricCol,
			GroupByColumn: groupCol,
			Period1:       &pp1,
			Period2:       &pp2,
			Expected:      expected,
		})
	}
	return cases, g.selfCheck(cases)
}

// CustomMetricCases emits whole-table custom-metric cases plus grouped
// mean variants. Formulas the table cannot support and empty filtered
// populations are skipped, so fewer cases than requested may come back.
func (g *Generator) CustomMetricCases(flat, grouped int) ([]evalcase.Case, error) {
	if flat == 0 && grouped == 0 {
		return nil, nil
	}
	var supported []metric.Formula
	for _, f := range metric.Formulas() {
		if f.Supported(g.tbl) {
			supported = append(supported, f)
		}
	}
	if len(supported) == 0 {
		g.log.Warn("no custom metric formulas supported by table columns")
		return nil, nil
	}

	fns := []aggregate.Func{aggregate.Mean, aggregate.Sum, aggregate.Median}

	var cases []evalcase.Case
	for i := 0; i < flat; i++ {
		f := supported[g.rng.Intn(len(supported))]
		fn := fns[g.rng.Intn(len(fns))]

		expected, err := f.Aggregate(g.tbl, fn)
		if err != nil {
			return nil, err
		}
		if expected == nil {
			// Every row was excluded by the completeness or
			// denominator filter; nothing to ask about.
			continue
		}
		cases = append(cases, evalcase.Case{
			ID:              fmt.Sprintf("custom_metric_%d", i+1),
			Category:        evalcase.CategoryCustomMetric,
			Question:        fmt.Sprintf("Calculate the %s %s across all records. Formula: %s", funcWords[fn], f.Name, f.Expr),
			Difficulty:      "medium",
			MetricName:      f.Name,
			MetricFormula:   f.Expr,
			Function:        fn.String(),
			RequiredColumns: f.Required,
			Expected:        *expected,
		})
	}

	groups := g.tbl.CategoricalColumns()
	if grouped > 0 && len(groups) == 0 {
		g.log.Warn("skipping grouped custom metric cases, no categorical columns")
		grouped = 0
	}
	for i := 0; i < grouped; i++ {
		f := supported[g.rng.Intn(len(supported))]
		groupCol := pick(g.rng, groups)

		result, err := f.AggregateGrouped(g.tbl, groupCol, aggregate.Mean)
		if err != nil {
			return nil, err
		}
		if len(result) == 0 {
			continue
		}
		cases = append(cases, evalcase.Case{
			ID:              fmt.Sprintf("custom_metric_grouped_%d", i+1),
			Category:        evalcase.CategoryCustomMetricGrouped,
			Question:        fmt.Sprintf("Calculate the average %s by %s. Formula: %s", f.Name, groupCol, f.Expr),
			Difficulty:      "hard",
			MetricName:      f.Name,
			MetricFormula:   f.Expr,
			GroupByColumn:   groupCol,
			Function:        aggregate.Mean.String(),
			RequiredColumns: f.Required,
			Expected:        anyMap(result),
		})
	}
	return cases, g.selfCheck(cases)
}

// selfCheck confirms each emitted expected value is well-formed under
// the comparator: a value that fails to match itself would be a shape
// the grading path cannot evaluate.
func (g *Generator) selfCheck(cases []evalcase.Case) error {
	for _, c := range cases {
		if !compare.Equal(c.Expected, c.Expected, 0) {
			return fmt.Errorf("generator: case %s produced a malformed expected result", c.ID)
		}
	}
	return nil
}

// toExpected converts an engine result mapping into the corpus shape.
func toExpected(result map[string]*float64, err error) (map[string]any, error) {
	if err != nil {
		return nil, err
	}
	return anyMap(result), nil
}

func anyMap(result map[string]*float64) map[string]any {
	m := make(map[string]any, len(result))
	for k, v := range result {
		if v == nil {
			m[k] = nil
		} else {
			m[k] = *v
		}
	}
	return m
}

// pick selects one element uniformly.
func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}

// sample2 selects two distinct elements.
func sample2(rng *rand.Rand, values []string) (string, string) {
	i := rng.Intn(len(values))
	j := rng.Intn(len(values) - 1)
	if j >= i {
		j++
	}
	return values[i], values[j]
}
