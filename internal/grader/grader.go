// Package grader re-derives each evaluation case's answer from a live
// table with the same engines that generated it, and compares the two
// results with the tolerant comparator.
//
// Grading is isolated per case: a malformed case or an engine error
// fails that case with a captured description and the run continues.
// An unrecognized category is surfaced distinctly from a wrong answer,
// so a harness can tell "engine doesn't support this" from "engine
// computed the wrong value".
package grader

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
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

// ErrUnsupportedCategory marks a case whose category no engine handles.
var ErrUnsupportedCategory = errors.New("grader: unsupported case category")

// Outcome classifies one graded case.
type Outcome string

const (
	Passed      Outcome = "passed"
	Failed      Outcome = "failed"
	CaseError   Outcome = "error"
	Unsupported Outcome = "unsupported"
)

// Tolerances holds the per-category comparison tolerances. Time-window
// categories get the coarser value because their percent-change math
// compounds per-row float rounding.
type Tolerances struct {
	Generic float64
	Window  float64
}

// DefaultTolerances returns the standard tolerance pair.
func DefaultTolerances() Tolerances {
	return Tolerances{
		Generic: compare.DefaultTolerance,
		Window:  compare.WindowTolerance,
	}
}

// CaseResult is the graded outcome of a single case.
type CaseResult struct {
	ID       string            `json:"id"`
	Category evalcase.Category `json:"category"`
	Outcome  Outcome           `json:"outcome"`
	Question string            `json:"question,omitempty"`
	Error    string            `json:"error,omitempty"`
	Mismatch string            `json:"mismatch,omitempty"`
}

// Report aggregates a grading run.
type Report struct {
	RunID    string       `json:"run_id"`
	GradedAt time.Time    `json:"graded_at"`
	Results  []CaseResult `json:"results"`
}

// Passed counts passing cases.
func (r *Report) Passed() int { return r.count(Passed) }

// Failed counts everything that did not pass, including errored and
// unsupported cases.
func (r *Report) Failed() int { return len(r.Results) - r.Passed() }

func (r *Report) count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Accuracy is the pass fraction as a percentage, 0 for an empty run.
func (r *Report) Accuracy() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	return float64(r.Passed()) / float64(len(r.Results)) * 100
}

// ByFamily tallies passed/total per corpus section.
func (r *Report) ByFamily() map[string][2]int {
	tally := make(map[string][2]int)
	for _, res := range r.Results {
		t := tally[res.Category.Family()]
		if res.Outcome == Passed {
			t[0]++
		}
		t[1]++
		tally[res.Category.Family()] = t
	}
	return tally
}

// Grader grades corpora against one live table.
type Grader struct {
	tbl *table.Table
	tol Tolerances
	log *slog.Logger
}

// New creates a grader. Zero tolerances take the defaults.
func New(tbl *table.Table, tol Tolerances, logger *slog.Logger) *Grader {
	if logger == nil {
		logger = slog.Default()
	}
	if tol.Generic == 0 {
		tol.Generic = compare.DefaultTolerance
	}
	if tol.Window == 0 {
		tol.Window = compare.WindowTolerance
	}
	return &Grader{tbl: tbl, tol: tol, log: logger}
}

// Grade evaluates every case in the corpus.
func (g *Grader) Grade(corpus *evalcase.Corpus) *Report {
	report := &Report{
		RunID:    uuid.NewString(),
		GradedAt: time.Now().UTC(),
	}
	for _, c := range corpus.AllCases() {
		res := g.gradeCase(c)
		report.Results = append(report.Results, res)
		switch res.Outcome {
		case Passed:
			g.log.Debug("case passed", "id", res.ID)
		case Unsupported:
			g.log.Warn("case category unsupported", "id", res.ID, "category", res.Category)
		default:
			g.log.Info("case failed", "id", res.ID, "outcome", res.Outcome, "error", res.Error, "mismatch", res.Mismatch)
		}
	}
	g.log.Info("grading complete",
		"passed", report.Passed(),
		"failed", report.Failed(),
		"accuracy", fmt.Sprintf("%.1f%%", report.Accuracy()))
	return report
}

// gradeCase grades one case in isolation.
func (g *Grader) gradeCase(c evalcase.Case) CaseResult {
	res := CaseResult{ID: c.ID, Category: c.Category, Question: c.Question}

	if c.Err != nil {
		res.Outcome = CaseError
		res.Error = c.Err.Error()
		return res
	}
	if !c.Category.Known() {
		res.Outcome = Unsupported
		res.Error = fmt.Sprintf("%v: %q", ErrUnsupportedCategory, c.Category)
		return res
	}
	if err := c.Validate(); err != nil {
		res.Outcome = CaseError
		res.Error = err.Error()
		return res
	}

	actual, tolerance, err := g.recompute(c)
	if err != nil {
		res.Outcome = CaseError
		res.Error = err.Error()
		return res
	}

	if compare.Equal(actual, c.Expected, tolerance) {
		res.Outcome = Passed
		return res
	}
	res.Outcome = Failed
	res.Mismatch = firstMismatch("", actual, c.Expected, tolerance)
	return res
}

// recompute dispatches the case to its engine against the live table.
func (g *Grader) recompute(c evalcase.Case) (actual any, tolerance float64, err error) {
	switch c.Category {
	case evalcase.CategoryAggregation, evalcase.CategoryAggregationMulti:
		fn, err := aggregate.ParseFunc(c.Function)
		if err != nil {
			return nil, 0, err
		}
		groupBy := c.GroupByColumns
		if c.Category == evalcase.CategoryAggregation {
			groupBy = []string{c.GroupByColumn}
		}
		result, err := aggregate.Aggregate(g.tbl, groupBy, c.MetricColumn, fn)
		if err != nil {
			return nil, 0, err
		}
		return result, g.tol.Generic, nil

	case evalcase.CategoryTimeComparison:
		result, err := window.Compare(g.tbl, c.MetricColumn, *c.Period1, *c.Period2)
		if err != nil {
			return nil, 0, err
		}
		return result.AsMap(), g.tol.Window, nil

	case evalcase.CategoryTimeComparisonGrouped:
		result, err := window.CompareGrouped(g.tbl, c.MetricColumn, c.GroupByColumn, *c.Period1, *c.Period2)
		if err != nil {
			return nil, 0, err
		}
		actual := make(map[string]any, len(result))
		for k, v := range result {
			actual[k] = v.AsMap()
		}
		return actual, g.tol.Window, nil

	case evalcase.CategoryCustomMetric:
		f, ok := metric.Lookup(c.MetricName)
		if !ok {
			return nil, 0, fmt.Errorf("grader: unknown custom metric %q", c.MetricName)
		}
		fn, err := aggregate.ParseFunc(c.Function)
		if err != nil {
			return nil, 0, err
		}
		result, err := f.Aggregate(g.tbl, fn)
		if err != nil {
			return nil, 0, err
		}
		return result, g.tol.Generic, nil

	case evalcase.CategoryCustomMetricGrouped:
		f, ok := metric.Lookup(c.MetricName)
		if !ok {
			return nil, 0, fmt.Errorf("grader: unknown custom metric %q", c.MetricName)
		}
		fn := aggregate.Mean
		if c.Function != "" {
			if fn, err = aggregate.ParseFunc(c.Function); err != nil {
				return nil, 0, err
			}
		}
		result, err := f.AggregateGrouped(g.tbl, c.GroupByColumn, fn)
		if err != nil {
			return nil, 0, err
		}
		return result, g.tol.Generic, nil

	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedCategory, c.Category)
	}
}

// firstMismatch walks the pair and describes the first path where they
// disagree, for the report diagnostic. Map keys are visited in sorted
// order so the diagnostic is stable.
func firstMismatch(path string, actual, expected any, tolerance float64) string {
	if compare.Equal(actual, expected, tolerance) {
		return ""
	}
	actual = widenMap(actual)
	expected = widenMap(expected)

	am, aOK := actual.(map[string]any)
	em, eOK := expected.(map[string]any)
	if aOK && eOK {
		keys := make(map[string]bool, len(am)+len(em))
		for k := range am {
			keys[k] = true
		}
		for k := range em {
			keys[k] = true
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)

		for _, k := range sorted {
			sub := k
			if path != "" {
				sub = path + "." + k
			}
			av, aHas := am[k]
			ev, eHas := em[k]
			if !aHas {
				return fmt.Sprintf("%s: missing from actual", sub)
			}
			if !eHas {
				return fmt.Sprintf("%s: unexpected key", sub)
			}
			if msg := firstMismatch(sub, av, ev, tolerance); msg != "" {
				return msg
			}
		}
		// Key sets and values agree individually; unreachable when
		// the overall comparison failed, but be explicit.
		return fmt.Sprintf("%s: values differ", orRoot(path))
	}

	return fmt.Sprintf("%s: got %s, want %s", orRoot(path), render(actual), render(expected))
}

// widenMap lifts the engines' map[string]*float64 results to the
// map[string]any shape the diagnostic walk understands.
func widenMap(v any) any {
	m, ok := v.(map[string]*float64)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

func orRoot(path string) string {
	if path == "" {
		return "result"
	}
	return path
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *float64:
		if x == nil {
			return "null"
		}
		return fmt.Sprintf("%v", *x)
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", x))
	}
}
