// Package evalcase defines the evaluation-case corpus: self-contained
// question/parameters/expected-result records produced by the generator
// and consumed read-only by the grader.
package evalcase

import (
	"fmt"

	"github.com/haasonsaas/evalforge/internal/window"
)

// Category identifies which engine a case exercises. The expected-result
// shape is fully determined by the category and parameters.
type Category string

const (
	CategoryAggregation           Category = "aggregation"
	CategoryAggregationMulti      Category = "aggregation_multi"
	CategoryTimeComparison        Category = "time_comparison"
	CategoryTimeComparisonGrouped Category = "time_comparison_grouped"
	CategoryCustomMetric          Category = "custom_metric"
	CategoryCustomMetricGrouped   Category = "custom_metric_grouped"
)

// Categories lists every known category in a fixed order.
func Categories() []Category {
	return []Category{
		CategoryAggregation,
		CategoryAggregationMulti,
		CategoryTimeComparison,
		CategoryTimeComparisonGrouped,
		CategoryCustomMetric,
		CategoryCustomMetricGrouped,
	}
}

// Known reports whether the category is one the engines support.
func (c Category) Known() bool {
	switch c {
	case CategoryAggregation, CategoryAggregationMulti,
		CategoryTimeComparison, CategoryTimeComparisonGrouped,
		CategoryCustomMetric, CategoryCustomMetricGrouped:
		return true
	default:
		return false
	}
}

// Family groups the fine-grained categories into the three corpus
// sections: aggregation, time_comparison, custom_metric.
func (c Category) Family() string {
	switch c {
	case CategoryAggregation, CategoryAggregationMulti:
		return "aggregation"
	case CategoryTimeComparison, CategoryTimeComparisonGrouped:
		return "time_comparison"
	case CategoryCustomMetric, CategoryCustomMetricGrouped:
		return "custom_metric"
	default:
		return string(c)
	}
}

// Case is one immutable evaluation case. Parameter fields are populated
// per category; unused fields are omitted from the wire form.
type Case struct {
	ID         string   `json:"id"`
	Category   Category `json:"category"`
	Question   string   `json:"question"`
	Difficulty string   `json:"difficulty"`

	// Aggregation parameters.
	GroupByColumn  string   `json:"group_by_column,omitempty"`
	GroupByColumns []string `json:"group_by_columns,omitempty"`
	MetricColumn   string   `json:"metric_column,omitempty"`
	Function       string   `json:"aggregation_function,omitempty"`
	Operation      string   `json:"operation,omitempty"`

	// Time-comparison parameters.
	Period1 *window.Period `json:"time_period_1,omitempty"`
	Period2 *window.Period `json:"time_period_2,omitempty"`

	// Custom-metric parameters.
	MetricName      string   `json:"metric_name,omitempty"`
	MetricFormula   string   `json:"metric_formula,omitempty"`
	RequiredColumns []string `json:"required_columns,omitempty"`

	// Expected is the engine-computed answer: a scalar, a mapping from
	// group key to scalar, or a nested mapping for comparisons.
	Expected any `json:"expected_result"`

	// Err carries the decode error for a structurally broken case so
	// grading can fail it in isolation. Never serialized.
	Err error `json:"-"`
}

// Validate checks that the case carries the fields its category needs.
// It does not recompute the expected result.
func (c *Case) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("evalcase: case has no id")
	}
	if !c.Category.Known() {
		return fmt.Errorf("evalcase: case %s: unknown category %q", c.ID, c.Category)
	}

	missing := func(field string) error {
		return fmt.Errorf("evalcase: case %s (%s): missing %s", c.ID, c.Category, field)
	}
	switch c.Category {
	case CategoryAggregation:
		if c.GroupByColumn == "" {
			return missing("group_by_column")
		}
		if c.MetricColumn == "" {
			return missing("metric_column")
		}
		if c.Function == "" {
			return missing("aggregation_function")
		}
	case CategoryAggregationMulti:
		if len(c.GroupByColumns) != 2 {
			return fmt.Errorf("evalcase: case %s (%s): group_by_columns has %d entries, want 2", c.ID, c.Category, len(c.GroupByColumns))
		}
		if c.MetricColumn == "" {
			return missing("metric_column")
		}
		if c.Function == "" {
			return missing("aggregation_function")
		}
	case CategoryTimeComparison:
		if c.MetricColumn == "" {
			return missing("metric_column")
		}
		if c.Period1 == nil || c.Period2 == nil {
			return missing("time periods")
		}
	case CategoryTimeComparisonGrouped:
		if c.MetricColumn == "" {
			return missing("metric_column")
		}
		if c.GroupByColumn == "" {
			return missing("group_by_column")
		}
		if c.Period1 == nil || c.Period2 == nil {
			return missing("time periods")
		}
	case CategoryCustomMetric:
		if c.MetricName == "" {
			return missing("metric_name")
		}
		if c.Function == "" {
			return missing("aggregation_function")
		}
	case CategoryCustomMetricGrouped:
		if c.MetricName == "" {
			return missing("metric_name")
		}
		if c.GroupByColumn == "" {
			return missing("group_by_column")
		}
	}
	return nil
}
