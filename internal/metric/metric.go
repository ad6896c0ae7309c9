// Package metric derives per-row business metrics from raw numeric
// columns and aggregates them.
//
// Formulas are plain data: each carries its required input columns, the
// column whose zero value would make the formula undefined, and an
// evaluator. Adding a formula is a registry edit, not a new code branch.
package metric

import (
	"fmt"
	"math"

	"github.com/haasonsaas/evalforge/internal/aggregate"
	"github.com/haasonsaas/evalforge/internal/table"
)

// derivedColumn is the name of the synthetic column added to the private
// table copy during aggregation.
const derivedColumn = "custom_metric"

// Formula is one derived metric definition.
type Formula struct {
	// Name identifies the formula in case parameters ("ROI").
	Name string
	// Expr is the human-readable formula used in question text.
	Expr string
	// Description explains the metric in corpus summaries.
	Description string
	// Required lists the input columns a row must carry.
	Required []string
	// Denominator is the column guarded against zero. Rows where it is
	// exactly zero are dropped from the aggregation population.
	Denominator string

	eval func(get func(string) float64) float64
}

// registry holds the supported formulas in a fixed order.
var registry = []Formula{
	{
		Name:        "ROI",
		Expr:        "(Revenue - Cost) / Cost * 100",
		Description: "Return on Investment percentage",
		Required:    []string{"Revenue", "Cost"},
		Denominator: "Cost",
		eval: func(get func(string) float64) float64 {
			return (get("Revenue") - get("Cost")) / get("Cost") * 100
		},
	},
	{
		Name:        "Conversion Rate",
		Expr:        "Conversions / Clicks * 100",
		Description: "Conversion rate percentage",
		Required:    []string{"Conversions", "Clicks"},
		Denominator: "Clicks",
		eval: func(get func(string) float64) float64 {
			return get("Conversions") / get("Clicks") * 100
		},
	},
	{
		Name:        "Cost Per Conversion",
		Expr:        "Cost / Conversions",
		Description: "Average cost per conversion",
		Required:    []string{"Cost", "Conversions"},
		Denominator: "Conversions",
		eval: func(get func(string) float64) float64 {
			return get("Cost") / get("Conversions")
		},
	},
	{
		Name:        "Revenue Per Session",
		Expr:        "Revenue / Sessions",
		Description: "Average revenue per session",
		Required:    []string{"Revenue", "Sessions"},
		Denominator: "Sessions",
		eval: func(get func(string) float64) float64 {
			return get("Revenue") / get("Sessions")
		},
	},
	{
		Name:        "Profit Margin",
		Expr:        "(Revenue - Cost) / Revenue * 100",
		Description: "Profit margin percentage",
		Required:    []string{"Revenue", "Cost"},
		Denominator: "Revenue",
		eval: func(get func(string) float64) float64 {
			return (get("Revenue") - get("Cost")) / get("Revenue") * 100
		},
	},
}

// Formulas returns all supported formulas.
func Formulas() []Formula {
	return append([]Formula(nil), registry...)
}

// Lookup resolves a formula by name.
func Lookup(name string) (Formula, bool) {
	for _, f := range registry {
		if f.Name == name {
			return f, true
		}
	}
	return Formula{}, false
}

// Supported reports whether the table carries every column the formula
// needs, with numeric kind.
func (f Formula) Supported(tbl *table.Table) bool {
	for _, name := range f.Required {
		col, ok := tbl.Column(name)
		if !ok || col.Kind != table.Numeric {
			return false
		}
	}
	return true
}

// Compute evaluates the formula per row. valid marks rows that survive
// the two-stage filter: every required column present, then a non-zero
// denominator. Excluded rows carry a zero value and valid=false; they
// are dropped from the aggregation population, never coerced.
func (f Formula) Compute(tbl *table.Table) (values []float64, valid []bool, err error) {
	for _, name := range f.Required {
		col, ok := tbl.Column(name)
		if !ok {
			return nil, nil, fmt.Errorf("metric: %s requires column %q", f.Name, name)
		}
		if col.Kind != table.Numeric {
			return nil, nil, fmt.Errorf("metric: %s requires numeric column %q, got %s", f.Name, name, col.Kind)
		}
	}

	values = make([]float64, tbl.NumRows())
	valid = make([]bool, tbl.NumRows())
rows:
	for i := 0; i < tbl.NumRows(); i++ {
		row := make(map[string]float64, len(f.Required))
		for _, name := range f.Required {
			v, present := tbl.Float(name, i)
			if !present {
				continue rows
			}
			row[name] = v
		}
		if row[f.Denominator] == 0 {
			continue
		}
		values[i] = f.eval(func(name string) float64 { return row[name] })
		valid[i] = true
	}
	return values, valid, nil
}

// Aggregate reduces the derived column across the whole table with mean,
// sum, or median. The result is rounded to 2 decimal places; an empty
// population after filtering yields nil, never zero.
func (f Formula) Aggregate(tbl *table.Table, fn aggregate.Func) (*float64, error) {
	switch fn {
	case aggregate.Mean, aggregate.Sum, aggregate.Median:
	default:
		return nil, fmt.Errorf("metric: unsupported aggregation %s", fn)
	}

	values, valid, err := f.Compute(tbl)
	if err != nil {
		return nil, err
	}
	population := make([]float64, 0, len(values))
	for i, ok := range valid {
		if ok {
			population = append(population, values[i])
		}
	}
	reduced, err := aggregate.Reduce(fn, population)
	if err != nil {
		return nil, err
	}
	if reduced == nil {
		return nil, nil
	}
	v := round2(*reduced)
	return &v, nil
}

// AggregateGrouped reduces the derived column per group of a categorical
// column, over a private derived copy of the table. Per-group results
// are rounded to 2 decimal places; nil marks groups whose population is
// empty after filtering. The same reductions as Aggregate apply: count
// would tally guard-excluded rows and is rejected.
func (f Formula) AggregateGrouped(tbl *table.Table, groupBy string, fn aggregate.Func) (map[string]*float64, error) {
	switch fn {
	case aggregate.Mean, aggregate.Sum, aggregate.Median:
	default:
		return nil, fmt.Errorf("metric: unsupported aggregation %s", fn)
	}

	values, valid, err := f.Compute(tbl)
	if err != nil {
		return nil, err
	}
	derived, err := tbl.WithNumericColumn(derivedColumn, values, valid)
	if err != nil {
		return nil, fmt.Errorf("metric: derive column: %w", err)
	}

	grouped, err := aggregate.Aggregate(derived, []string{groupBy}, derivedColumn, fn)
	if err != nil {
		return nil, err
	}
	for k, v := range grouped {
		if v != nil {
			r := round2(*v)
			grouped[k] = &r
		}
	}
	return grouped, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
