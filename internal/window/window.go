// Package window splits a dataset into two date ranges and compares a
// metric between them, optionally partitioned by a categorical column.
package window

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/haasonsaas/evalforge/internal/table"
)

// Period is a date range, inclusive on both bounds.
type Period struct {
	Start time.Time
	End   time.Time
}

// periodJSON is the corpus wire form of a period.
type periodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarshalJSON renders the bounds as calendar dates.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(periodJSON{
		Start: p.Start.Format(table.DateLayout),
		End:   p.End.Format(table.DateLayout),
	})
}

// UnmarshalJSON parses calendar-date bounds.
func (p *Period) UnmarshalJSON(data []byte) error {
	var wire periodJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	start, err := time.Parse(table.DateLayout, wire.Start)
	if err != nil {
		return fmt.Errorf("window: period start: %w", err)
	}
	end, err := time.Parse(table.DateLayout, wire.End)
	if err != nil {
		return fmt.Errorf("window: period end: %w", err)
	}
	p.Start, p.End = start, end
	return nil
}

// Contains reports whether ts falls within the period.
func (p Period) Contains(ts time.Time) bool {
	return !ts.Before(p.Start) && !ts.After(p.End)
}

// String renders the period as "YYYY-MM-DD to YYYY-MM-DD".
func (p Period) String() string {
	return p.Start.Format(table.DateLayout) + " to " + p.End.Format(table.DateLayout)
}

// Result is an ungrouped comparison of a metric between two periods.
// Period sums are always present (zero for an empty period); the percent
// change is absent when the period-1 base is zero, since the rate would
// be undefined or infinite.
type Result struct {
	Period1            float64
	Period2            float64
	AbsoluteDifference float64
	PercentChange      *float64
}

// AsMap flattens the result into the corpus wire shape.
func (r Result) AsMap() map[string]any {
	m := map[string]any{
		"period_1_value":      r.Period1,
		"period_2_value":      r.Period2,
		"absolute_difference": r.AbsoluteDifference,
		"percent_change":      nil,
	}
	if r.PercentChange != nil {
		m["percent_change"] = *r.PercentChange
	}
	return m
}

// GroupResult is one group's slice of a grouped comparison. A group
// absent from a period reports 0 for that period, not an absent value;
// the percent-change division guard applies to that zero identically.
type GroupResult struct {
	Period1       float64
	Period2       float64
	Difference    float64
	PercentChange *float64
}

// AsMap flattens the group result into the corpus wire shape.
func (r GroupResult) AsMap() map[string]any {
	m := map[string]any{
		"period_1":       r.Period1,
		"period_2":       r.Period2,
		"difference":     r.Difference,
		"percent_change": nil,
	}
	if r.PercentChange != nil {
		m["percent_change"] = *r.PercentChange
	}
	return m
}

// Compare sums the metric within each period and reports the difference
// and percent change. Periods may overlap or be disjoint; no validation
// of their relationship is performed. Rows with a missing date or a
// missing metric value are excluded from the sums.
func Compare(tbl *table.Table, metric string, p1, p2 Period) (Result, error) {
	axis, err := validate(tbl, metric)
	if err != nil {
		return Result{}, err
	}

	sum1 := periodSum(tbl, axis, metric, p1)
	sum2 := periodSum(tbl, axis, metric, p2)
	return Result{
		Period1:            sum1,
		Period2:            sum2,
		AbsoluteDifference: sum2 - sum1,
		PercentChange:      percentChange(sum1, sum2),
	}, nil
}

// CompareGrouped performs the per-period sums partitioned by a single
// categorical column. The result covers the union of groups observed in
// either period.
func CompareGrouped(tbl *table.Table, metric, groupBy string, p1, p2 Period) (map[string]GroupResult, error) {
	axis, err := validate(tbl, metric)
	if err != nil {
		return nil, err
	}
	if col, ok := tbl.Column(groupBy); !ok {
		return nil, fmt.Errorf("window: group column %q not found", groupBy)
	} else if col.Kind != table.Categorical {
		return nil, fmt.Errorf("window: group column %q is %s, want categorical", groupBy, col.Kind)
	}

	sums1 := groupedSums(tbl, axis, metric, groupBy, p1)
	sums2 := groupedSums(tbl, axis, metric, groupBy, p2)

	result := make(map[string]GroupResult, len(sums1)+len(sums2))
	for g := range sums1 {
		result[g] = GroupResult{}
	}
	for g := range sums2 {
		result[g] = GroupResult{}
	}
	for g := range result {
		v1 := sums1[g]
		v2 := sums2[g]
		result[g] = GroupResult{
			Period1:       v1,
			Period2:       v2,
			Difference:    v2 - v1,
			PercentChange: percentChange(v1, v2),
		}
	}
	return result, nil
}

// CanonicalSplit bisects the table's full date range at the midpoint day
// count: period 1 covers [min, midpoint), period 2 covers [midpoint, max].
// The half-open/closed asymmetry keeps the midpoint day out of period 1 so
// no row is counted twice. The returned periods carry the observed row-date
// bounds of each half, which is what generated cases embed.
func CanonicalSplit(tbl *table.Table) (Period, Period, error) {
	axis, ok := tbl.TimeColumn()
	if !ok {
		return Period{}, Period{}, fmt.Errorf("window: table has no temporal column")
	}
	min, max, ok := tbl.DateRange()
	if !ok {
		return Period{}, Period{}, fmt.Errorf("window: temporal column %q has no values", axis)
	}

	days := int(max.Sub(min).Hours() / 24)
	mid := min.AddDate(0, 0, days/2)

	p1, ok1 := observedBounds(tbl, axis, func(ts time.Time) bool { return ts.Before(mid) })
	p2, ok2 := observedBounds(tbl, axis, func(ts time.Time) bool { return !ts.Before(mid) })
	if !ok1 || !ok2 {
		return Period{}, Period{}, fmt.Errorf("window: canonical split at %s leaves an empty period", mid.Format(table.DateLayout))
	}
	return p1, p2, nil
}

// validate checks the metric column and resolves the temporal axis.
func validate(tbl *table.Table, metric string) (string, error) {
	axis, ok := tbl.TimeColumn()
	if !ok {
		return "", fmt.Errorf("window: table has no temporal column")
	}
	if col, ok := tbl.Column(metric); !ok {
		return "", fmt.Errorf("window: metric column %q not found", metric)
	} else if col.Kind != table.Numeric {
		return "", fmt.Errorf("window: metric column %q is %s, want numeric", metric, col.Kind)
	}
	return axis, nil
}

func periodSum(tbl *table.Table, axis, metric string, p Period) float64 {
	var sum float64
	for i := 0; i < tbl.NumRows(); i++ {
		ts, ok := tbl.Time(axis, i)
		if !ok || !p.Contains(ts) {
			continue
		}
		if v, present := tbl.Float(metric, i); present {
			sum += v
		}
	}
	return sum
}

func groupedSums(tbl *table.Table, axis, metric, groupBy string, p Period) map[string]float64 {
	sums := make(map[string]float64)
	for i := 0; i < tbl.NumRows(); i++ {
		ts, ok := tbl.Time(axis, i)
		if !ok || !p.Contains(ts) {
			continue
		}
		g, ok := tbl.Str(groupBy, i)
		if !ok {
			continue
		}
		// A group becomes part of the union even when all of its
		// metric values are missing.
		if _, seen := sums[g]; !seen {
			sums[g] = 0
		}
		if v, present := tbl.Float(metric, i); present {
			sums[g] += v
		}
	}
	return sums
}

// percentChange computes (v2-v1)/v1*100 rounded to 2 decimal places, or
// nil when the base is zero.
func percentChange(v1, v2 float64) *float64 {
	if v1 == 0 {
		return nil
	}
	pct := math.Round((v2-v1)/v1*100*100) / 100
	return &pct
}

// observedBounds returns the inclusive min/max row dates among rows whose
// date satisfies the predicate.
func observedBounds(tbl *table.Table, axis string, in func(time.Time) bool) (Period, bool) {
	var p Period
	found := false
	for i := 0; i < tbl.NumRows(); i++ {
		ts, ok := tbl.Time(axis, i)
		if !ok || !in(ts) {
			continue
		}
		if !found || ts.Before(p.Start) {
			p.Start = ts
		}
		if !found || ts.After(p.End) {
			p.End = ts
		}
		found = true
	}
	return p, found
}
