package metric

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/haasonsaas/evalforge/internal/aggregate"
	"github.com/haasonsaas/evalforge/internal/table"
)

func fp(v float64) *float64 { return &v }

func marketingTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.FromRecords(
		[]string{"Date", "Region", "Revenue", "Cost"},
		[][]string{
			{"2024-01-01", "East", "100", "50"},
			{"2024-01-10", "West", "200", "100"},
			{"2024-02-05", "East", "150", "60"},
			{"2024-02-20", "West", "50", "40"},
		},
	)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}
	return tbl
}

func TestLookup(t *testing.T) {
	names := []string{"ROI", "Conversion Rate", "Cost Per Conversion", "Revenue Per Session", "Profit Margin"}
	for _, name := range names {
		f, ok := Lookup(name)
		if !ok {
			t.Errorf("Lookup(%q) ok = false, want true", name)
			continue
		}
		if f.Name != name {
			t.Errorf("Lookup(%q).Name = %q", name, f.Name)
		}
		if f.Denominator == "" || len(f.Required) == 0 {
			t.Errorf("Lookup(%q) has empty guard or required columns", name)
		}
	}
	if _, ok := Lookup("EBITDA"); ok {
		t.Errorf("Lookup(EBITDA) ok = true, want false")
	}
	if got := len(Formulas()); got != len(names) {
		t.Errorf("len(Formulas()) = %d, want %d", got, len(names))
	}
}

func TestCompute_ROI(t *testing.T) {
	tbl := marketingTable(t)
	f, _ := Lookup("ROI")

	values, valid, err := f.Compute(tbl)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	want := []float64{100, 100, 150, 25}
	for i, w := range want {
		if !valid[i] {
			t.Errorf("valid[%d] = false, want true", i)
		}
		if values[i] != w {
			t.Errorf("values[%d] = %v, want %v", i, values[i], w)
		}
	}
}

func TestCompute_GuardAndCompleteness(t *testing.T) {
	tbl, err := table.FromRecords(
		[]string{"Region", "Revenue", "Cost"},
		[][]string{
			{"East", "100", "50"}, // included
			{"East", "100", "0"},  // zero denominator: dropped
			{"West", "", "50"},    // missing required value: dropped
			{"West", "90", ""},    // missing denominator: dropped
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := Lookup("ROI")

	_, valid, err := f.Compute(tbl)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	wantValid := []bool{true, false, false, false}
	for i, w := range wantValid {
		if valid[i] != w {
			t.Errorf("valid[%d] = %v, want %v", i, valid[i], w)
		}
	}
}

func TestCompute_MissingColumn(t *testing.T) {
	tbl := marketingTable(t)
	f, _ := Lookup("Conversion Rate") // needs Conversions, Clicks

	if f.Supported(tbl) {
		t.Errorf("Supported() = true, want false")
	}
	if _, _, err := f.Compute(tbl); err == nil {
		t.Errorf("Compute() error = nil, want error")
	}
}

func TestAggregate(t *testing.T) {
	tbl := marketingTable(t)
	f, _ := Lookup("ROI")

	tests := []struct {
		name string
		fn   aggregate.Func
		want float64
	}{
		{"mean", aggregate.Mean, 93.75},
		{"sum", aggregate.Sum, 375},
		{"median", aggregate.Median, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Aggregate(tbl, tt.fn)
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			if got == nil || *got != tt.want {
				t.Errorf("Aggregate() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := f.Aggregate(tbl, aggregate.Count); err == nil {
		t.Errorf("Aggregate(count) error = nil, want error")
	}
}

func TestAggregate_EmptyPopulation(t *testing.T) {
	tbl, err := table.FromRecords(
		[]string{"Region", "Revenue", "Cost"},
		[][]string{
			{"East", "100", "0"},
			{"West", "50", "0"},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := Lookup("ROI")

	got, err := f.Aggregate(tbl, aggregate.Mean)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if got != nil {
		t.Errorf("Aggregate() = %v, want nil for empty population", *got)
	}
}

// Recomputing the same aggregate twice must be identical: no hidden
// random state anywhere in the path.
func TestAggregate_Deterministic(t *testing.T) {
	tbl := marketingTable(t)
	f, _ := Lookup("Profit Margin")

	first, err := f.Aggregate(tbl, aggregate.Mean)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	second, err := f.Aggregate(tbl, aggregate.Mean)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if *first != *second {
		t.Errorf("Aggregate() = %v then %v, want identical", *first, *second)
	}
}

func TestAggregateGrouped(t *testing.T) {
	tbl := marketingTable(t)
	f, _ := Lookup("ROI")

	got, err := f.AggregateGrouped(tbl, "Region", aggregate.Mean)
	if err != nil {
		t.Fatalf("AggregateGrouped() error = %v", err)
	}
	want := map[string]*float64{
		"East": fp(125),  // mean(100, 150)
		"West": fp(62.5), // mean(100, 25)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AggregateGrouped() mismatch (-want +got):\n%s", diff)
	}

	// Original table untouched by the derived copy.
	if _, ok := tbl.Column("custom_metric"); ok {
		t.Errorf("original table gained the derived column")
	}
}

func TestAggregateGrouped_RejectsCount(t *testing.T) {
	// Count over the derived column would include rows the guard and
	// completeness filters dropped from the population.
	tbl := marketingTable(t)
	f, _ := Lookup("ROI")
	for _, fn := range []aggregate.Func{aggregate.Count, aggregate.Min, aggregate.Max} {
		if _, err := f.AggregateGrouped(tbl, "Region", fn); err == nil {
			t.Errorf("AggregateGrouped(%s) error = nil, want unsupported", fn)
		}
	}
}

func TestAggregateGrouped_BadGroupColumn(t *testing.T) {
	tbl := marketingTable(t)
	f, _ := Lookup("ROI")
	if _, err := f.AggregateGrouped(tbl, "Revenue", aggregate.Mean); err == nil {
		t.Errorf("AggregateGrouped(numeric group) error = nil, want error")
	}
}
