package aggregate

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/haasonsaas/evalforge/internal/table"
)

func fp(v float64) *float64 { return &v }

func buildTable(t *testing.T, header []string, records [][]string) *table.Table {
	t.Helper()
	tbl, err := table.FromRecords(header, records)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}
	return tbl
}

func regionTable(t *testing.T) *table.Table {
	return buildTable(t,
		[]string{"Date", "Region", "Channel", "Revenue"},
		[][]string{
			{"2024-01-01", "East", "Search", "100"},
			{"2024-01-10", "West", "Social", "200"},
			{"2024-02-05", "East", "Search", "150"},
			{"2024-02-20", "West", "Search", "50"},
		},
	)
}

func TestAggregate_SingleColumn(t *testing.T) {
	tbl := regionTable(t)

	tests := []struct {
		name string
		fn   Func
		want map[string]*float64
	}{
		{"sum", Sum, map[string]*float64{"East": fp(250), "West": fp(250)}},
		{"mean", Mean, map[string]*float64{"East": fp(125), "West": fp(125)}},
		{"min", Min, map[string]*float64{"East": fp(100), "West": fp(50)}},
		{"max", Max, map[string]*float64{"East": fp(150), "West": fp(200)}},
		{"count", Count, map[string]*float64{"East": fp(2), "West": fp(2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Aggregate(tbl, []string{"Region"}, "Revenue", tt.fn)
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAggregate_TwoColumns(t *testing.T) {
	tbl := regionTable(t)

	got, err := Aggregate(tbl, []string{"Region", "Channel"}, "Revenue", Sum)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	want := map[string]*float64{
		"East_Search": fp(250),
		"West_Social": fp(200),
		"West_Search": fp(50),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_MissingValues(t *testing.T) {
	tbl := buildTable(t,
		[]string{"Region", "Revenue"},
		[][]string{
			{"East", "100"},
			{"East", ""},   // missing metric: excluded from sum, counted by count
			{"", "999"},    // missing group value: excluded entirely
			{"West", ""},   // only row for West has no metric
		},
	)

	sum, err := Aggregate(tbl, []string{"Region"}, "Revenue", Sum)
	if err != nil {
		t.Fatalf("Aggregate(sum) error = %v", err)
	}
	want := map[string]*float64{"East": fp(100), "West": nil}
	if diff := cmp.Diff(want, sum); diff != "" {
		t.Errorf("Aggregate(sum) mismatch (-want +got):\n%s", diff)
	}

	count, err := Aggregate(tbl, []string{"Region"}, "Revenue", Count)
	if err != nil {
		t.Fatalf("Aggregate(count) error = %v", err)
	}
	wantCount := map[string]*float64{"East": fp(2), "West": fp(1)}
	if diff := cmp.Diff(wantCount, count); diff != "" {
		t.Errorf("Aggregate(count) mismatch (-want +got):\n%s", diff)
	}
}

// The sum of per-group counts must equal the number of rows that carry
// every group value.
func TestAggregate_CountTotalsMatchRows(t *testing.T) {
	tbl := regionTable(t)
	for _, groupBy := range [][]string{{"Region"}, {"Channel"}, {"Region", "Channel"}} {
		got, err := Aggregate(tbl, groupBy, "Revenue", Count)
		if err != nil {
			t.Fatalf("Aggregate(%v) error = %v", groupBy, err)
		}
		total := 0.0
		for _, v := range got {
			total += *v
		}
		if total != float64(tbl.NumRows()) {
			t.Errorf("sum of counts for %v = %v, want %d", groupBy, total, tbl.NumRows())
		}
	}
}

func TestAggregate_Validation(t *testing.T) {
	tbl := regionTable(t)

	tests := []struct {
		name    string
		groupBy []string
		metric  string
	}{
		{"no group columns", nil, "Revenue"},
		{"three group columns", []string{"Region", "Channel", "Region"}, "Revenue"},
		{"unknown group column", []string{"Planet"}, "Revenue"},
		{"numeric group column", []string{"Revenue"}, "Revenue"},
		{"unknown metric", []string{"Region"}, "Profit"},
		{"categorical metric", []string{"Region"}, "Channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Aggregate(tbl, tt.groupBy, tt.metric, Sum); err == nil {
				t.Errorf("Aggregate() error = nil, want error")
			}
		})
	}
}

func TestParseFunc(t *testing.T) {
	for _, fn := range []Func{Sum, Mean, Min, Max, Count, Median} {
		parsed, err := ParseFunc(fn.String())
		if err != nil {
			t.Fatalf("ParseFunc(%q) error = %v", fn.String(), err)
		}
		if parsed != fn {
			t.Errorf("ParseFunc(%q) = %v, want %v", fn.String(), parsed, fn)
		}
	}
	if _, err := ParseFunc("mode"); err == nil {
		t.Errorf("ParseFunc(mode) error = nil, want error")
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.values); got != tt.want {
				t.Errorf("median(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestSerializeKey(t *testing.T) {
	if got := SerializeKey("East"); got != "East" {
		t.Errorf("SerializeKey(East) = %q, want East", got)
	}
	if got := SerializeKey("East", "Search"); got != "East_Search" {
		t.Errorf("SerializeKey(East, Search) = %q, want East_Search", got)
	}
}
