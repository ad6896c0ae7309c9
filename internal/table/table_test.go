package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleTable(t *testing.T) *Table {
	t.Helper()
	header := []string{"Date", "Region", "Revenue", "Cost"}
	records := [][]string{
		{"2024-01-01", "East", "100", "50"},
		{"2024-01-10", "West", "200", "100"},
		{"2024-02-05", "East", "150", "60"},
		{"2024-02-20", "West", "50", "40"},
	}
	tbl, err := FromRecords(header, records)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}
	return tbl
}

func TestFromRecords_KindInference(t *testing.T) {
	tbl := sampleTable(t)

	tests := []struct {
		name string
		want Kind
	}{
		{"Date", Temporal},
		{"Region", Categorical},
		{"Revenue", Numeric},
		{"Cost", Numeric},
	}
	for _, tt := range tests {
		col, ok := tbl.Column(tt.name)
		if !ok {
			t.Fatalf("Column(%q) not found", tt.name)
		}
		if col.Kind != tt.want {
			t.Errorf("Column(%q).Kind = %v, want %v", tt.name, col.Kind, tt.want)
		}
	}

	if got := tbl.NumRows(); got != 4 {
		t.Errorf("NumRows() = %d, want 4", got)
	}
}

func TestFromRecords_MissingCells(t *testing.T) {
	tbl, err := FromRecords(
		[]string{"Region", "Revenue"},
		[][]string{
			{"East", "100"},
			{"West", ""},
			{"", "25"},
			{"East"}, // short row padded with missing
		},
	)
	if err != nil {
		t.Fatalf("FromRecords() error = %v", err)
	}

	if _, ok := tbl.Float("Revenue", 1); ok {
		t.Errorf("Float(Revenue, 1) ok = true, want false for missing cell")
	}
	if _, ok := tbl.Str("Region", 2); ok {
		t.Errorf("Str(Region, 2) ok = true, want false for missing cell")
	}
	if _, ok := tbl.Float("Revenue", 3); ok {
		t.Errorf("Float(Revenue, 3) ok = true, want false for padded cell")
	}
	if v, ok := tbl.Float("Revenue", 2); !ok || v != 25 {
		t.Errorf("Float(Revenue, 2) = %v, %v, want 25, true", v, ok)
	}
}

func TestFromRecords_HeaderErrors(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		rows   [][]string
	}{
		{"empty header", nil, nil},
		{"blank column name", []string{"A", ""}, nil},
		{"duplicate column", []string{"A", "A"}, nil},
		{"wide row", []string{"A"}, [][]string{{"1", "2"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRecords(tt.header, tt.rows); err == nil {
				t.Errorf("FromRecords() error = nil, want error")
			}
		})
	}
}

func TestTable_TimeColumnAndDateRange(t *testing.T) {
	tbl := sampleTable(t)

	name, ok := tbl.TimeColumn()
	if !ok || name != "Date" {
		t.Fatalf("TimeColumn() = %q, %v, want Date, true", name, ok)
	}

	min, max, ok := tbl.DateRange()
	if !ok {
		t.Fatal("DateRange() ok = false, want true")
	}
	wantMin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wantMax := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	if !min.Equal(wantMin) {
		t.Errorf("DateRange() min = %v, want %v", min, wantMin)
	}
	if !max.Equal(wantMax) {
		t.Errorf("DateRange() max = %v, want %v", max, wantMax)
	}
}

func TestTable_ColumnLists(t *testing.T) {
	tbl := sampleTable(t)

	if got := tbl.NumericColumns(); len(got) != 2 || got[0] != "Revenue" || got[1] != "Cost" {
		t.Errorf("NumericColumns() = %v, want [Revenue Cost]", got)
	}
	if got := tbl.CategoricalColumns(); len(got) != 1 || got[0] != "Region" {
		t.Errorf("CategoricalColumns() = %v, want [Region]", got)
	}
}

func TestTable_WithNumericColumn(t *testing.T) {
	tbl := sampleTable(t)

	derived, err := tbl.WithNumericColumn("__metric", []float64{1, 2, 3, 4}, []bool{true, true, false, true})
	if err != nil {
		t.Fatalf("WithNumericColumn() error = %v", err)
	}

	if v, ok := derived.Float("__metric", 1); !ok || v != 2 {
		t.Errorf("derived Float(__metric, 1) = %v, %v, want 2, true", v, ok)
	}
	if _, ok := derived.Float("__metric", 2); ok {
		t.Errorf("derived Float(__metric, 2) ok = true, want false")
	}

	// Original table is untouched.
	if _, ok := tbl.Column("__metric"); ok {
		t.Errorf("original table gained column __metric")
	}
	if got := len(tbl.Columns()); got != 4 {
		t.Errorf("original Columns() len = %d, want 4", got)
	}

	if _, err := tbl.WithNumericColumn("Revenue", []float64{0, 0, 0, 0}, []bool{true, true, true, true}); err == nil {
		t.Errorf("WithNumericColumn(existing) error = nil, want error")
	}
	if _, err := tbl.WithNumericColumn("x", []float64{1}, []bool{true}); err == nil {
		t.Errorf("WithNumericColumn(short) error = nil, want error")
	}
}

func TestReadCSV(t *testing.T) {
	data := "Date,Region,Revenue\n2024-01-01,East,100\n2024-01-02,West,\n"
	tbl, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if got := tbl.NumRows(); got != 2 {
		t.Errorf("NumRows() = %d, want 2", got)
	}
	if _, ok := tbl.Float("Revenue", 1); ok {
		t.Errorf("Float(Revenue, 1) ok = true, want false")
	}
}

func TestReadCSV_Empty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Errorf("ReadCSV(empty) error = nil, want error")
	}
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("A,B\n1,x\n2,y\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tbl, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV() error = %v", err)
	}
	if got := tbl.NumRows(); got != 2 {
		t.Errorf("NumRows() = %d, want 2", got)
	}

	if _, err := LoadCSV(filepath.Join(dir, "missing.csv")); err == nil {
		t.Errorf("LoadCSV(missing) error = nil, want error")
	}
}
