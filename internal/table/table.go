// Package table provides the in-memory columnar dataset that the
// aggregation, time-window, and custom-metric engines operate on.
//
// A Table is built once from CSV records and is immutable afterwards.
// Column kinds are inferred by value inspection: a column whose non-empty
// values all parse as YYYY-MM-DD dates is temporal, one whose values all
// parse as floats is numeric, and anything else is categorical. Missing
// values (empty cells) are tracked per cell and never coerced to zero.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by temporal columns.
const DateLayout = "2006-01-02"

// Kind identifies the declared type of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
	Temporal
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	case Temporal:
		return "temporal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column holds a single typed column. Exactly one of the value slices is
// populated depending on Kind; valid marks cells that carry a value.
type Column struct {
	Name string
	Kind Kind

	nums  []float64
	strs  []string
	times []time.Time
	valid []bool
}

// Table is an ordered collection of equally sized columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// FromRecords builds a table from a header row and string records,
// inferring each column's kind from its values. Records narrower than the
// header are padded with missing cells; wider records are an error.
func FromRecords(header []string, records [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("table: empty header")
	}
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if name == "" {
			return nil, fmt.Errorf("table: empty column name in header")
		}
		if seen[name] {
			return nil, fmt.Errorf("table: duplicate column %q", name)
		}
		seen[name] = true
	}

	raw := make([][]string, len(header))
	for i := range raw {
		raw[i] = make([]string, len(records))
	}
	for r, rec := range records {
		if len(rec) > len(header) {
			return nil, fmt.Errorf("table: row %d has %d fields, header has %d", r+1, len(rec), len(header))
		}
		for c := range header {
			if c < len(rec) {
				raw[c][r] = strings.TrimSpace(rec[c])
			}
		}
	}

	t := &Table{
		index: make(map[string]int, len(header)),
		rows:  len(records),
	}
	for c, name := range header {
		col := buildColumn(name, raw[c])
		t.index[name] = len(t.cols)
		t.cols = append(t.cols, col)
	}
	return t, nil
}

// buildColumn infers the kind of a raw value slice and parses it.
func buildColumn(name string, values []string) *Column {
	isDate := true
	isNum := true
	nonEmpty := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		nonEmpty++
		if isDate {
			if _, err := time.Parse(DateLayout, v); err != nil {
				isDate = false
			}
		}
		if isNum {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isNum = false
			}
		}
	}

	col := &Column{Name: name, valid: make([]bool, len(values))}
	switch {
	case nonEmpty > 0 && isDate:
		col.Kind = Temporal
		col.times = make([]time.Time, len(values))
		for i, v := range values {
			if v == "" {
				continue
			}
			ts, _ := time.Parse(DateLayout, v)
			col.times[i] = ts
			col.valid[i] = true
		}
	case isNum:
		// An all-missing column lands here as well, matching the
		// convention that unknown columns default to numeric.
		col.Kind = Numeric
		col.nums = make([]float64, len(values))
		for i, v := range values {
			if v == "" {
				continue
			}
			f, _ := strconv.ParseFloat(v, 64)
			col.nums[i] = f
			col.valid[i] = true
		}
	default:
		col.Kind = Categorical
		col.strs = make([]string, len(values))
		for i, v := range values {
			if v == "" {
				continue
			}
			col.strs[i] = v
			col.valid[i] = true
		}
	}
	return col
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int { return t.rows }

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or false if it does not exist.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Float returns the numeric value at row i of the named column.
// The second return is false for missing cells, non-numeric columns,
// and unknown columns.
func (t *Table) Float(name string, i int) (float64, bool) {
	col, ok := t.Column(name)
	if !ok || col.Kind != Numeric || i < 0 || i >= t.rows || !col.valid[i] {
		return 0, false
	}
	return col.nums[i], true
}

// Str returns the categorical value at row i of the named column.
func (t *Table) Str(name string, i int) (string, bool) {
	col, ok := t.Column(name)
	if !ok || col.Kind != Categorical || i < 0 || i >= t.rows || !col.valid[i] {
		return "", false
	}
	return col.strs[i], true
}

// Time returns the temporal value at row i of the named column.
func (t *Table) Time(name string, i int) (time.Time, bool) {
	col, ok := t.Column(name)
	if !ok || col.Kind != Temporal || i < 0 || i >= t.rows || !col.valid[i] {
		return time.Time{}, false
	}
	return col.times[i], true
}

// NumericColumns returns the names of all numeric columns.
func (t *Table) NumericColumns() []string {
	return t.columnsOfKind(Numeric)
}

// CategoricalColumns returns the names of all categorical columns.
func (t *Table) CategoricalColumns() []string {
	return t.columnsOfKind(Categorical)
}

func (t *Table) columnsOfKind(k Kind) []string {
	var names []string
	for _, c := range t.cols {
		if c.Kind == k {
			names = append(names, c.Name)
		}
	}
	return names
}

// TimeColumn returns the name of the temporal axis: the first temporal
// column in declaration order. The second return is false when the table
// has no temporal column.
func (t *Table) TimeColumn() (string, bool) {
	for _, c := range t.cols {
		if c.Kind == Temporal {
			return c.Name, true
		}
	}
	return "", false
}

// DateRange returns the minimum and maximum values of the temporal axis.
// The second return is false when the table has no temporal column or no
// row carries a date.
func (t *Table) DateRange() (min, max time.Time, ok bool) {
	name, found := t.TimeColumn()
	if !found {
		return time.Time{}, time.Time{}, false
	}
	for i := 0; i < t.rows; i++ {
		ts, valid := t.Time(name, i)
		if !valid {
			continue
		}
		if !ok || ts.Before(min) {
			min = ts
		}
		if !ok || ts.After(max) {
			max = ts
		}
		ok = true
	}
	return min, max, ok
}

// WithNumericColumn returns a derived table that shares this table's
// columns and adds one synthetic numeric column. The receiver is never
// mutated; the derived copy is what the custom-metric engine aggregates
// over and discards.
func (t *Table) WithNumericColumn(name string, values []float64, valid []bool) (*Table, error) {
	if _, exists := t.index[name]; exists {
		return nil, fmt.Errorf("table: column %q already exists", name)
	}
	if len(values) != t.rows || len(valid) != t.rows {
		return nil, fmt.Errorf("table: column %q has %d values, table has %d rows", name, len(values), t.rows)
	}

	derived := &Table{
		cols:  make([]*Column, 0, len(t.cols)+1),
		index: make(map[string]int, len(t.cols)+1),
		rows:  t.rows,
	}
	derived.cols = append(derived.cols, t.cols...)
	for n, i := range t.index {
		derived.index[n] = i
	}
	derived.index[name] = len(derived.cols)
	derived.cols = append(derived.cols, &Column{
		Name:  name,
		Kind:  Numeric,
		nums:  append([]float64(nil), values...),
		valid: append([]bool(nil), valid...),
	})
	return derived, nil
}
