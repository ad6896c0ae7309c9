// Package aggregate implements group-by reductions over one or two
// categorical columns and one numeric metric column.
//
// Group keys are structured tuples internally and are only flattened to
// their `_`-joined string form at the result boundary. Values that
// themselves contain `_` therefore produce ambiguous serialized keys;
// this is an accepted property of the corpus format.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/evalforge/internal/table"
)

// key is the structured partition identifier: an ordered tuple of one or
// two categorical values.
type key struct {
	a, b string
	n    int
}

// String flattens the key for the result mapping.
func (k key) String() string {
	if k.n == 1 {
		return k.a
	}
	return k.a + "_" + k.b
}

// partition accumulates one group's rows during the scan.
type partition struct {
	key    key
	rows   int
	values []float64
}

// Aggregate partitions the table by the distinct values of groupBy (one
// or two categorical columns) and reduces the metric column within each
// partition.
//
// Rows with a missing group value are excluded from partitioning. Count
// counts a partition's rows regardless of the metric value; all other
// reductions exclude rows whose metric is missing, and report nil for a
// partition left empty by that exclusion.
//
// The result mapping has no defined iteration order; consumers must rely
// on key lookup only.
func Aggregate(tbl *table.Table, groupBy []string, metric string, fn Func) (map[string]*float64, error) {
	if len(groupBy) < 1 || len(groupBy) > 2 {
		return nil, fmt.Errorf("aggregate: group by %d columns, want 1 or 2", len(groupBy))
	}
	for _, name := range groupBy {
		col, ok := tbl.Column(name)
		if !ok {
			return nil, fmt.Errorf("aggregate: group column %q not found", name)
		}
		if col.Kind != table.Categorical {
			return nil, fmt.Errorf("aggregate: group column %q is %s, want categorical", name, col.Kind)
		}
	}
	if col, ok := tbl.Column(metric); !ok {
		return nil, fmt.Errorf("aggregate: metric column %q not found", metric)
	} else if col.Kind != table.Numeric {
		return nil, fmt.Errorf("aggregate: metric column %q is %s, want numeric", metric, col.Kind)
	}

	parts := make(map[key]*partition)
	for i := 0; i < tbl.NumRows(); i++ {
		k, ok := rowKey(tbl, groupBy, i)
		if !ok {
			continue
		}
		p := parts[k]
		if p == nil {
			p = &partition{key: k}
			parts[k] = p
		}
		p.rows++
		if v, present := tbl.Float(metric, i); present {
			p.values = append(p.values, v)
		}
	}

	result := make(map[string]*float64, len(parts))
	for _, p := range parts {
		result[p.key.String()] = reduce(fn, p.values, p.rows)
	}
	return result, nil
}

// rowKey builds the structured key for row i, or false when any group
// value is missing.
func rowKey(tbl *table.Table, groupBy []string, i int) (key, bool) {
	k := key{n: len(groupBy)}
	for j, name := range groupBy {
		v, ok := tbl.Str(name, i)
		if !ok {
			return key{}, false
		}
		if j == 0 {
			k.a = v
		} else {
			k.b = v
		}
	}
	return k, true
}

// SerializeKey flattens an ordered tuple of group values the same way
// result keys are flattened.
func SerializeKey(values ...string) string {
	return strings.Join(values, "_")
}
