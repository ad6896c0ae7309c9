package aggregate

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Func is a tagged reduction over a partition's metric values. Using a
// variant instead of string dispatch keeps adding a reduction a table
// edit rather than a new branch.
type Func int

const (
	Sum Func = iota
	Mean
	Min
	Max
	Count
	Median
)

// funcNames is the wire form used in case parameters.
var funcNames = map[Func]string{
	Sum:    "sum",
	Mean:   "mean",
	Min:    "min",
	Max:    "max",
	Count:  "count",
	Median: "median",
}

// String returns the wire name of the reduction.
func (f Func) String() string {
	if s, ok := funcNames[f]; ok {
		return s
	}
	return fmt.Sprintf("func(%d)", int(f))
}

// ParseFunc resolves a wire name to a reduction.
func ParseFunc(s string) (Func, error) {
	for f, name := range funcNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("aggregate: unknown function %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Func) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Func) UnmarshalText(text []byte) error {
	parsed, err := ParseFunc(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Reduce applies the function to a standalone population, outside any
// group-by. Count is meaningless without a partition row count and is
// rejected.
func Reduce(f Func, values []float64) (*float64, error) {
	if f == Count {
		return nil, fmt.Errorf("aggregate: count requires a partition")
	}
	return reduce(f, values, len(values)), nil
}

// reduce applies the function to one partition. values holds the present
// metric values after missing-value exclusion; rows is the partition's
// full row count, which is what Count reports. An undefined reduction
// (empty population) yields nil, never zero.
func reduce(f Func, values []float64, rows int) *float64 {
	if f == Count {
		v := float64(rows)
		return &v
	}
	if len(values) == 0 {
		return nil
	}

	var v float64
	switch f {
	case Sum:
		v = floats.Sum(values)
	case Mean:
		v = stat.Mean(values, nil)
	case Min:
		v = floats.Min(values)
	case Max:
		v = floats.Max(values)
	case Median:
		v = median(values)
	default:
		return nil
	}
	return &v
}

// median interpolates the middle of the sorted values. gonum's Quantile
// cumulant kinds do not reproduce the convention of averaging the two
// middle elements for even counts, so this one is computed directly.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
