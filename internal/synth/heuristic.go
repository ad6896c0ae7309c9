package synth

import "strings"

// statusVocabulary is the fixed value set for status-like columns when
// no model suggestion is available.
var statusVocabulary = []string{"active", "pending", "completed", "cancelled"}

// HeuristicSpec derives a row spec from column names alone. It is the
// deterministic fallback when every model candidate fails: substring
// matching picks a generator per column, with the word generator as the
// catch-all. Match order matters; "customer_id" must hit the id rule
// before anything else.
func HeuristicSpec(schema Schema) RowSpec {
	spec := RowSpec{Columns: make([]ColumnSpec, 0, len(schema.Columns))}
	for _, name := range schema.Columns {
		spec.Columns = append(spec.Columns, heuristicColumn(name))
	}
	return spec
}

func heuristicColumn(name string) ColumnSpec {
	col := ColumnSpec{Name: name}
	lower := strings.ToLower(name)

	switch {
	case contains(lower, "id", "key"):
		col.Generator = GenID
	case contains(lower, "date", "time"):
		col.Generator = GenDate
	case contains(lower, "email"):
		col.Generator = GenEmail
	case contains(lower, "amount", "price", "cost", "revenue"):
		col.Generator = GenCurrency
	case contains(lower, "count", "number", "quantity"):
		col.Generator = GenCount
	case contains(lower, "status", "type", "category"):
		col.Generator = GenCategory
		col.Values = append([]string(nil), statusVocabulary...)
	default:
		col.Generator = GenWord
	}
	return col
}

func contains(name string, substrings ...string) bool {
	for _, s := range substrings {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}
