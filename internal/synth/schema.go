// Package synth generates synthetic tabular data. An external model is
// asked for a structured row specification describing how to fill each
// column; a fixed local interpreter then materializes rows from it. The
// model never returns executable code. When every model candidate
// fails, a deterministic heuristic derives the specification from
// column names instead.
package synth

import (
	"fmt"

	"github.com/haasonsaas/evalforge/internal/table"
)

// maxSampleRows bounds how many sample rows are shown to the model.
const maxSampleRows = 5

// Schema describes the sample dataset the synthetic data must imitate.
type Schema struct {
	Columns    []string            `json:"columns"`
	Kinds      map[string]string   `json:"kinds"`
	SampleRows []map[string]string `json:"sample_rows"`
}

// AnalyzeRecords inspects a sample CSV's header and records: column
// kinds come from the same inference the engines use, and the first few
// records are kept verbatim as examples for the model prompt.
func AnalyzeRecords(header []string, records [][]string) (Schema, error) {
	tbl, err := table.FromRecords(header, records)
	if err != nil {
		return Schema{}, fmt.Errorf("synth: analyze sample: %w", err)
	}

	schema := Schema{
		Columns: tbl.Columns(),
		Kinds:   make(map[string]string, len(header)),
	}
	for _, name := range schema.Columns {
		col, _ := tbl.Column(name)
		schema.Kinds[name] = col.Kind.String()
	}

	n := min(maxSampleRows, len(records))
	for _, rec := range records[:n] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		schema.SampleRows = append(schema.SampleRows, row)
	}
	return schema, nil
}
