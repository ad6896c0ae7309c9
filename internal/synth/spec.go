package synth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/evalforge/internal/table"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Generator kinds a ColumnSpec may name.
const (
	GenID       = "id"
	GenDate     = "date"
	GenEmail    = "email"
	GenCurrency = "currency"
	GenCount    = "count"
	GenCategory = "category"
	GenWord     = "word"
	GenFloat    = "float"
	GenInt      = "int"
)

// ColumnSpec tells the interpreter how to fill one column. Only the
// parameters relevant to the generator kind are consulted.
type ColumnSpec struct {
	Name      string   `json:"name"`
	Generator string   `json:"generator"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Values    []string `json:"values,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

// RowSpec is the structured row-generation specification, either
// returned by a model or derived heuristically.
type RowSpec struct {
	Columns []ColumnSpec `json:"columns"`
}

// rowSpecSchema constrains model output before it reaches the
// interpreter. Anything outside this shape is a failed attempt.
const rowSpecSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["columns"],
  "additionalProperties": false,
  "properties": {
    "columns": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "generator"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "generator": {
            "type": "string",
            "enum": ["id", "date", "email", "currency", "count", "category", "word", "float", "int"]
          },
          "min": {"type": "number"},
          "max": {"type": "number"},
          "values": {"type": "array", "items": {"type": "string"}, "maxItems": 64},
          "start_date": {"type": "string"},
          "end_date": {"type": "string"}
        }
      }
    }
  }
}`

var compiledSpecSchema = jsonschema.MustCompileString("rowspec.json", rowSpecSchema)

// ParseSpec validates raw model JSON against the row-spec schema and
// the expected column set, then decodes it. The spec must name every
// schema column exactly once, in any order.
func ParseSpec(raw []byte, columns []string) (RowSpec, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return RowSpec{}, fmt.Errorf("synth: spec is not valid JSON: %w", err)
	}
	if err := compiledSpecSchema.Validate(doc); err != nil {
		return RowSpec{}, fmt.Errorf("synth: spec rejected by schema: %w", err)
	}

	var spec RowSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return RowSpec{}, fmt.Errorf("synth: decode spec: %w", err)
	}
	if err := spec.Validate(columns); err != nil {
		return RowSpec{}, err
	}
	return spec, nil
}

// Validate checks the spec's semantics: full column coverage, no
// duplicates or strays, and per-generator parameter sanity.
func (s RowSpec) Validate(columns []string) error {
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}
	seen := make(map[string]bool, len(s.Columns))

	for _, col := range s.Columns {
		if seen[col.Name] {
			return fmt.Errorf("synth: spec names column %q twice", col.Name)
		}
		seen[col.Name] = true
		if !want[col.Name] {
			return fmt.Errorf("synth: spec names unknown column %q", col.Name)
		}
		if err := col.validate(); err != nil {
			return err
		}
	}
	for _, c := range columns {
		if !seen[c] {
			return fmt.Errorf("synth: spec is missing column %q", c)
		}
	}
	return nil
}

func (c ColumnSpec) validate() error {
	switch c.Generator {
	case GenCategory:
		if len(c.Values) == 0 {
			return fmt.Errorf("synth: column %q: category generator needs values", c.Name)
		}
		for _, v := range c.Values {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("synth: column %q: empty category value", c.Name)
			}
		}
	case GenDate:
		start, end, err := c.dateWindow()
		if err != nil {
			return err
		}
		if end.Before(start) {
			return fmt.Errorf("synth: column %q: date window ends before it starts", c.Name)
		}
	case GenCurrency, GenCount, GenFloat, GenInt:
		if c.Min != nil && c.Max != nil && *c.Max < *c.Min {
			return fmt.Errorf("synth: column %q: max %v below min %v", c.Name, *c.Max, *c.Min)
		}
	case GenID, GenEmail, GenWord:
		// No parameters.
	default:
		return fmt.Errorf("synth: column %q: unknown generator %q", c.Name, c.Generator)
	}
	return nil
}

// dateWindow resolves the column's date range, defaulting to the year
// ending today.
func (c ColumnSpec) dateWindow() (start, end time.Time, err error) {
	end = time.Now().UTC().Truncate(24 * time.Hour)
	start = end.AddDate(-1, 0, 0)
	if c.StartDate != "" {
		start, err = time.Parse(table.DateLayout, c.StartDate)
		if err != nil {
			return start, end, fmt.Errorf("synth: column %q: bad start_date %q: %w", c.Name, c.StartDate, err)
		}
	}
	if c.EndDate != "" {
		end, err = time.Parse(table.DateLayout, c.EndDate)
		if err != nil {
			return start, end, fmt.Errorf("synth: column %q: bad end_date %q: %w", c.Name, c.EndDate, err)
		}
	}
	return start, end, nil
}
