package evalcase

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Metadata describes one generation run.
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	RunID       string    `json:"run_id,omitempty"`
	SourceData  string    `json:"source_data,omitempty"`
	TotalCases  int       `json:"total_cases"`
}

// Section is one category family's block in the corpus document.
type Section struct {
	Description string `json:"description"`
	Count       int    `json:"count"`
	Cases       []Case `json:"cases"`
}

// Corpus is the persisted case document. The combined form carries the
// Categories mapping; per-category files carry the flat Cases list.
// Exactly one of the two is populated.
type Corpus struct {
	Metadata   Metadata           `json:"metadata"`
	Categories map[string]Section `json:"categories,omitempty"`
	Cases      []Case             `json:"cases,omitempty"`
}

// UnmarshalJSON decodes the section's cases one at a time so a broken
// case stays in the list with its error instead of aborting the
// document.
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string            `json:"description"`
		Count       int               `json:"count"`
		Cases       []json.RawMessage `json:"cases"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Description = raw.Description
	s.Count = raw.Count
	s.Cases = decodeCases(raw.Cases)
	return nil
}

// UnmarshalJSON applies the same per-case decoding to the flat shape.
func (c *Corpus) UnmarshalJSON(data []byte) error {
	var raw struct {
		Metadata   Metadata           `json:"metadata"`
		Categories map[string]Section `json:"categories"`
		Cases      []json.RawMessage  `json:"cases"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Metadata = raw.Metadata
	c.Categories = raw.Categories
	c.Cases = decodeCases(raw.Cases)
	return nil
}

// decodeCases keeps a structurally broken case in place: its id and
// category are salvaged when the fields still parse and Err records
// the decode failure, so grading fails the one case and the rest of
// the corpus survives.
func decodeCases(raws []json.RawMessage) []Case {
	if raws == nil {
		return nil
	}
	cases := make([]Case, 0, len(raws))
	for _, raw := range raws {
		var c Case
		if err := json.Unmarshal(raw, &c); err != nil {
			var head struct {
				ID       string   `json:"id"`
				Category Category `json:"category"`
			}
			// Partial decode may have left fields behind; keep only
			// what identifies the case.
			c = Case{Err: fmt.Errorf("evalcase: decode case: %w", err)}
			if json.Unmarshal(raw, &head) == nil {
				c.ID = head.ID
				c.Category = head.Category
			}
		}
		cases = append(cases, c)
	}
	return cases
}

// SectionDescriptions titles the three corpus sections.
var SectionDescriptions = map[string]string{
	"aggregation":     "Test cases for grouping and aggregating data with sum, avg, min, max",
	"time_comparison": "Test cases for comparing metrics between different time periods",
	"custom_metric":   "Test cases for calculating and aggregating custom business metrics",
}

// AllCases flattens the corpus into a single case list, whichever shape
// the document uses. Section order is fixed so grading output is stable.
func (c *Corpus) AllCases() []Case {
	if len(c.Categories) == 0 {
		return c.Cases
	}
	var all []Case
	for _, family := range []string{"aggregation", "time_comparison", "custom_metric"} {
		if sec, ok := c.Categories[family]; ok {
			all = append(all, sec.Cases...)
		}
	}
	// Unknown sections still grade; they surface as category failures.
	for family, sec := range c.Categories {
		switch family {
		case "aggregation", "time_comparison", "custom_metric":
		default:
			all = append(all, sec.Cases...)
		}
	}
	return all
}

// Save writes the corpus as indented JSON.
func (c *Corpus) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("evalcase: marshal corpus: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("evalcase: write corpus: %w", err)
	}
	return nil
}

// Load reads a corpus document, accepting both the combined categories
// shape and a per-category flat list.
func Load(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("evalcase: read corpus: %w", err)
	}
	var c Corpus
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("evalcase: parse corpus %s: %w", path, err)
	}
	if len(c.Categories) == 0 && len(c.Cases) == 0 {
		return nil, fmt.Errorf("evalcase: corpus %s has no cases", path)
	}
	return &c, nil
}
