package synth

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/haasonsaas/evalforge/internal/table"
)

var (
	emailDomains = []string{"example.com", "mailbox.net", "inbox.dev"}

	wordTokens = []string{
		"alpha", "bravo", "charlie", "delta", "echo", "foxtrot",
		"golf", "hotel", "india", "juliet", "kilo", "lima",
	}
)

// Rows materializes n records from the spec. The header follows the
// spec's column order; randomness comes only from rng, so a seeded rng
// reproduces the dataset exactly.
func (s RowSpec) Rows(n int, rng *rand.Rand) (header []string, records [][]string, err error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("synth: row count %d must be positive", n)
	}
	if len(s.Columns) == 0 {
		return nil, nil, fmt.Errorf("synth: spec has no columns")
	}
	for _, col := range s.Columns {
		if err := col.validate(); err != nil {
			return nil, nil, err
		}
		header = append(header, col.Name)
	}

	records = make([][]string, n)
	for i := range records {
		rec := make([]string, len(s.Columns))
		for j, col := range s.Columns {
			rec[j] = col.cell(i, rng)
		}
		records[i] = rec
	}
	return header, records, nil
}

// cell renders one value. row is the 0-based record index, used by the
// id generator for sequential keys.
func (c ColumnSpec) cell(row int, rng *rand.Rand) string {
	switch c.Generator {
	case GenID:
		return strconv.Itoa(row + 1)
	case GenDate:
		start, end, _ := c.dateWindow()
		days := int(end.Sub(start).Hours()/24) + 1
		return start.AddDate(0, 0, rng.Intn(days)).Format(table.DateLayout)
	case GenEmail:
		user := wordTokens[rng.Intn(len(wordTokens))]
		domain := emailDomains[rng.Intn(len(emailDomains))]
		return fmt.Sprintf("%s%d@%s", user, rng.Intn(1000), domain)
	case GenCurrency:
		return strconv.FormatFloat(c.randFloat(rng, 10, 5000), 'f', 2, 64)
	case GenCount:
		return strconv.Itoa(c.randInt(rng, 1, 100))
	case GenCategory:
		return c.Values[rng.Intn(len(c.Values))]
	case GenWord:
		return wordTokens[rng.Intn(len(wordTokens))]
	case GenFloat:
		return strconv.FormatFloat(c.randFloat(rng, 0, 1000), 'f', 2, 64)
	case GenInt:
		return strconv.Itoa(c.randInt(rng, 0, 1000))
	default:
		// validate() rejects unknown generators before we get here.
		return ""
	}
}

func (c ColumnSpec) randFloat(rng *rand.Rand, defaultMin, defaultMax float64) float64 {
	lo, hi := defaultMin, defaultMax
	if c.Min != nil {
		lo = *c.Min
	}
	if c.Max != nil {
		hi = *c.Max
	}
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func (c ColumnSpec) randInt(rng *rand.Rand, defaultMin, defaultMax int) int {
	lo, hi := defaultMin, defaultMax
	if c.Min != nil {
		lo = int(*c.Min)
	}
	if c.Max != nil {
		hi = int(*c.Max)
	}
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo+1)
}
