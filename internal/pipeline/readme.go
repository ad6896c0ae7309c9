package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/haasonsaas/evalforge/internal/evalcase"
)

// writeReadme renders the run summary into OutputDir/README.md.
func writeReadme(layout Layout, corpus *evalcase.Corpus, rows, columns int) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s Dataset - %d Rows\n\n", layout.DatasetName, rows)
	fmt.Fprintf(&sb, "Generated on: %s\n\n", corpus.Metadata.GeneratedAt.Format(time.RFC3339))

	sb.WriteString("## Structure\n\n```\n")
	fmt.Fprintf(&sb, "%s/\n", layout.DatasetDir)
	fmt.Fprintf(&sb, "├── %s\n", filepath.Base(layout.SampleFile))
	fmt.Fprintf(&sb, "└── %s/\n", filepath.Base(layout.OutputDir))
	fmt.Fprintf(&sb, "    ├── %s\n", filepath.Base(layout.SyntheticFile))
	fmt.Fprintf(&sb, "    ├── %s\n", CombinedFile)
	fmt.Fprintf(&sb, "    ├── %s\n", AggregationFile)
	fmt.Fprintf(&sb, "    ├── %s\n", TimeComparisonFile)
	fmt.Fprintf(&sb, "    ├── %s\n", CustomMetricsFile)
	fmt.Fprintf(&sb, "    └── %s\n", ReadmeFile)
	sb.WriteString("```\n\n")

	sb.WriteString("## Synthetic Data\n\n")
	fmt.Fprintf(&sb, "- **File**: `%s`\n", filepath.Base(layout.SyntheticFile))
	fmt.Fprintf(&sb, "- **Rows**: %d\n", rows)
	fmt.Fprintf(&sb, "- **Columns**: %d\n\n", columns)

	fmt.Fprintf(&sb, "## Evaluation Cases\n\nTotal test cases: **%d**\n\n", corpus.Metadata.TotalCases)

	families := make([]string, 0, len(corpus.Categories))
	for family := range corpus.Categories {
		families = append(families, family)
	}
	sort.Strings(families)
	for _, family := range families {
		sec := corpus.Categories[family]
		fmt.Fprintf(&sb, "### %s\n", titleWords(family))
		fmt.Fprintf(&sb, "- Test cases: **%d**\n", sec.Count)
		fmt.Fprintf(&sb, "- Description: %s\n\n", sec.Description)
	}

	sb.WriteString("## Usage\n\n")
	fmt.Fprintf(&sb, "Grade an agent's answers against the corpus:\n\n```\nevalforge grade --data %s --cases %s\n```\n",
		filepath.Base(layout.SyntheticFile), CombinedFile)

	path := filepath.Join(layout.OutputDir, ReadmeFile)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("pipeline: write readme: %w", err)
	}
	return nil
}

// titleWords renders "time_comparison" as "Time Comparison".
func titleWords(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
