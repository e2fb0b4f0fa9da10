package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/chartgenie/chartgenie/internal/aggregate"
	"github.com/chartgenie/chartgenie/pkg/models"
)

const (
	promptSampleRows  = 10
	insightSampleRows = 5
	statsMaxValues    = 10
	latestMarker      = "Latest: "
)

const systemPrompt = `You are Genie, a data analysis assistant for a single CSV dataset.
Answer with exactly one JSON object and nothing else.

For explanations, calculations, counts, rankings or summaries reply:
{"type": "text", "answer": "<markdown answer>"}

For an explicit request to show, plot, chart or visualize reply:
{"type": "viz", "chartType": "bar|line|scatter|treemap|heatmap|gantt", "config": {...}}

Config bindings by chart type, using exact column names from the schema:
- bar, treemap: "category", "value"
- line, scatter: "x", "y"
- heatmap: "x", "y", "value"
- gantt: "task", "start", "end"
Optional literal display keys: "title", "x_label", "y_label", "unit", "min", "max".

Use only numbers that follow from the statistics and rows given. When unsure
whether to chart, answer with text.`

// numberStats and categoryStats summarize a column for the prompt.
type numberStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

type categoryStats struct {
	UniqueCount int      `json:"unique_count"`
	Values      []string `json:"values"`
}

// columnStats computes count/min/max/avg for number columns and up to ten
// distinct values for category columns.
func columnStats(s models.Schema, rows []models.Row) map[string]any {
	out := make(map[string]any)
	for _, col := range s.Columns() {
		switch col.Type {
		case models.ColumnNumber:
			st := numberStats{Min: math.Inf(1), Max: math.Inf(-1)}
			var sum float64
			for _, r := range rows {
				f, ok := models.ToFloat(r[col.Name])
				if !ok {
					continue
				}
				st.Count++
				sum += f
				st.Min = math.Min(st.Min, f)
				st.Max = math.Max(st.Max, f)
			}
			if st.Count == 0 {
				continue
			}
			st.Avg = math.Round(sum/float64(st.Count)*100) / 100
			out[col.Name] = st
		case models.ColumnCategory:
			seen := make(map[string]bool)
			var values []string
			for _, r := range rows {
				v := r[col.Name]
				if models.IsBlank(v) {
					continue
				}
				k := aggregate.Key(v)
				if seen[k] {
					continue
				}
				seen[k] = true
				if len(values) < statsMaxValues {
					values = append(values, k)
				}
			}
			out[col.Name] = categoryStats{UniqueCount: len(seen), Values: values}
		}
	}
	return out
}

// sampleLines renders the first n rows as "Row i: col=value, ..." in
// schema order.
func sampleLines(s models.Schema, rows []models.Row, n int) string {
	if n > len(rows) {
		n = len(rows)
	}
	names := s.Names()
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, name+"="+models.Stringify(rows[i][name]))
		}
		lines = append(lines, fmt.Sprintf("Row %d: %s", i+1, strings.Join(parts, ", ")))
	}
	return strings.Join(lines, "\n")
}

// FormatHistory renders the last n turns as "User: ..." / "Genie: ..." lines.
func FormatHistory(turns []models.Turn, n int) string {
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		who := "Genie"
		if t.IsUser {
			who = "User"
		}
		lines = append(lines, who+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

// SplitPrompt separates a client-built prompt of the form
// "<history>\n\nLatest: <question>" into its parts. A prompt without the
// marker is all question.
func SplitPrompt(prompt string) (history, question string) {
	i := strings.LastIndex(prompt, latestMarker)
	if i < 0 {
		return "", strings.TrimSpace(prompt)
	}
	return strings.TrimSpace(prompt[:i]), strings.TrimSpace(prompt[i+len(latestMarker):])
}

func buildUserPrompt(req Request) string {
	schemaJSON, _ := json.MarshalIndent(req.Schema, "", "  ")
	statsJSON, _ := json.MarshalIndent(columnStats(req.Schema, req.Rows), "", "  ")

	var b strings.Builder
	fmt.Fprintf(&b, "Total rows: %d\nTotal columns: %d\n\n", len(req.Rows), req.Schema.Len())
	fmt.Fprintf(&b, "Column schema:\n%s\n\n", schemaJSON)
	fmt.Fprintf(&b, "Statistics:\n%s\n\n", statsJSON)
	fmt.Fprintf(&b, "Sample rows (first %d):\n%s\n\n", promptSampleRows, sampleLines(req.Schema, req.Rows, promptSampleRows))
	if req.History != "" {
		fmt.Fprintf(&b, "Conversation so far:\n%s\n\n", req.History)
	}
	fmt.Fprintf(&b, "Question: %q", req.Question)
	return b.String()
}

func buildInsightPrompt(spec models.ChartSpec, rows []models.Row) string {
	specJSON, _ := json.Marshal(spec)
	if len(rows) > insightSampleRows {
		rows = rows[:insightSampleRows]
	}
	sampleJSON, _ := json.Marshal(rows)
	return fmt.Sprintf("Given this chart specification: %s\nAnd this data sample: %s\n\n"+
		"Write a brief insight (1-2 sentences) about what this visualization shows. "+
		"Focus on trends, patterns or key findings.", specJSON, sampleJSON)
}
