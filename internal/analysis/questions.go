package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/pkg/contracts"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// SuggestedCount is how many questions a dataset gets.
const SuggestedCount = 4

const overviewQuestion = "show me an overview of the data"

var fence = regexp.MustCompile("(?i)```(?:json)?\\s*")

// TemplateQuestions builds questions from column types alone: a bar, a
// trend, a comparison and a breakdown, padded with an overview.
func TemplateQuestions(s models.Schema) []string {
	nums := s.OfType(models.ColumnNumber)
	cats := s.OfType(models.ColumnCategory)
	dates := s.OfType(models.ColumnDate)

	var qs []string
	if len(cats) > 0 && len(nums) > 0 {
		qs = append(qs, fmt.Sprintf("show %s by %s", nums[0], cats[0]))
	}
	if len(dates) > 0 && len(nums) > 0 {
		qs = append(qs, fmt.Sprintf("%s trend over time", nums[0]))
	}
	if len(nums) >= 2 {
		qs = append(qs, fmt.Sprintf("compare %s and %s", nums[0], nums[1]))
	}
	if len(cats) > 0 && len(nums) > 0 {
		qs = append(qs, fmt.Sprintf("%s breakdown by %s", nums[0], cats[0]))
	}
	for len(qs) < SuggestedCount {
		qs = append(qs, overviewQuestion)
	}
	return qs[:SuggestedCount]
}

func questionsPrompt(s models.Schema, rows []models.Row) string {
	var b strings.Builder
	b.WriteString("You are a data analyst. Given this dataset schema and sample data, generate 4 insightful " +
		"visualization questions that users would want to ask.\n\nDataset schema:\n")
	for _, c := range s.Columns() {
		fmt.Fprintf(&b, "- %s (%s)\n", c.Name, c.Type)
	}
	b.WriteString("\nSample data:\n")
	for i := 0; i < len(rows) && i < 3; i++ {
		parts := make([]string, 0, s.Len())
		for _, name := range s.Names() {
			parts = append(parts, name+": "+models.Stringify(rows[i][name]))
		}
		b.WriteString(strings.Join(parts, ", ") + "\n")
	}
	b.WriteString("\nThe questions must use actual column names, suggest different chart types " +
		"(bar, line, scatter, treemap) and read as natural language, e.g. \"show sales by region\".\n" +
		"Return ONLY a JSON array of 4 strings.")
	return b.String()
}

// parseQuestions reads a JSON array of strings, tolerating code fences.
func parseQuestions(content string) ([]string, error) {
	cleaned := strings.TrimSpace(fence.ReplaceAllString(content, ""))
	if i, j := strings.Index(cleaned, "["), strings.LastIndex(cleaned, "]"); i >= 0 && j > i {
		cleaned = cleaned[i : j+1]
	}
	var raw []string
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	var qs []string
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			qs = append(qs, q)
		}
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("no questions in reply")
	}
	if len(qs) > SuggestedCount {
		qs = qs[:SuggestedCount]
	}
	return qs, nil
}

// SuggestQuestions returns SuggestedCount questions for a dataset. It
// asks reasoner when one is given and falls back to the templates on any
// failure. Short replies are topped up from the templates.
func SuggestQuestions(ctx context.Context, reasoner contracts.Reasoner, timeout time.Duration, s models.Schema, rows []models.Row) []string {
	if reasoner == nil {
		return TemplateQuestions(s)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	temp := 0.7
	resp, err := reasoner.Complete(callCtx, models.CompletionRequest{
		Messages:    []models.ChatMessage{{Role: "user", Content: questionsPrompt(s, rows)}},
		Temperature: &temp,
		MaxTokens:   512,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Suggested questions call failed, using templates")
		return TemplateQuestions(s)
	}
	qs, err := parseQuestions(resp.Content)
	if err != nil {
		log.Warn().Err(err).Msg("Suggested questions reply unusable, using templates")
		return TemplateQuestions(s)
	}
	for _, t := range TemplateQuestions(s) {
		if len(qs) >= SuggestedCount {
			break
		}
		if !contains(qs, t) {
			qs = append(qs, t)
		}
	}
	for len(qs) < SuggestedCount {
		qs = append(qs, overviewQuestion)
	}
	return qs
}

func (a *Analyzer) suggest(ctx context.Context, s models.Schema, rows []models.Row) []string {
	return SuggestQuestions(ctx, a.reasoner, a.opts.QuestionTimeout, s, rows)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
