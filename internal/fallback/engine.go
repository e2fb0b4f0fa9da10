// Package fallback is the deterministic rule engine that answers
// conversational questions without any external reasoning service.
// The same question over the same schema and rows always yields the
// same answer.
package fallback

import (
	"strings"

	"github.com/chartgenie/chartgenie/internal/chartconfig"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// Resolution is the engine's answer: either Answer text or a chart Config.
type Resolution struct {
	Type   models.ResultType
	Answer string
	Config models.ChartConfig
}

// Engine resolves questions against a dataset with keyword rules.
type Engine struct {
	format chartconfig.Formatter
}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{format: chartconfig.DefaultFormatter()}
}

// Resolve answers question over the schema and rows.
func (e *Engine) Resolve(s models.Schema, rows []models.Row, question string) Resolution {
	if Intent(question) == models.ResultText {
		return Resolution{Type: models.ResultText, Answer: e.answer(s, rows, question)}
	}
	if cfg := Chart(s, question); cfg != nil {
		return Resolution{Type: models.ResultViz, Config: cfg}
	}
	return Resolution{Type: models.ResultText, Answer: e.overview(s, rows)}
}

// Chart picks a chart for a visualization request. It returns nil when
// the schema has too few columns to chart anything.
func Chart(s models.Schema, question string) models.ChartConfig {
	q := strings.ToLower(question)
	nums := s.OfType(models.ColumnNumber)
	dates := s.OfType(models.ColumnDate, models.ColumnDateStart)
	cats := s.OfType(models.ColumnCategory)
	all := s.Names()

	if trendKeywords.MatchString(q) && len(dates) > 0 && len(nums) > 0 {
		return models.LineConfig{X: pick(q, dates), Y: pick(q, nums)}
	}
	if scatterKeywords.MatchString(q) && len(nums) >= 2 {
		x, y := pickPair(q, nums)
		return models.ScatterConfig{X: x, Y: y}
	}
	if treemapKeywords.MatchString(q) && len(cats) > 0 && len(nums) > 0 {
		return models.TreemapConfig{Category: pick(q, cats), Value: pick(q, nums)}
	}

	value := pick(q, nums)
	category := pick(q, cats)
	if category == "" {
		category = firstOther(all, value)
	}
	if value == "" {
		value = firstOther(all, category)
	}
	if category == "" || value == "" {
		return nil
	}
	return models.BarConfig{Category: category, Value: value}
}

func firstOther(cols []string, exclude string) string {
	for _, c := range cols {
		if c != exclude {
			return c
		}
	}
	return ""
}

// pickPair returns two distinct number columns, preferring those named
// in the question.
func pickPair(q string, nums []string) (string, string) {
	mentioned := findMentioned(q, nums)
	switch {
	case len(mentioned) >= 2:
		return mentioned[0], mentioned[1]
	case len(mentioned) == 1:
		for _, n := range nums {
			if n != mentioned[0] {
				return mentioned[0], n
			}
		}
	}
	return nums[0], nums[1]
}
