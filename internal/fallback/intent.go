package fallback

import (
	"regexp"
	"strings"

	"github.com/chartgenie/chartgenie/pkg/models"
)

var (
	textKeywords = regexp.MustCompile(`\b(what|why|how|describe|explain|tell me|list|which|summary|analyze|calculate|find|identify|who|when|where)\b`)
	vizKeywords  = regexp.MustCompile(`\b(show|display|visualize|chart|graph|plot|create|generate|draw)\b`)

	trendKeywords   = regexp.MustCompile(`\b(trend|over time|time series|growth|change|timeline|history|progression)\b`)
	scatterKeywords = regexp.MustCompile(`\b(scatter|correlation|correlate|relationship|vs|versus)\b|\bcompare\b.*\band\b`)
	treemapKeywords = regexp.MustCompile(`\b(treemap|hierarchy|composition|breakdown|proportion|market share)\b`)
)

// Intent classifies a question as a text or a visualization request.
// Analytic keywords select text even when visualization keywords are
// also present; everything else is a visualization request.
func Intent(question string) models.ResultType {
	text, viz := Signals(question)
	switch {
	case text && viz:
		return models.ResultText
	case text:
		return models.ResultText
	default:
		return models.ResultViz
	}
}

// Signals reports which keyword sets the question matches.
func Signals(question string) (text, viz bool) {
	q := strings.ToLower(question)
	return textKeywords.MatchString(q), vizKeywords.MatchString(q)
}
