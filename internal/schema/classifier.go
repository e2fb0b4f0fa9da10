// Package schema infers the semantic type of dataset columns from their
// raw values. The same classifier backs the interactive preview, the
// persisted analysis job, and the CLI.
package schema

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// Thresholds are the tunable cut-offs used by the classifier.
type Thresholds struct {
	// NumericRatio is the fraction of values that must be strict numbers.
	NumericRatio float64 `mapstructure:"numeric_ratio" yaml:"numeric_ratio"`
	// DateRatio is the fraction of values that must be recognised dates.
	DateRatio float64 `mapstructure:"date_ratio" yaml:"date_ratio"`
	// GeoRatio is the fraction of values that must be US states.
	GeoRatio float64 `mapstructure:"geo_ratio" yaml:"geo_ratio"`
	// CategoryMaxDistinct bounds the distinct count of a category column.
	CategoryMaxDistinct int `mapstructure:"category_max_distinct" yaml:"category_max_distinct"`
	// CategoryMaxRatio bounds distinct/non-null for a category column.
	CategoryMaxRatio float64 `mapstructure:"category_max_ratio" yaml:"category_max_ratio"`
	// SampleLimit caps how many non-null values are inspected. 0 = all.
	SampleLimit int `mapstructure:"sample_limit" yaml:"sample_limit"`
}

// DefaultThresholds returns the stock classification cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NumericRatio:        0.8,
		DateRatio:           0.8,
		GeoRatio:            0.6,
		CategoryMaxDistinct: 20,
		CategoryMaxRatio:    0.5,
	}
}

var numericPattern = regexp.MustCompile(`^-?\d+\.?\d*$`)

// Classifier assigns a ColumnType to a column. It is stateless and safe
// for concurrent use.
type Classifier struct {
	t Thresholds
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(t Thresholds) *Classifier {
	return &Classifier{t: t}
}

// Default is a classifier using DefaultThresholds.
var Default = NewClassifier(DefaultThresholds())

// Classify returns the semantic type of a column given its name and raw
// values. Rules are checked in priority order and the first match wins.
func (c *Classifier) Classify(name string, values []any) models.ColumnType {
	sample := c.nonBlank(values)
	if len(sample) < 1 {
		return models.ColumnText
	}

	lower := strings.ToLower(name)
	if strings.Contains(lower, "start") && strings.Contains(lower, "date") {
		return models.ColumnDateStart
	}
	if strings.Contains(lower, "end") && strings.Contains(lower, "date") {
		return models.ColumnDateEnd
	}

	n := float64(len(sample))

	if float64(count(sample, isStrictNumber))/n > c.t.NumericRatio {
		return models.ColumnNumber
	}
	if float64(count(sample, isDate))/n > c.t.DateRatio {
		return models.ColumnDate
	}
	if float64(count(sample, IsUSState))/n > c.t.GeoRatio {
		return models.ColumnGeoState
	}

	distinct := make(map[string]struct{}, len(sample))
	for _, v := range sample {
		distinct[v] = struct{}{}
	}
	u := len(distinct)
	if u < c.t.CategoryMaxDistinct && float64(u) < c.t.CategoryMaxRatio*n {
		return models.ColumnCategory
	}

	if strings.Contains(lower, "lat") || strings.Contains(lower, "lon") || strings.Contains(lower, "coordinate") {
		return models.ColumnLatLon
	}
	return models.ColumnText
}

// Infer classifies every header column over rows, preserving header order.
func (c *Classifier) Infer(header []string, rows []models.Row) models.Schema {
	var s models.Schema
	for _, col := range header {
		s.Set(col, c.Classify(col, models.ColumnValues(rows, col)))
	}
	return s
}

// nonBlank stringifies non-null, non-blank values, honouring SampleLimit.
func (c *Classifier) nonBlank(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if models.IsBlank(v) {
			continue
		}
		out = append(out, models.Stringify(v))
		if c.t.SampleLimit > 0 && len(out) >= c.t.SampleLimit {
			break
		}
	}
	return out
}

func count(values []string, pred func(string) bool) int {
	n := 0
	for _, v := range values {
		if pred(v) {
			n++
		}
	}
	return n
}

func isStrictNumber(s string) bool {
	s = strings.TrimSpace(s)
	if !numericPattern.MatchString(s) {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isDate(s string) bool {
	if !LooksLikeDate(s) {
		return false
	}
	_, ok := ParseDate(s)
	return ok
}
