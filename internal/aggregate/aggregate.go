// Package aggregate groups dataset rows by a key column and sums a
// numeric column per group.
package aggregate

import (
	"github.com/chartgenie/chartgenie/pkg/models"
)

// Unknown is the key used for rows whose key column is null or blank.
const Unknown = "Unknown"

// Group is one aggregated bucket.
type Group struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// Row renders the group keyed by the original column names.
func (g Group) Row(keyColumn, valueColumn string) models.Row {
	return models.Row{keyColumn: g.Key, valueColumn: g.Value}
}

// Sum groups rows by keyColumn and sums valueColumn. Non-numeric or
// missing values count as zero. Groups are returned in the order their
// key first appears.
func Sum(rows []models.Row, keyColumn, valueColumn string) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range rows {
		key := Key(r[keyColumn])
		v, _ := models.ToFloat(r[valueColumn])
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Value += v
	}
	return groups
}

// Rows is Sum rendered as rows of {keyColumn: key, valueColumn: sum}.
func Rows(rows []models.Row, keyColumn, valueColumn string) []models.Row {
	groups := Sum(rows, keyColumn, valueColumn)
	out := make([]models.Row, len(groups))
	for i, g := range groups {
		out[i] = g.Row(keyColumn, valueColumn)
	}
	return out
}

// Key returns the grouping key for a raw value.
func Key(v any) string {
	if models.IsBlank(v) {
		return Unknown
	}
	return models.Stringify(v)
}

// Distinct counts the distinct non-blank values of a column.
func Distinct(rows []models.Row, column string) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		v := r[column]
		if models.IsBlank(v) {
			continue
		}
		seen[models.Stringify(v)] = struct{}{}
	}
	return len(seen)
}

// Total sums a column across all rows, counting non-numeric values as zero.
func Total(rows []models.Row, column string) float64 {
	var sum float64
	for _, r := range rows {
		v, _ := models.ToFloat(r[column])
		sum += v
	}
	return sum
}
