package fallback

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/chartgenie/chartgenie/internal/aggregate"
	"github.com/chartgenie/chartgenie/pkg/models"
)

const (
	defaultTopN   = 5
	maxListValues = 20
)

var (
	columnsQuery  = regexp.MustCompile(`\b(columns?|fields?|attributes?|variables?)\b`)
	countQuery    = regexp.MustCompile(`\b(how many|count|number of)\b`)
	averageQuery  = regexp.MustCompile(`\b(average|mean|avg)\b`)
	sumQuery      = regexp.MustCompile(`\b(sum|total|add up)\b`)
	topQuery      = regexp.MustCompile(`\b(max|maximum|highest|largest|top|most|biggest)\b`)
	bottomQuery   = regexp.MustCompile(`\b(min|minimum|lowest|smallest|bottom|least|fewest)\b`)
	uniqueQuery   = regexp.MustCompile(`\b(unique|distinct|different)\b`)
	summaryQuery  = regexp.MustCompile(`\b(summary|summarize|overview|about|describe)\b`)
	rankSizeQuery = regexp.MustCompile(`\b(?:top|bottom)\s+(\d+)\b`)
)

// answer runs the ordered text templates against the question.
func (e *Engine) answer(s models.Schema, rows []models.Row, question string) string {
	q := strings.ToLower(question)
	nums := s.OfType(models.ColumnNumber)

	switch {
	case columnsQuery.MatchString(q):
		return e.columns(s)
	case countQuery.MatchString(q):
		if col := mentionedNonNumeric(s, q); col != "" {
			return e.uniqueValues(rows, col)
		}
		return fmt.Sprintf("The dataset contains %s rows.", e.format.Number(float64(len(rows))))
	case averageQuery.MatchString(q):
		if len(nums) == 0 {
			return "There are no numeric columns to average."
		}
		return e.average(rows, pick(q, nums))
	case sumQuery.MatchString(q):
		if len(nums) == 0 {
			return "There are no numeric columns to total."
		}
		col := pick(q, nums)
		st := stats(rows, col)
		return fmt.Sprintf("The total %s is %s across %d values.", col, e.format.Number(st.sum), st.count)
	case topQuery.MatchString(q):
		if len(nums) == 0 {
			return "There are no numeric columns to rank."
		}
		return e.ranked(s, rows, pick(q, nums), rankSize(q), true)
	case bottomQuery.MatchString(q):
		if len(nums) == 0 {
			return "There are no numeric columns to rank."
		}
		return e.ranked(s, rows, pick(q, nums), rankSize(q), false)
	case uniqueQuery.MatchString(q):
		col := mentionedNonNumeric(s, q)
		if col == "" {
			col = pick(q, s.OfType(models.ColumnCategory))
		}
		if col == "" {
			col = pick(q, s.Names())
		}
		if col == "" {
			return e.overview(s, rows)
		}
		return e.uniqueValues(rows, col)
	case summaryQuery.MatchString(q):
		return e.overview(s, rows)
	}
	return e.overview(s, rows)
}

func (e *Engine) columns(s models.Schema) string {
	if s.Len() == 0 {
		return "The dataset has no columns."
	}
	parts := make([]string, 0, s.Len())
	for _, c := range s.Columns() {
		parts = append(parts, fmt.Sprintf("%s (%s)", c.Name, c.Type))
	}
	return fmt.Sprintf("The dataset has %d columns: %s.", s.Len(), strings.Join(parts, ", "))
}

func (e *Engine) average(rows []models.Row, col string) string {
	st := stats(rows, col)
	if st.count == 0 {
		return fmt.Sprintf("%s has no numeric values.", col)
	}
	return fmt.Sprintf("The average %s is %.2f (min %s, max %s, sum %s, across %d values).",
		col, st.sum/float64(st.count), e.format.Number(st.min), e.format.Number(st.max),
		e.format.Number(st.sum), st.count)
}

func (e *Engine) uniqueValues(rows []models.Row, col string) string {
	var values []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if models.IsBlank(r[col]) {
			continue
		}
		v := models.Stringify(r[col])
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return fmt.Sprintf("%s has no values.", col)
	}
	shown := values
	suffix := ""
	if len(shown) > maxListValues {
		shown = shown[:maxListValues]
		suffix = fmt.Sprintf(" and %d more", len(values)-maxListValues)
	}
	return fmt.Sprintf("%s has %d unique values: %s%s.", col, len(values), strings.Join(shown, ", "), suffix)
}

func (e *Engine) ranked(s models.Schema, rows []models.Row, col string, n int, highest bool) string {
	label := labelColumn(s, col)
	type entry struct {
		name  string
		value float64
	}
	var entries []entry
	for i, r := range rows {
		v, ok := models.ToFloat(r[col])
		if !ok {
			continue
		}
		name := fmt.Sprintf("Row %d", i+1)
		if label != "" && !models.IsBlank(r[label]) {
			name = models.Stringify(r[label])
		}
		entries = append(entries, entry{name: name, value: v})
	}
	if len(entries) == 0 {
		return fmt.Sprintf("%s has no numeric values.", col)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if highest {
			return entries[i].value > entries[j].value
		}
		return entries[i].value < entries[j].value
	})
	if n > len(entries) {
		n = len(entries)
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%s (%s)", entries[i].name, e.format.Number(entries[i].value))
	}
	word := "Highest"
	if !highest {
		word = "Lowest"
	}
	return fmt.Sprintf("%s %s: %s.", word, col, strings.Join(parts, ", "))
}

// overview is the generic schema summary used when no template matches.
func (e *Engine) overview(s models.Schema, rows []models.Row) string {
	if s.Len() == 0 {
		return "The dataset is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "The dataset has %s rows and %d columns", e.format.Number(float64(len(rows))), s.Len())

	byType := map[models.ColumnType][]string{}
	var order []models.ColumnType
	for _, c := range s.Columns() {
		if _, ok := byType[c.Type]; !ok {
			order = append(order, c.Type)
		}
		byType[c.Type] = append(byType[c.Type], c.Name)
	}
	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%s: %s", t, strings.Join(byType[t], ", ")))
	}
	fmt.Fprintf(&b, " (%s).", strings.Join(parts, "; "))

	for _, col := range s.OfType(models.ColumnNumber) {
		st := stats(rows, col)
		if st.count == 0 {
			continue
		}
		fmt.Fprintf(&b, " %s averages %.2f.", col, st.sum/float64(st.count))
	}
	for _, col := range s.OfType(models.ColumnCategory) {
		fmt.Fprintf(&b, " %s has %d unique values.", col, aggregate.Distinct(rows, col))
	}
	return b.String()
}

type columnStats struct {
	count    int
	sum      float64
	min, max float64
}

func stats(rows []models.Row, col string) columnStats {
	var st columnStats
	for _, r := range rows {
		v, ok := models.ToFloat(r[col])
		if !ok {
			continue
		}
		if st.count == 0 || v < st.min {
			st.min = v
		}
		if st.count == 0 || v > st.max {
			st.max = v
		}
		st.sum += v
		st.count++
	}
	return st
}

func rankSize(q string) int {
	if m := rankSizeQuery.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return defaultTopN
}

// labelColumn picks the column used to name ranked rows.
func labelColumn(s models.Schema, exclude string) string {
	for _, types := range [][]models.ColumnType{
		{models.ColumnCategory},
		{models.ColumnText, models.ColumnGeoState},
	} {
		for _, c := range s.OfType(types...) {
			if c != exclude {
				return c
			}
		}
	}
	return ""
}

// mentionedNonNumeric returns the first non-number column named in q.
func mentionedNonNumeric(s models.Schema, q string) string {
	var cols []string
	for _, c := range s.Columns() {
		if c.Type != models.ColumnNumber {
			cols = append(cols, c.Name)
		}
	}
	if m := findMentioned(q, cols); len(m) > 0 {
		return m[0]
	}
	return ""
}
