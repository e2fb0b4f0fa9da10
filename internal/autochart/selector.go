// Package autochart picks a small, prioritised set of chart
// specifications for a dataset without any user input.
package autochart

import (
	"fmt"
	"strings"

	"github.com/chartgenie/chartgenie/internal/aggregate"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// Options bound the selector's output and candidate cardinalities.
type Options struct {
	MaxCharts          int `mapstructure:"max_charts" yaml:"max_charts"`
	MaxLines           int `mapstructure:"max_lines" yaml:"max_lines"`
	BarMinDistinct     int `mapstructure:"bar_min_distinct" yaml:"bar_min_distinct"`
	BarMaxDistinct     int `mapstructure:"bar_max_distinct" yaml:"bar_max_distinct"`
	TreemapMinDistinct int `mapstructure:"treemap_min_distinct" yaml:"treemap_min_distinct"`
	TreemapMaxDistinct int `mapstructure:"treemap_max_distinct" yaml:"treemap_max_distinct"`
	HeatmapMaxDistinct int `mapstructure:"heatmap_max_distinct" yaml:"heatmap_max_distinct"`
}

// DefaultOptions returns the stock selector limits.
func DefaultOptions() Options {
	return Options{
		MaxCharts:          4,
		MaxLines:           2,
		BarMinDistinct:     2,
		BarMaxDistinct:     20,
		TreemapMinDistinct: 3,
		TreemapMaxDistinct: 50,
		HeatmapMaxDistinct: 20,
	}
}

// Selector produces chart specifications from a schema and rows.
type Selector struct {
	opts Options
}

// NewSelector creates a selector. Zero-valued options fall back to defaults.
func NewSelector(opts Options) *Selector {
	def := DefaultOptions()
	if opts.MaxCharts <= 0 {
		opts.MaxCharts = def.MaxCharts
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = def.MaxLines
	}
	if opts.BarMinDistinct <= 0 {
		opts.BarMinDistinct = def.BarMinDistinct
	}
	if opts.BarMaxDistinct <= 0 {
		opts.BarMaxDistinct = def.BarMaxDistinct
	}
	if opts.TreemapMinDistinct <= 0 {
		opts.TreemapMinDistinct = def.TreemapMinDistinct
	}
	if opts.TreemapMaxDistinct <= 0 {
		opts.TreemapMaxDistinct = def.TreemapMaxDistinct
	}
	if opts.HeatmapMaxDistinct <= 0 {
		opts.HeatmapMaxDistinct = def.HeatmapMaxDistinct
	}
	return &Selector{opts: opts}
}

// columns partitions the schema by type.
type columns struct {
	all        []string
	numbers    []string
	dates      []string
	categories []string
	texts      []string
	starts     []string
	ends       []string
}

func partition(s models.Schema) columns {
	return columns{
		all:        s.Names(),
		numbers:    s.OfType(models.ColumnNumber),
		dates:      s.OfType(models.ColumnDate, models.ColumnDateStart),
		categories: s.OfType(models.ColumnCategory),
		texts:      s.OfType(models.ColumnText),
		starts:     s.OfType(models.ColumnDateStart),
		ends:       s.OfType(models.ColumnDateEnd),
	}
}

// plan accumulates specs while enforcing the cap and uniqueness.
type plan struct {
	max   int
	specs []models.ChartSpec
	seen  map[string]bool
}

func (p *plan) full() bool { return len(p.specs) >= p.max }

func (p *plan) remaining() int { return p.max - len(p.specs) }

func (p *plan) has(cfg models.ChartConfig) bool { return p.seen[specKey(cfg)] }

func (p *plan) add(spec models.ChartSpec) bool {
	if p.full() {
		return false
	}
	key := specKey(spec.Config)
	if p.seen[key] {
		return false
	}
	p.seen[key] = true
	p.specs = append(p.specs, spec)
	return true
}

func specKey(cfg models.ChartConfig) string {
	return string(cfg.ChartType()) + "\x00" + strings.Join(cfg.Columns(), "\x00")
}

// Select returns at most MaxCharts specifications ordered by priority.
// Map charts are never selected.
func (s *Selector) Select(schema models.Schema, rows []models.Row) []models.ChartSpec {
	if len(rows) == 0 || schema.Len() == 0 {
		return nil
	}

	cols := partition(schema)
	p := &plan{max: s.opts.MaxCharts, seen: make(map[string]bool)}
	distinct := distinctCounter(rows)

	var barCategory string

	// Tier 1: bar of the first suitable category against the first number.
	if len(cols.numbers) > 0 {
		for _, cat := range cols.categories {
			if d := distinct(cat); d >= s.opts.BarMinDistinct && d <= s.opts.BarMaxDistinct {
				val := cols.numbers[0]
				p.add(barSpec(cat, val, rows, fmt.Sprintf("Comparing aggregated %s across %s", val, cat)))
				barCategory = cat
				break
			}
		}
	}

	// Tier 2: line charts over the first date column.
	if len(cols.dates) > 0 && len(cols.numbers) > 0 {
		date := cols.dates[0]
		n := min(s.opts.MaxLines, len(cols.numbers), p.remaining())
		for i := 0; i < n; i++ {
			val := cols.numbers[i]
			p.add(models.ChartSpec{
				Config:         models.LineConfig{X: date, Y: val},
				Title:          val + " Trend Over Time",
				Insight:        fmt.Sprintf("Tracking aggregated %s changes over %s", val, date),
				AggregatedData: aggregate.Rows(rows, date, val),
			})
		}
	}

	// Tier 3: scatter of the first two numbers.
	if len(cols.numbers) >= 2 && !p.full() {
		p.add(scatterSpec(cols.numbers[0], cols.numbers[1], cols.numbers[0]+" vs "+cols.numbers[1]))
	}

	// Tier 4: treemap on a category not already used by the tier-1 bar.
	if len(cols.numbers) > 0 && !p.full() {
		for _, cat := range cols.categories {
			if cat == barCategory {
				continue
			}
			if d := distinct(cat); d >= s.opts.TreemapMinDistinct && d <= s.opts.TreemapMaxDistinct {
				val := cols.numbers[0]
				p.add(models.ChartSpec{
					Config:  models.TreemapConfig{Category: cat, Value: val},
					Title:   fmt.Sprintf("%s Distribution by %s", val, cat),
					Insight: fmt.Sprintf("Hierarchical view of %s across %s", val, cat),
				})
				break
			}
		}
	}

	// Tier 5: extra bars for the remaining number columns.
	if len(cols.numbers) >= 2 {
		for i := 1; i < len(cols.numbers) && !p.full(); i++ {
			val := cols.numbers[i]
			for _, cat := range cols.categories {
				d := distinct(cat)
				if d < s.opts.BarMinDistinct || d > s.opts.BarMaxDistinct {
					continue
				}
				if p.has(models.BarConfig{Category: cat, Value: val}) {
					continue
				}
				p.add(barSpec(cat, val, rows, fmt.Sprintf("Comparing aggregated %s across different %s values", val, cat)))
				break
			}
		}
	}

	// Tier 6: heatmap.
	if len(cols.numbers) >= 3 && len(cols.categories) > 0 && !p.full() {
		cat := cols.categories[0]
		if distinct(cat) <= s.opts.HeatmapMaxDistinct {
			val := cols.numbers[1]
			p.add(models.ChartSpec{
				Config:  models.HeatmapConfig{X: cat, Y: cols.numbers[0], Value: val},
				Title:   val + " Heat Map",
				Insight: fmt.Sprintf("Intensity visualization of %s across %s", val, cat),
			})
		}
	}

	// Tier 7: gantt.
	if len(cols.starts) > 0 && len(cols.ends) > 0 && !p.full() {
		task := cols.all[0]
		if len(cols.texts) > 0 {
			task = cols.texts[0]
		} else if len(cols.categories) > 0 {
			task = cols.categories[0]
		}
		start, end := cols.starts[0], cols.ends[0]
		p.add(models.ChartSpec{
			Config:  models.GanttConfig{Task: task, Start: start, End: end},
			Title:   "Project Timeline",
			Insight: fmt.Sprintf("Timeline view of tasks from %s to %s", start, end),
		})
	}

	if len(p.specs) == 0 && len(cols.numbers) > 0 {
		first, val := cols.all[0], cols.numbers[0]
		p.add(models.ChartSpec{
			Config:         models.BarConfig{Category: first, Value: val},
			Title:          val + " Overview",
			Insight:        fmt.Sprintf("Overview of %s across %s", val, first),
			AggregatedData: aggregate.Rows(rows, first, val),
		})
		if len(cols.numbers) >= 2 {
			p.add(scatterSpec(cols.numbers[0], cols.numbers[1], "Data Correlation"))
		}
	}

	return p.specs
}

func barSpec(cat, val string, rows []models.Row, insight string) models.ChartSpec {
	return models.ChartSpec{
		Config:         models.BarConfig{Category: cat, Value: val},
		Title:          fmt.Sprintf("%s by %s", val, cat),
		Insight:        insight,
		AggregatedData: aggregate.Rows(rows, cat, val),
	}
}

func scatterSpec(x, y, title string) models.ChartSpec {
	return models.ChartSpec{
		Config:  models.ScatterConfig{X: x, Y: y},
		Title:   title,
		Insight: fmt.Sprintf("Exploring relationship between %s and %s", x, y),
	}
}

// distinctCounter memoises per-column distinct counts.
func distinctCounter(rows []models.Row) func(string) int {
	cache := make(map[string]int)
	return func(col string) int {
		if d, ok := cache[col]; ok {
			return d
		}
		d := aggregate.Distinct(rows, col)
		cache[col] = d
		return d
	}
}
