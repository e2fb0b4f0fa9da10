// Package chartconfig turns chart specifications into render-ready,
// ECharts-style configurations. Builders are pure: they filter rows that
// do not fit the chart and never fail.
package chartconfig

import (
	"fmt"
	"math"
	"time"

	"github.com/chartgenie/chartgenie/internal/schema"
	"github.com/chartgenie/chartgenie/pkg/models"
)

const msPerDay = 24 * 60 * 60 * 1000

// Builder maps chart specifications to render configurations.
type Builder struct {
	palette Palette
	format  Formatter
}

// NewBuilder creates a builder with an explicit palette and formatter.
func NewBuilder(p Palette, f Formatter) *Builder {
	if p.Len() == 0 {
		p = CoralReef()
	}
	if f.printer == nil {
		f = DefaultFormatter()
	}
	return &Builder{palette: p, format: f}
}

// Build renders spec over rows. When the spec carries aggregated data it
// takes precedence over rows.
func (b *Builder) Build(spec models.ChartSpec, rows []models.Row) RenderConfig {
	if spec.AggregatedData != nil {
		rows = spec.AggregatedData
	}
	var rc RenderConfig
	switch c := spec.Config.(type) {
	case models.BarConfig:
		rc = b.Bar(c, rows)
	case models.LineConfig:
		rc = b.Line(c, rows)
	case models.ScatterConfig:
		rc = b.Scatter(c, rows)
	case models.TreemapConfig:
		rc = b.Treemap(c, rows)
	case models.HeatmapConfig:
		rc = b.Heatmap(c, rows)
	case models.GanttConfig:
		rc = b.Gantt(c, rows)
	case models.MapConfig:
		rc = b.Map(c, rows)
	default:
		return RenderConfig{Series: []Series{}, Empty: true}
	}
	if rc.Title == nil && spec.Title != "" {
		rc.Title = title(spec.Title)
		if rc.Grid != nil {
			rc.Grid.Top = 60
		}
	}
	return rc
}

func title(text string) *Title {
	if text == "" {
		return nil
	}
	return &Title{Text: text, Left: "center", Top: 10}
}

func grid(d models.Display, right string) *Grid {
	g := &Grid{Left: "3%", Right: right, Bottom: "3%", Top: 40, ContainLabel: true}
	if d.Title != "" {
		g.Top = 60
	}
	return g
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// categorySums collapses rows onto unique category labels in first-seen
// order, summing the numeric value per label. Rows without a label or
// with a non-numeric value are dropped.
func categorySums(rows []models.Row, key, value string) ([]string, []float64) {
	index := make(map[string]int)
	var labels []string
	var sums []float64
	for _, r := range rows {
		if models.IsBlank(r[key]) {
			continue
		}
		v, ok := models.ToFloat(r[value])
		if !ok {
			continue
		}
		label := models.Stringify(r[key])
		i, seen := index[label]
		if !seen {
			i = len(labels)
			index[label] = i
			labels = append(labels, label)
			sums = append(sums, 0)
		}
		sums[i] += v
	}
	return labels, sums
}

// Bar renders one coloured bar per category.
func (b *Builder) Bar(c models.BarConfig, rows []models.Row) RenderConfig {
	labels, values := categorySums(rows, c.Category, c.Value)

	data := make([]Datum, len(values))
	for i, v := range values {
		data[i] = Datum{
			Name:      labels[i],
			Value:     v,
			Formatted: b.format.WithUnit(v, c.Unit),
			Color:     b.palette.Color(i),
		}
	}
	rotate := 0
	if len(labels) > 10 {
		rotate = 45
	}

	return RenderConfig{
		ChartType: models.ChartBar,
		Title:     title(c.Title),
		Tooltip:   Tooltip{Trigger: "axis", Formatter: "{b}<br/>{c}" + c.Unit},
		Grid:      grid(c.Display, "4%"),
		XAxis: &Axis{
			Type:      "category",
			Name:      orDefault(c.XLabel, c.Category),
			Data:      nonNil(labels),
			AxisLabel: &AxisLabel{Rotate: rotate},
		},
		YAxis: &Axis{
			Type:      "value",
			Name:      orDefault(c.YLabel, c.Value),
			Min:       c.Min,
			Max:       c.Max,
			AxisLabel: &AxisLabel{Formatter: "{value}" + c.Unit},
		},
		Series: []Series{{Name: c.Value, Type: "bar", Data: data}},
		Empty:  len(data) == 0,
	}
}

// Line renders a smoothed series over the x labels.
func (b *Builder) Line(c models.LineConfig, rows []models.Row) RenderConfig {
	labels, values := categorySums(rows, c.X, c.Y)
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = b.format.WithUnit(v, c.Unit)
	}
	boundaryGap := false

	return RenderConfig{
		ChartType: models.ChartLine,
		Title:     title(c.Title),
		Tooltip:   Tooltip{Trigger: "axis", Formatter: "{b}<br/>{c}" + c.Unit},
		Grid:      grid(c.Display, "4%"),
		XAxis: &Axis{
			Type:        "category",
			Name:        orDefault(c.XLabel, c.X),
			Data:        nonNil(labels),
			BoundaryGap: &boundaryGap,
		},
		YAxis: &Axis{
			Type:      "value",
			Name:      orDefault(c.YLabel, c.Y),
			Min:       c.Min,
			Max:       c.Max,
			AxisLabel: &AxisLabel{Formatter: "{value}" + c.Unit},
		},
		Series: []Series{{
			Name:   c.Y,
			Type:   "line",
			Data:   nonNilFloats(values),
			Smooth: true,
			Color:  b.palette.Color(2),
			Labels: formatted,
		}},
		Empty: len(values) == 0,
	}
}

// Scatter renders raw (x, y) pairs; both values must be numeric.
func (b *Builder) Scatter(c models.ScatterConfig, rows []models.Row) RenderConfig {
	points := []Point{}
	for _, r := range rows {
		x, okX := models.ToFloat(r[c.X])
		y, okY := models.ToFloat(r[c.Y])
		if okX && okY {
			points = append(points, Point{x, y})
		}
	}

	return RenderConfig{
		ChartType: models.ChartScatter,
		Title:     title(c.Title),
		Tooltip:   Tooltip{Trigger: "item", Formatter: c.X + ": {c0}<br/>" + c.Y + ": {c1}"},
		Grid:      grid(c.Display, "7%"),
		XAxis:     &Axis{Type: "value", Name: orDefault(c.XLabel, c.X)},
		YAxis:     &Axis{Type: "value", Name: orDefault(c.YLabel, c.Y), Min: c.Min, Max: c.Max},
		Series:    []Series{{Type: "scatter", Data: points, Color: b.palette.Color(4)}},
		Empty:     len(points) == 0,
	}
}

// Treemap renders one node per row, keyed by its category.
func (b *Builder) Treemap(c models.TreemapConfig, rows []models.Row) RenderConfig {
	nodes := []Datum{}
	for _, r := range rows {
		if models.IsBlank(r[c.Category]) {
			continue
		}
		v, ok := models.ToFloat(r[c.Value])
		if !ok {
			continue
		}
		nodes = append(nodes, Datum{
			Name:      models.Stringify(r[c.Category]),
			Value:     v,
			Formatted: b.format.WithUnit(v, c.Unit),
			Color:     b.palette.Color(len(nodes)),
		})
	}

	return RenderConfig{
		ChartType: models.ChartTreemap,
		Title:     title(c.Title),
		Color:     b.palette.Colors(),
		Tooltip:   Tooltip{Formatter: "{b}: {c}"},
		Series:    []Series{{Name: c.Value, Type: "treemap", Data: nodes}},
		Empty:     len(nodes) == 0,
	}
}

// Heatmap renders (xIndex, yIndex, value) cells over distinct x and y labels.
func (b *Builder) Heatmap(c models.HeatmapConfig, rows []models.Row) RenderConfig {
	xIndex := map[string]int{}
	yIndex := map[string]int{}
	xLabels, yLabels := []string{}, []string{}
	cells := []Cell{}
	minValue, maxValue := 0.0, 0.0

	for _, r := range rows {
		if models.IsBlank(r[c.X]) || models.IsBlank(r[c.Y]) {
			continue
		}
		v, ok := models.ToFloat(r[c.Value])
		if !ok {
			continue
		}
		x, y := models.Stringify(r[c.X]), models.Stringify(r[c.Y])
		xi, seen := xIndex[x]
		if !seen {
			xi = len(xLabels)
			xIndex[x] = xi
			xLabels = append(xLabels, x)
		}
		yi, seen := yIndex[y]
		if !seen {
			yi = len(yLabels)
			yIndex[y] = yi
			yLabels = append(yLabels, y)
		}
		cells = append(cells, Cell{float64(xi), float64(yi), v})
		if len(cells) == 1 || v > maxValue {
			maxValue = v
		}
		minValue = min(minValue, v)
	}

	return RenderConfig{
		ChartType: models.ChartHeatmap,
		Title:     title(c.Title),
		Tooltip:   Tooltip{Trigger: "item", Formatter: "{b}: {c}"},
		Grid:      grid(c.Display, "7%"),
		XAxis:     &Axis{Type: "category", Name: orDefault(c.XLabel, c.X), Data: xLabels},
		YAxis:     &Axis{Type: "category", Name: orDefault(c.YLabel, c.Y), Data: yLabels},
		VisualMap: &VisualMap{
			Min:        minValue,
			Max:        maxValue,
			Calculable: true,
			Orient:     "vertical",
			InRange:    InRange{Color: append([]string(nil), heatmapRamp...)},
		},
		Series: []Series{{Name: c.Value, Type: "heatmap", Data: cells}},
		Empty:  len(cells) == 0,
	}
}

// Gantt renders one bar per task row with parseable start and end dates.
func (b *Builder) Gantt(c models.GanttConfig, rows []models.Row) RenderConfig {
	tasks := []Task{}
	names := []string{}
	for _, r := range rows {
		if models.IsBlank(r[c.Task]) || models.IsBlank(r[c.Start]) || models.IsBlank(r[c.End]) {
			continue
		}
		start, okS := schema.ParseDate(models.Stringify(r[c.Start]))
		end, okE := schema.ParseDate(models.Stringify(r[c.End]))
		if !okS || !okE {
			continue
		}
		name := models.Stringify(r[c.Task])
		idx := len(tasks)
		tasks = append(tasks, Task{
			Index:        idx,
			Name:         name,
			Start:        start.UnixMilli(),
			End:          end.UnixMilli(),
			DurationDays: DurationDays(start, end),
			Color:        b.palette.Color(idx),
		})
		names = append(names, name)
	}

	return RenderConfig{
		ChartType: models.ChartGantt,
		Title:     title(c.Title),
		Tooltip:   Tooltip{Formatter: "{b}"},
		Grid:      &Grid{Left: "15%", Right: "10%", Top: grid(c.Display, "").Top, ContainLabel: true},
		XAxis:     &Axis{Type: "time", Name: c.XLabel},
		YAxis:     &Axis{Type: "category", Name: c.YLabel, Data: names},
		Series:    []Series{{Type: "custom", Data: tasks}},
		Empty:     len(tasks) == 0,
	}
}

// DurationDays is the whole number of days from start to end, rounded up.
func DurationDays(start, end time.Time) int {
	ms := float64(end.Sub(start).Milliseconds())
	return int(math.Ceil(ms / msPerDay))
}

// Map renders a choropleth of region values. Rows without a region
// are dropped.
func (b *Builder) Map(c models.MapConfig, rows []models.Row) RenderConfig {
	data := []Datum{}
	maxValue := 0.0
	for _, r := range rows {
		if models.IsBlank(r[c.Region]) {
			continue
		}
		v, ok := models.ToFloat(r[c.Value])
		if !ok {
			continue
		}
		data = append(data, Datum{
			Name:      models.Stringify(r[c.Region]),
			Value:     v,
			Formatted: b.format.WithUnit(v, c.Unit),
		})
		maxValue = math.Max(maxValue, v)
	}
	mapName := "world"
	if c.MapType == "" || c.MapType == "usa" {
		mapName = "USA"
	}

	return RenderConfig{
		ChartType: models.ChartMap,
		Title:     title(c.Title),
		Tooltip:   Tooltip{Trigger: "item", Formatter: "{b}: {c}"},
		VisualMap: &VisualMap{
			Min:        0,
			Max:        maxValue,
			Calculable: true,
			Text:       []string{"High", "Low"},
			InRange:    InRange{Color: append([]string(nil), geoRamp...)},
		},
		Series: []Series{{Name: c.Value, Type: "map", Map: mapName, Data: data}},
		Empty:  len(data) == 0,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFloats(s []float64) []float64 {
	if s == nil {
		return []float64{}
	}
	return s
}

// Describe is a short human label for a spec's bindings, e.g.
// "category=Region, value=Sales".
func Describe(cfg models.ChartConfig) string {
	switch c := cfg.(type) {
	case models.BarConfig:
		return fmt.Sprintf("category=%s, value=%s", c.Category, c.Value)
	case models.LineConfig:
		return fmt.Sprintf("x=%s, y=%s", c.X, c.Y)
	case models.ScatterConfig:
		return fmt.Sprintf("x=%s, y=%s", c.X, c.Y)
	case models.TreemapConfig:
		return fmt.Sprintf("category=%s, value=%s", c.Category, c.Value)
	case models.HeatmapConfig:
		return fmt.Sprintf("x=%s, y=%s, value=%s", c.X, c.Y, c.Value)
	case models.GanttConfig:
		return fmt.Sprintf("task=%s, start=%s, end=%s", c.Task, c.Start, c.End)
	case models.MapConfig:
		return fmt.Sprintf("region=%s, value=%s", c.Region, c.Value)
	}
	return ""
}
