package chartconfig

import "github.com/chartgenie/chartgenie/pkg/models"

// RenderConfig is a fully specified, ECharts-style option object.
// Empty is set when no rows survived filtering; the rest of the
// structure is still valid and renders as a "no data" state.
type RenderConfig struct {
	ChartType models.ChartType `json:"chartType"`
	Title     *Title           `json:"title,omitempty"`
	Color     []string         `json:"color,omitempty"`
	Tooltip   Tooltip          `json:"tooltip"`
	Grid      *Grid            `json:"grid,omitempty"`
	XAxis     *Axis            `json:"xAxis,omitempty"`
	YAxis     *Axis            `json:"yAxis,omitempty"`
	VisualMap *VisualMap       `json:"visualMap,omitempty"`
	Series    []Series         `json:"series"`
	Empty     bool             `json:"empty"`
}

type Title struct {
	Text string `json:"text"`
	Left string `json:"left"`
	Top  int    `json:"top"`
}

type Tooltip struct {
	Trigger   string `json:"trigger,omitempty"`
	Formatter string `json:"formatter,omitempty"`
}

type Grid struct {
	Left         string `json:"left"`
	Right        string `json:"right"`
	Bottom       string `json:"bottom,omitempty"`
	Top          int    `json:"top"`
	ContainLabel bool   `json:"containLabel"`
}

type Axis struct {
	Type        string     `json:"type"`
	Name        string     `json:"name,omitempty"`
	Data        []string   `json:"data,omitempty"`
	Min         *float64   `json:"min,omitempty"`
	Max         *float64   `json:"max,omitempty"`
	BoundaryGap *bool      `json:"boundaryGap,omitempty"`
	AxisLabel   *AxisLabel `json:"axisLabel,omitempty"`
}

type AxisLabel struct {
	Rotate    int    `json:"rotate,omitempty"`
	Formatter string `json:"formatter,omitempty"`
}

type VisualMap struct {
	Min        float64  `json:"min"`
	Max        float64  `json:"max"`
	Calculable bool     `json:"calculable"`
	Orient     string   `json:"orient,omitempty"`
	Text       []string `json:"text,omitempty"`
	InRange    InRange  `json:"inRange"`
}

type InRange struct {
	Color []string `json:"color"`
}

// Series is one data series. Data holds a type-specific slice:
// []Datum, []float64, []Point, []Cell, or []Task.
type Series struct {
	Name   string   `json:"name,omitempty"`
	Type   string   `json:"type"`
	Data   any      `json:"data"`
	Smooth bool     `json:"smooth,omitempty"`
	Color  string   `json:"color,omitempty"`
	Map    string   `json:"map,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// Datum is a named value with optional per-item colour.
type Datum struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
	Color     string  `json:"color,omitempty"`
}

// Point is an (x, y) scatter pair.
type Point [2]float64

// Cell is an (xIndex, yIndex, value) heatmap triple.
type Cell [3]float64

// Task is one gantt bar. Start and End are unix milliseconds.
type Task struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Start        int64  `json:"start"`
	End          int64  `json:"end"`
	DurationDays int    `json:"duration_days"`
	Color        string `json:"color"`
}
