package models

import (
	"encoding/json"
	"fmt"
)

// ── Chart Types ──────────────────────────────────────────────

// ChartType tags a chart specification variant.
type ChartType string

const (
	ChartBar     ChartType = "bar"
	ChartLine    ChartType = "line"
	ChartScatter ChartType = "scatter"
	ChartTreemap ChartType = "treemap"
	ChartHeatmap ChartType = "heatmap"
	ChartGantt   ChartType = "gantt"
	ChartMap     ChartType = "map"
)

// ChartTypes lists every supported chart type.
var ChartTypes = []ChartType{ChartBar, ChartLine, ChartScatter, ChartTreemap, ChartHeatmap, ChartGantt, ChartMap}

// Valid reports whether t is a known chart type.
func (t ChartType) Valid() bool {
	for _, c := range ChartTypes {
		if c == t {
			return true
		}
	}
	return false
}

// Display holds presentation options shared by every chart variant.
// Literal values only, never column references.
type Display struct {
	Title  string   `json:"title,omitempty"`
	XLabel string   `json:"x_label,omitempty"`
	YLabel string   `json:"y_label,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
}

// ChartConfig is the closed set of per-type column bindings.
type ChartConfig interface {
	ChartType() ChartType
	// Columns returns the bound column names in role order.
	Columns() []string
	Options() Display
	sealed()
}

type BarConfig struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Display
}

type LineConfig struct {
	X string `json:"x"`
	Y string `json:"y"`
	Display
}

type ScatterConfig struct {
	X string `json:"x"`
	Y string `json:"y"`
	Display
}

type TreemapConfig struct {
	Category string `json:"category"`
	Value    string `json:"value"`
	Display
}

type HeatmapConfig struct {
	X     string `json:"x"`
	Y     string `json:"y"`
	Value string `json:"value"`
	Display
}

type GanttConfig struct {
	Task  string `json:"task"`
	Start string `json:"start"`
	End   string `json:"end"`
	Display
}

// MapConfig binds a region column and a value column. MapType is a
// literal naming the geography ("usa" by default).
type MapConfig struct {
	Region  string `json:"region"`
	Value   string `json:"value"`
	MapType string `json:"map_type,omitempty"`
	Display
}

func (BarConfig) ChartType() ChartType     { return ChartBar }
func (LineConfig) ChartType() ChartType    { return ChartLine }
func (ScatterConfig) ChartType() ChartType { return ChartScatter }
func (TreemapConfig) ChartType() ChartType { return ChartTreemap }
func (HeatmapConfig) ChartType() ChartType { return ChartHeatmap }
func (GanttConfig) ChartType() ChartType   { return ChartGantt }
func (MapConfig) ChartType() ChartType     { return ChartMap }

func (c BarConfig) Columns() []string     { return []string{c.Category, c.Value} }
func (c LineConfig) Columns() []string    { return []string{c.X, c.Y} }
func (c ScatterConfig) Columns() []string { return []string{c.X, c.Y} }
func (c TreemapConfig) Columns() []string { return []string{c.Category, c.Value} }
func (c HeatmapConfig) Columns() []string { return []string{c.X, c.Y, c.Value} }
func (c GanttConfig) Columns() []string   { return []string{c.Task, c.Start, c.End} }
func (c MapConfig) Columns() []string     { return []string{c.Region, c.Value} }

func (c BarConfig) Options() Display     { return c.Display }
func (c LineConfig) Options() Display    { return c.Display }
func (c ScatterConfig) Options() Display { return c.Display }
func (c TreemapConfig) Options() Display { return c.Display }
func (c HeatmapConfig) Options() Display { return c.Display }
func (c GanttConfig) Options() Display   { return c.Display }
func (c MapConfig) Options() Display     { return c.Display }

func (BarConfig) sealed()     {}
func (LineConfig) sealed()    {}
func (ScatterConfig) sealed() {}
func (TreemapConfig) sealed() {}
func (HeatmapConfig) sealed() {}
func (GanttConfig) sealed()   {}
func (MapConfig) sealed()     {}

// DecodeChartConfig decodes raw JSON into the variant for t and checks
// that every column binding is present.
func DecodeChartConfig(t ChartType, raw json.RawMessage) (ChartConfig, error) {
	var (
		cfg ChartConfig
		err error
	)
	switch t {
	case ChartBar:
		var c BarConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChartLine:
		var c LineConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChartScatter:
		var c ScatterConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChartTreemap:
		var c TreemapConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChartHeatmap:
		var c HeatmapConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChartGantt:
		var c GanttConfig
		err = json.Unmarshal(raw, &c)
		cfg = c
	case ChartMap:
		var c MapConfig
		err = json.Unmarshal(raw, &c)
		if c.MapType == "" {
			c.MapType = "usa"
		}
		cfg = c
	default:
		return nil, fmt.Errorf("unknown chart type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s config: %w", t, err)
	}
	for _, col := range cfg.Columns() {
		if col == "" {
			return nil, fmt.Errorf("%s config is missing a column binding", t)
		}
	}
	return cfg, nil
}

// UnknownColumns returns the bindings of cfg that are absent from s.
func UnknownColumns(cfg ChartConfig, s Schema) []string {
	var missing []string
	for _, col := range cfg.Columns() {
		if !s.Has(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// ── Chart Specification ──────────────────────────────────────

// ChartSpec fully determines a renderable chart. Built fresh per
// dashboard render or conversation turn and never mutated afterwards.
type ChartSpec struct {
	Config         ChartConfig
	Title          string
	Insight        string
	AggregatedData []Row
}

// Type returns the chart type carried by the config.
func (s ChartSpec) Type() ChartType {
	if s.Config == nil {
		return ""
	}
	return s.Config.ChartType()
}

type chartSpecJSON struct {
	ChartType      ChartType       `json:"chart_type"`
	Config         json.RawMessage `json:"config"`
	Title          string          `json:"title,omitempty"`
	Insight        string          `json:"insight,omitempty"`
	AggregatedData []Row           `json:"aggregated_data,omitempty"`
}

func (s ChartSpec) MarshalJSON() ([]byte, error) {
	cfg, err := json.Marshal(s.Config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(chartSpecJSON{
		ChartType:      s.Type(),
		Config:         cfg,
		Title:          s.Title,
		Insight:        s.Insight,
		AggregatedData: s.AggregatedData,
	})
}

func (s *ChartSpec) UnmarshalJSON(data []byte) error {
	var raw chartSpecJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := DecodeChartConfig(raw.ChartType, raw.Config)
	if err != nil {
		return err
	}
	*s = ChartSpec{
		Config:         cfg,
		Title:          raw.Title,
		Insight:        raw.Insight,
		AggregatedData: raw.AggregatedData,
	}
	return nil
}
