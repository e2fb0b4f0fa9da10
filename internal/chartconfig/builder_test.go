package chartconfig_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/chartconfig"
	"github.com/chartgenie/chartgenie/pkg/models"
)

func newBuilder() *chartconfig.Builder {
	return chartconfig.NewBuilder(chartconfig.CoralReef(), chartconfig.DefaultFormatter())
}

func TestBar_FiltersAndColours(t *testing.T) {
	rows := []models.Row{
		{"Region": "East", "Sales": "10"},
		{"Region": "West", "Sales": "abc"},
		{"Region": "North", "Sales": 2500.0},
		{"Region": nil, "Sales": "3"},
		{"Region": "East", "Sales": "5"},
	}
	rc := newBuilder().Bar(models.BarConfig{Category: "Region", Value: "Sales", Display: models.Display{Unit: "$"}}, rows)

	assert.False(t, rc.Empty)
	assert.Equal(t, []string{"East", "North"}, rc.XAxis.Data)
	data := rc.Series[0].Data.([]chartconfig.Datum)
	require.Len(t, data, 2)
	assert.Equal(t, 15.0, data[0].Value)
	assert.Equal(t, "#1ABC9C", data[0].Color)
	assert.Equal(t, "#F1948A", data[1].Color)
	assert.Equal(t, "2,500$", data[1].Formatted)
}

func TestBuilders_EmptyInput(t *testing.T) {
	b := newBuilder()
	specs := []models.ChartSpec{
		{Config: models.BarConfig{Category: "a", Value: "b"}},
		{Config: models.LineConfig{X: "a", Y: "b"}},
		{Config: models.ScatterConfig{X: "a", Y: "b"}},
		{Config: models.TreemapConfig{Category: "a", Value: "b"}},
		{Config: models.HeatmapConfig{X: "a", Y: "b", Value: "c"}},
		{Config: models.GanttConfig{Task: "a", Start: "b", End: "c"}},
		{Config: models.MapConfig{Region: "a", Value: "b"}},
	}
	junk := []models.Row{{"a": nil, "b": "x", "c": "y"}}

	for _, spec := range specs {
		for _, rows := range [][]models.Row{nil, junk} {
			rc := b.Build(spec, rows)
			assert.True(t, rc.Empty, spec.Type())
			assert.Equal(t, spec.Type(), rc.ChartType)
			require.Len(t, rc.Series, 1)
			_, err := json.Marshal(rc)
			assert.NoError(t, err)
		}
	}
}

func TestHeatmap_IndexMatrix(t *testing.T) {
	rows := []models.Row{
		{"Day": "Mon", "Hour": "9", "Load": "3"},
		{"Day": "Tue", "Hour": "9", "Load": "7"},
		{"Day": "Mon", "Hour": "10", "Load": "1"},
		{"Day": "Wed", "Hour": nil, "Load": "9"},
	}
	rc := newBuilder().Heatmap(models.HeatmapConfig{X: "Day", Y: "Hour", Value: "Load"}, rows)

	assert.Equal(t, []string{"Mon", "Tue"}, rc.XAxis.Data)
	assert.Equal(t, []string{"9", "10"}, rc.YAxis.Data)
	assert.Equal(t, []chartconfig.Cell{{0, 0, 3}, {1, 0, 7}, {0, 1, 1}}, rc.Series[0].Data)
	assert.Equal(t, 7.0, rc.VisualMap.Max)
}

func TestHeatmap_NegativeRange(t *testing.T) {
	rows := []models.Row{
		{"Day": "Mon", "Hour": "9", "Delta": "-5"},
		{"Day": "Tue", "Hour": "9", "Delta": "-2"},
	}
	rc := newBuilder().Heatmap(models.HeatmapConfig{X: "Day", Y: "Hour", Value: "Delta"}, rows)

	assert.Equal(t, -5.0, rc.VisualMap.Min)
	assert.Equal(t, -2.0, rc.VisualMap.Max)
	assert.LessOrEqual(t, rc.VisualMap.Min, rc.VisualMap.Max)

	rc = newBuilder().Heatmap(models.HeatmapConfig{X: "Day", Y: "Hour", Value: "Delta"}, []models.Row{
		{"Day": "Mon", "Hour": "9", "Delta": "4"},
	})
	assert.Equal(t, 0.0, rc.VisualMap.Min)
	assert.Equal(t, 4.0, rc.VisualMap.Max)
}

func TestGantt_DurationRoundsUp(t *testing.T) {
	rows := []models.Row{
		{"Task": "Design", "Start": "2024-01-01", "End": "2024-01-10"},
		{"Task": "Build", "Start": "2024-01-10T00:00:00Z", "End": "2024-01-11T06:00:00Z"},
		{"Task": "Broken", "Start": "someday", "End": "2024-01-11"},
	}
	rc := newBuilder().Gantt(models.GanttConfig{Task: "Task", Start: "Start", End: "End"}, rows)

	tasks := rc.Series[0].Data.([]chartconfig.Task)
	require.Len(t, tasks, 2)
	assert.Equal(t, 9, tasks[0].DurationDays)
	assert.Equal(t, 2, tasks[1].DurationDays)
	assert.Equal(t, 1, tasks[1].Index)
	assert.Equal(t, []string{"Design", "Build"}, rc.YAxis.Data)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, chartconfig.DurationDays(start, start.Add(time.Minute)))
	assert.Equal(t, 0, chartconfig.DurationDays(start, start))
}

func TestMap_MaxNeverBelowZero(t *testing.T) {
	b := newBuilder()
	rc := b.Map(models.MapConfig{Region: "State", Value: "Delta"}, []models.Row{
		{"State": "CA", "Delta": "-4"},
		{"State": "TX", "Delta": "-1"},
	})
	assert.Equal(t, 0.0, rc.VisualMap.Max)
	assert.Equal(t, "USA", rc.Series[0].Map)

	rc = b.Map(models.MapConfig{Region: "State", Value: "Pop"}, []models.Row{{"State": "CA", "Pop": "39"}})
	assert.Equal(t, 39.0, rc.VisualMap.Max)
}

func TestMap_DropsRowsWithoutRegion(t *testing.T) {
	rc := newBuilder().Map(models.MapConfig{Region: "State", Value: "Pop"}, []models.Row{
		{"State": "Texas", "Pop": "10"},
		{"State": nil, "Pop": "99"},
		{"State": "  ", "Pop": "7"},
		{"Pop": "5"},
	})

	data := rc.Series[0].Data.([]chartconfig.Datum)
	require.Len(t, data, 1)
	assert.Equal(t, "Texas", data[0].Name)
	assert.Equal(t, 10.0, rc.VisualMap.Max)
}

func TestBuild_PrefersAggregatedData(t *testing.T) {
	spec := models.ChartSpec{
		Config:         models.BarConfig{Category: "Region", Value: "Sales"},
		Title:          "Sales by Region",
		AggregatedData: []models.Row{{"Region": "East", "Sales": 15.0}},
	}
	rc := newBuilder().Build(spec, []models.Row{{"Region": "West", "Sales": "1"}})

	assert.Equal(t, []string{"East"}, rc.XAxis.Data)
	require.NotNil(t, rc.Title)
	assert.Equal(t, "Sales by Region", rc.Title.Text)
	assert.Equal(t, 60, rc.Grid.Top)
}

func TestPalette_IsACopy(t *testing.T) {
	colors := []string{"#000", "#fff"}
	p := chartconfig.NewPalette(colors...)
	colors[0] = "#123"

	assert.Equal(t, "#000", p.Color(0))
	assert.Equal(t, "#000", p.Color(2))

	out := p.Colors()
	out[1] = "#abc"
	assert.Equal(t, "#fff", p.Color(1))
}

func TestFormatter(t *testing.T) {
	f := chartconfig.DefaultFormatter()
	assert.Equal(t, "1,234,567.5", f.Number(1234567.5))
	assert.Equal(t, "12%", f.WithUnit(12, "%"))
}
