package autochart_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/autochart"
	"github.com/chartgenie/chartgenie/pkg/models"
)

func schemaOf(cols ...models.Column) models.Schema { return models.NewSchema(cols...) }

func col(name string, t models.ColumnType) models.Column { return models.Column{Name: name, Type: t} }

func TestSelect_RegionSales(t *testing.T) {
	s := schemaOf(col("Region", models.ColumnCategory), col("Sales", models.ColumnNumber))
	rows := []models.Row{
		{"Region": "East", "Sales": "10"},
		{"Region": "West", "Sales": "20"},
		{"Region": "East", "Sales": "5"},
	}

	specs := autochart.NewSelector(autochart.DefaultOptions()).Select(s, rows)

	require.Len(t, specs, 1)
	assert.Equal(t, models.BarConfig{Category: "Region", Value: "Sales"}, specs[0].Config)
	assert.Equal(t, "Sales by Region", specs[0].Title)
	assert.Equal(t, []models.Row{
		{"Region": "East", "Sales": 15.0},
		{"Region": "West", "Sales": 20.0},
	}, specs[0].AggregatedData)
}

func richDataset() (models.Schema, []models.Row) {
	s := schemaOf(
		col("Region", models.ColumnCategory),
		col("Product", models.ColumnCategory),
		col("Date", models.ColumnDate),
		col("Sales", models.ColumnNumber),
		col("Profit", models.ColumnNumber),
		col("Units", models.ColumnNumber),
	)
	regions := []string{"East", "West", "North"}
	products := []string{"A", "B", "C", "D"}
	var rows []models.Row
	for i := 0; i < 24; i++ {
		rows = append(rows, models.Row{
			"Region":  regions[i%3],
			"Product": products[i%4],
			"Date":    "2024-01-0" + string(rune('1'+i%9)),
			"Sales":   float64(i * 10),
			"Profit":  float64(i),
			"Units":   float64(i % 5),
		})
	}
	return s, rows
}

func TestSelect_BoundedAndUnique(t *testing.T) {
	s, rows := richDataset()
	specs := autochart.NewSelector(autochart.DefaultOptions()).Select(s, rows)

	require.LessOrEqual(t, len(specs), 4)
	seen := map[string]bool{}
	for _, spec := range specs {
		key := string(spec.Type()) + ":" + strings.Join(spec.Config.Columns(), ",")
		assert.False(t, seen[key], "duplicate spec %s", key)
		seen[key] = true
		assert.NotEqual(t, models.ChartMap, spec.Type())
	}

	require.Len(t, specs, 4)
	assert.Equal(t, models.ChartBar, specs[0].Type())
	assert.Equal(t, models.LineConfig{X: "Date", Y: "Sales"}, specs[1].Config)
	assert.Equal(t, models.LineConfig{X: "Date", Y: "Profit"}, specs[2].Config)
	assert.Equal(t, models.ScatterConfig{X: "Sales", Y: "Profit"}, specs[3].Config)
	assert.Equal(t, "Sales vs Profit", specs[3].Title)
}

func TestSelect_TreemapSkipsBarCategory(t *testing.T) {
	s := schemaOf(
		col("Region", models.ColumnCategory),
		col("Product", models.ColumnCategory),
		col("Sales", models.ColumnNumber),
	)
	rows := []models.Row{
		{"Region": "East", "Product": "A", "Sales": "1"},
		{"Region": "West", "Product": "B", "Sales": "2"},
		{"Region": "North", "Product": "C", "Sales": "3"},
	}
	specs := autochart.NewSelector(autochart.DefaultOptions()).Select(s, rows)

	require.Len(t, specs, 2)
	assert.Equal(t, models.BarConfig{Category: "Region", Value: "Sales"}, specs[0].Config)
	assert.Equal(t, models.TreemapConfig{Category: "Product", Value: "Sales"}, specs[1].Config)
	assert.Nil(t, specs[1].AggregatedData)
}

func TestSelect_ExtraBarsAndHeatmap(t *testing.T) {
	s := schemaOf(
		col("Team", models.ColumnCategory),
		col("A", models.ColumnNumber),
		col("B", models.ColumnNumber),
		col("C", models.ColumnNumber),
	)
	rows := []models.Row{
		{"Team": "red", "A": "1", "B": "2", "C": "3"},
		{"Team": "blue", "A": "4", "B": "5", "C": "6"},
	}

	specs := autochart.NewSelector(autochart.DefaultOptions()).Select(s, rows)
	require.Len(t, specs, 4)
	assert.Equal(t, models.BarConfig{Category: "Team", Value: "B"}, specs[2].Config)
	assert.Equal(t, "Comparing aggregated B across different Team values", specs[2].Insight)

	opts := autochart.DefaultOptions()
	opts.MaxCharts = 6
	specs = autochart.NewSelector(opts).Select(s, rows)
	require.Len(t, specs, 5)
	assert.Equal(t, models.HeatmapConfig{X: "Team", Y: "A", Value: "B"}, specs[4].Config)
	assert.Equal(t, "B Heat Map", specs[4].Title)
}

func TestSelect_Gantt(t *testing.T) {
	s := schemaOf(
		col("Task", models.ColumnText),
		col("Start Date", models.ColumnDateStart),
		col("End Date", models.ColumnDateEnd),
	)
	rows := []models.Row{
		{"Task": "Design", "Start Date": "2024-01-01", "End Date": "2024-01-10"},
		{"Task": "Build", "Start Date": "2024-01-11", "End Date": "2024-02-01"},
	}
	specs := autochart.NewSelector(autochart.DefaultOptions()).Select(s, rows)

	require.Len(t, specs, 1)
	assert.Equal(t, models.GanttConfig{Task: "Task", Start: "Start Date", End: "End Date"}, specs[0].Config)
	assert.Equal(t, "Project Timeline", specs[0].Title)
}

func TestSelect_Fallback(t *testing.T) {
	s := schemaOf(col("ID", models.ColumnText), col("Score", models.ColumnNumber))
	rows := []models.Row{{"ID": "a", "Score": "1"}, {"ID": "b", "Score": "2"}}

	specs := autochart.NewSelector(autochart.DefaultOptions()).Select(s, rows)

	require.Len(t, specs, 1)
	assert.Equal(t, models.BarConfig{Category: "ID", Value: "Score"}, specs[0].Config)
	assert.Equal(t, "Score Overview", specs[0].Title)
}

func TestSelect_EmptyInputs(t *testing.T) {
	sel := autochart.NewSelector(autochart.Options{})
	s := schemaOf(col("Region", models.ColumnCategory), col("Sales", models.ColumnNumber))

	assert.Empty(t, sel.Select(s, nil))
	assert.Empty(t, sel.Select(models.Schema{}, []models.Row{{"x": "1"}}))
}

func TestSelect_GeoNeverSelected(t *testing.T) {
	s := schemaOf(col("State", models.ColumnGeoState), col("Pop", models.ColumnNumber))
	rows := []models.Row{{"State": "CA", "Pop": "39"}, {"State": "TX", "Pop": "30"}}

	for _, spec := range autochart.NewSelector(autochart.DefaultOptions()).Select(s, rows) {
		assert.NotEqual(t, models.ChartMap, spec.Type())
	}
}
