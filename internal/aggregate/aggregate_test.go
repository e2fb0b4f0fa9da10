package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/aggregate"
	"github.com/chartgenie/chartgenie/pkg/models"
)

func TestSum_FirstSeenOrder(t *testing.T) {
	rows := []models.Row{
		{"Region": "West", "Sales": "20"},
		{"Region": "East", "Sales": "10"},
		{"Region": "West", "Sales": "5"},
	}
	got := aggregate.Sum(rows, "Region", "Sales")
	assert.Equal(t, []aggregate.Group{{Key: "West", Value: 25}, {Key: "East", Value: 10}}, got)
}

func TestSum_PreservesTotal(t *testing.T) {
	rows := []models.Row{
		{"Cat": "a", "V": "1.5"},
		{"Cat": "b", "V": 2.0},
		{"Cat": "c", "V": "3"},
		{"Cat": "a", "V": "4"},
		{"Cat": nil, "V": "10"},
		{"Cat": "", "V": "1"},
		{"Cat": "b", "V": "oops"},
	}
	groups := aggregate.Sum(rows, "Cat", "V")

	require.Len(t, groups, 4)
	assert.Equal(t, aggregate.Unknown, groups[3].Key)
	assert.Equal(t, 11.0, groups[3].Value)

	var sum float64
	for _, g := range groups {
		sum += g.Value
	}
	assert.InDelta(t, aggregate.Total(rows, "V"), sum, 1e-9)
	assert.InDelta(t, 21.5, sum, 1e-9)
}

func TestSum_NoNullsNoUnknown(t *testing.T) {
	rows := []models.Row{
		{"Cat": "x", "V": "1"},
		{"Cat": "y", "V": "2"},
		{"Cat": "z", "V": "3"},
	}
	groups := aggregate.Sum(rows, "Cat", "V")
	require.Len(t, groups, 3)
	for _, g := range groups {
		assert.NotEqual(t, aggregate.Unknown, g.Key)
	}
}

func TestRows(t *testing.T) {
	rows := []models.Row{
		{"Region": "East", "Sales": "10"},
		{"Region": "West", "Sales": "20"},
		{"Region": "East", "Sales": "5"},
	}
	got := aggregate.Rows(rows, "Region", "Sales")
	assert.Equal(t, []models.Row{
		{"Region": "East", "Sales": 15.0},
		{"Region": "West", "Sales": 20.0},
	}, got)
}

func TestSum_Empty(t *testing.T) {
	assert.Empty(t, aggregate.Sum(nil, "a", "b"))
	assert.Equal(t, 0, aggregate.Distinct(nil, "a"))
}
