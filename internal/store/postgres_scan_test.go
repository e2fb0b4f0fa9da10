package store

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// fakeRow feeds fixed column values to Scan in datasetColumns order.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, v := range r.values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return errors.New("unsupported destination")
		}
	}
	return nil
}

var _ pgx.Row = fakeRow{}

func TestEncodeDatasetJSON_EmptyCollections(t *testing.T) {
	schema, preview, questions, err := encodeDatasetJSON(&models.Dataset{ID: "ds-1"})
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(preview))
	assert.JSONEq(t, "[]", string(questions))
	assert.True(t, json.Valid(schema))
}

func TestScanDataset_DecodesJSONColumns(t *testing.T) {
	ds := &models.Dataset{
		ColumnSchema: models.NewSchema(
			models.Column{Name: "Region", Type: models.ColumnCategory},
			models.Column{Name: "Sales", Type: models.ColumnNumber},
		),
		PreviewData:        []models.Row{{"Region": "West", "Sales": "10"}},
		SuggestedQuestions: []string{"show Sales by Region"},
	}
	schema, preview, questions, err := encodeDatasetJSON(ds)
	require.NoError(t, err)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got, err := scanDataset(fakeRow{values: []any{
		"ds-1", "u1", "sales.csv", "READY", schema, preview, questions,
		"u1/2024/05/01/x-sales.csv", 6, "", created, created,
	}})
	require.NoError(t, err)

	assert.Equal(t, models.DatasetReady, got.Status)
	assert.Equal(t, []string{"Region", "Sales"}, got.ColumnSchema.Names())
	typ, ok := got.ColumnSchema.Type("Sales")
	require.True(t, ok)
	assert.Equal(t, models.ColumnNumber, typ)
	assert.Equal(t, "West", got.PreviewData[0]["Region"])
	assert.Equal(t, []string{"show Sales by Region"}, got.SuggestedQuestions)
	assert.Equal(t, 6, got.RowCount)
	assert.True(t, created.Equal(got.CreatedAt))
}

func TestScanDataset_PropagatesNoRows(t *testing.T) {
	_, err := scanDataset(fakeRow{err: pgx.ErrNoRows})
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestScanDataset_BadJSON(t *testing.T) {
	now := time.Now()
	_, err := scanDataset(fakeRow{values: []any{
		"ds-1", "u1", "a.csv", "READY", []byte("{}"), []byte("not json"), []byte("[]"),
		"", 0, "", now, now,
	}})
	assert.Error(t, err)
}
