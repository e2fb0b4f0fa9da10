package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/pkg/models"
)

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore(t.TempDir())
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDataset(id, owner string) *models.Dataset {
	return &models.Dataset{
		ID:      id,
		OwnerID: owner,
		Name:    id + ".csv",
		Status:  models.DatasetPending,
		ColumnSchema: models.NewSchema(
			models.Column{Name: "Region", Type: models.ColumnCategory},
			models.Column{Name: "Sales", Type: models.ColumnNumber},
		),
		PreviewData:        []models.Row{{"Region": "West", "Sales": "10"}},
		SuggestedQuestions: []string{"show Sales by Region"},
	}
}

// ─── Dataset CRUD ────────────────────────────────────────────

func TestCreateAndGetDataset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDataset(ctx, sampleDataset("d1", "alice")))

	got, err := s.GetDataset(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1.csv", got.Name)
	assert.Equal(t, models.DatasetPending, got.Status)
	assert.Equal(t, []string{"Region", "Sales"}, got.ColumnSchema.Names())
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetDataset_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDataset(context.Background(), "missing")
	var nf *store.ErrNotFound
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "dataset", nf.Entity)
	assert.Equal(t, "missing", nf.Key)
}

func TestGetDataset_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDataset(ctx, sampleDataset("d1", "alice")))

	got, _ := s.GetDataset(ctx, "d1")
	got.PreviewData[0]["Region"] = "mutated"
	got.ColumnSchema.Set("Extra", models.ColumnText)

	again, _ := s.GetDataset(ctx, "d1")
	assert.Equal(t, "West", again.PreviewData[0]["Region"])
	assert.False(t, again.ColumnSchema.Has("Extra"))
}

func TestUpdateDataset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDataset(ctx, sampleDataset("d1", "alice")))

	ds, _ := s.GetDataset(ctx, "d1")
	created := ds.CreatedAt
	ds.Status = models.DatasetReady
	ds.RowCount = 42
	require.NoError(t, s.UpdateDataset(ctx, ds))

	got, _ := s.GetDataset(ctx, "d1")
	assert.Equal(t, models.DatasetReady, got.Status)
	assert.Equal(t, 42, got.RowCount)
	assert.Equal(t, created, got.CreatedAt)

	err := s.UpdateDataset(ctx, sampleDataset("nope", "alice"))
	var nf *store.ErrNotFound
	assert.True(t, errors.As(err, &nf))
}

func TestDeleteDataset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDataset(ctx, sampleDataset("del", "alice")))

	require.NoError(t, s.DeleteDataset(ctx, "del"))
	_, err := s.GetDataset(ctx, "del")
	assert.Error(t, err)
	assert.Error(t, s.DeleteDataset(ctx, "del"))
}

func TestListDatasets_OwnerAndOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		ds := sampleDataset(id, "alice")
		ds.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.CreateDataset(ctx, ds))
	}
	require.NoError(t, s.CreateDataset(ctx, sampleDataset("other", "bob")))

	list, err := s.ListDatasets(ctx, "alice", store.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID, "newest first")
	assert.Equal(t, "a", list[2].ID)

	paged, _ := s.ListDatasets(ctx, "alice", store.ListFilter{Limit: 1, Offset: 1})
	require.Len(t, paged, 1)
	assert.Equal(t, "b", paged[0].ID)

	since := base.Add(90 * time.Minute)
	recent, _ := s.ListDatasets(ctx, "alice", store.ListFilter{Since: &since})
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].ID)
}

// ─── Persistence ─────────────────────────────────────────────

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := store.NewMemoryStore(dir)
	ready := sampleDataset("ready", "alice")
	ready.Status = models.DatasetReady
	require.NoError(t, s.CreateDataset(ctx, ready))
	require.NoError(t, s.CreateDataset(ctx, sampleDataset("pending", "alice")))
	require.NoError(t, s.Close())

	reopened := store.NewMemoryStore(dir)
	defer reopened.Close()

	got, err := reopened.GetDataset(ctx, "ready")
	require.NoError(t, err)
	assert.Equal(t, models.DatasetReady, got.Status)
	typ, ok := got.ColumnSchema.Type("Sales")
	require.True(t, ok)
	assert.Equal(t, models.ColumnNumber, typ)

	interrupted, err := reopened.GetDataset(ctx, "pending")
	require.NoError(t, err)
	assert.Equal(t, models.DatasetError, interrupted.Status)
	assert.NotEmpty(t, interrupted.Error)
}

func TestClose_Idempotent(t *testing.T) {
	s := store.NewMemoryStore("")
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
