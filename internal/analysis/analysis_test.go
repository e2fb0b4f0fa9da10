package analysis_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/analysis"
	"github.com/chartgenie/chartgenie/internal/storage"
	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/pkg/models"
)

const salesCSV = "Region,Sales\nWest,10\nEast,20\nWest,5\nEast,15\nWest,30\nEast,25\n"

// memBlobs is an in-memory blob store. failures makes the next n Get
// calls fail with a transient error.
type memBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures int
	gets     int32
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Kind() string { return "memory" }

func (m *memBlobs) Put(_ context.Context, owner, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	loc := storage.Locator(owner, filename, time.Now())
	m.mu.Lock()
	m.objects[loc] = data
	m.mu.Unlock()
	return loc, nil
}

func (m *memBlobs) Get(_ context.Context, loc string) (io.ReadCloser, error) {
	atomic.AddInt32(&m.gets, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("connection reset")
	}
	data, ok := m.objects[loc]
	if !ok {
		return nil, fmt.Errorf("%s: %w", loc, storage.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Delete(_ context.Context, loc string) error {
	m.mu.Lock()
	delete(m.objects, loc)
	m.mu.Unlock()
	return nil
}

type scriptedReasoner struct {
	content string
	err     error
}

func (r scriptedReasoner) Complete(context.Context, models.CompletionRequest) (*models.Completion, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &models.Completion{Content: r.content}, nil
}

type recordingNotifier struct {
	events []models.DatasetEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev models.DatasetEvent) {
	n.events = append(n.events, ev)
}

func setup(t *testing.T, csv string) (*store.MemoryStore, *memBlobs, *models.Dataset) {
	t.Helper()
	st := store.NewMemoryStore(t.TempDir())
	t.Cleanup(func() { _ = st.Close() })
	blobs := newMemBlobs()

	loc, err := blobs.Put(context.Background(), "u1", "sales.csv", bytes.NewBufferString(csv))
	require.NoError(t, err)
	ds := &models.Dataset{
		ID:                "ds-1",
		OwnerID:           "u1",
		Name:              "sales.csv",
		Status:            models.DatasetPending,
		StorageObjectPath: loc,
	}
	require.NoError(t, st.CreateDataset(context.Background(), ds))
	return st, blobs, ds
}

func fastOptions() analysis.Options {
	return analysis.Options{PreviewRows: 4, QuestionTimeout: time.Second, MaxRetries: 3, RetryInterval: time.Millisecond}
}

func TestAnalyze_MarksReady(t *testing.T) {
	st, blobs, ds := setup(t, salesCSV)
	a := analysis.NewAnalyzer(st, blobs, nil, nil, fastOptions())

	got, err := a.Analyze(context.Background(), ds.ID)
	require.NoError(t, err)

	assert.Equal(t, models.DatasetReady, got.Status)
	assert.Equal(t, 6, got.RowCount)
	assert.Len(t, got.PreviewData, 4)
	assert.Equal(t, "West", got.PreviewData[0]["Region"])
	// Analysis keeps raw strings in the preview.
	assert.Equal(t, "10", got.PreviewData[0]["Sales"])

	typ, ok := got.ColumnSchema.Type("Region")
	require.True(t, ok)
	assert.Equal(t, models.ColumnCategory, typ)
	typ, _ = got.ColumnSchema.Type("Sales")
	assert.Equal(t, models.ColumnNumber, typ)

	assert.Equal(t, []string{
		"show Sales by Region",
		"Sales breakdown by Region",
		"show me an overview of the data",
		"show me an overview of the data",
	}, got.SuggestedQuestions)

	stored, err := st.GetDataset(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DatasetReady, stored.Status)
}

func TestAnalyze_ReasonerQuestions(t *testing.T) {
	st, blobs, ds := setup(t, salesCSV)
	r := scriptedReasoner{content: "```json\n[\"total Sales per Region\", \"show Sales by Region\"]\n```"}
	a := analysis.NewAnalyzer(st, blobs, r, nil, fastOptions())

	got, err := a.Analyze(context.Background(), ds.ID)
	require.NoError(t, err)

	// Two from the reply, topped up from templates without repeats.
	assert.Equal(t, []string{
		"total Sales per Region",
		"show Sales by Region",
		"Sales breakdown by Region",
		"show me an overview of the data",
	}, got.SuggestedQuestions)
}

func TestAnalyze_ReasonerFailureUsesTemplates(t *testing.T) {
	st, blobs, ds := setup(t, salesCSV)
	a := analysis.NewAnalyzer(st, blobs, scriptedReasoner{err: errors.New("boom")}, nil, fastOptions())

	got, err := a.Analyze(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, analysis.TemplateQuestions(got.ColumnSchema), got.SuggestedQuestions)
}

func TestAnalyze_RetriesTransientDownload(t *testing.T) {
	st, blobs, ds := setup(t, salesCSV)
	blobs.failures = 2
	a := analysis.NewAnalyzer(st, blobs, nil, nil, fastOptions())

	got, err := a.Analyze(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DatasetReady, got.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&blobs.gets))
}

func TestAnalyze_MissingObjectMarksError(t *testing.T) {
	st, blobs, ds := setup(t, salesCSV)
	require.NoError(t, blobs.Delete(context.Background(), ds.StorageObjectPath))
	a := analysis.NewAnalyzer(st, blobs, nil, nil, fastOptions())

	_, err := a.Analyze(context.Background(), ds.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	// Missing objects are not retried.
	assert.Equal(t, int32(1), atomic.LoadInt32(&blobs.gets))

	stored, err := st.GetDataset(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DatasetError, stored.Status)
	assert.NotEmpty(t, stored.Error)
}

func TestAnalyze_NotifiesOutcome(t *testing.T) {
	st, blobs, ds := setup(t, salesCSV)
	n := &recordingNotifier{}
	a := analysis.NewAnalyzer(st, blobs, nil, nil, fastOptions())
	a.SetNotifier(n)

	_, err := a.Analyze(context.Background(), ds.ID)
	require.NoError(t, err)
	require.Len(t, n.events, 1)
	assert.Equal(t, models.EventDatasetReady, n.events[0].Type)
	assert.Equal(t, "u1", n.events[0].OwnerID)
	assert.Equal(t, 6, n.events[0].RowCount)

	require.NoError(t, blobs.Delete(context.Background(), ds.StorageObjectPath))
	_, err = a.Analyze(context.Background(), ds.ID)
	require.Error(t, err)
	require.Len(t, n.events, 2)
	assert.Equal(t, models.EventDatasetFailed, n.events[1].Type)
	assert.Equal(t, models.DatasetError, n.events[1].Status)
	assert.NotEmpty(t, n.events[1].Error)
}

func TestAnalyze_UnknownDataset(t *testing.T) {
	st, blobs, _ := setup(t, salesCSV)
	a := analysis.NewAnalyzer(st, blobs, nil, nil, fastOptions())

	_, err := a.Analyze(context.Background(), "nope")
	var nf *store.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestSubmitAndLoad(t *testing.T) {
	st, blobs, ds := setup(t, salesCSV)
	a := analysis.NewAnalyzer(st, blobs, nil, nil, fastOptions())

	_, _, err := a.Load(context.Background(), ds.ID)
	assert.ErrorIs(t, err, analysis.ErrNotReady)

	a.Submit(context.Background(), ds.ID)
	a.Wait()

	s, rows, err := a.Load(context.Background(), ds.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	require.Len(t, rows, 6)
	// Loaded rows are dynamically typed.
	assert.Equal(t, 10.0, rows[0]["Sales"])
}

func TestTemplateQuestions_NoNumbers(t *testing.T) {
	s := models.NewSchema(models.Column{Name: "Notes", Type: models.ColumnText})
	qs := analysis.TemplateQuestions(s)
	require.Len(t, qs, analysis.SuggestedCount)
	for _, q := range qs {
		assert.Equal(t, "show me an overview of the data", q)
	}
}

func TestTemplateQuestions_TrendAndCompare(t *testing.T) {
	s := models.NewSchema(
		models.Column{Name: "Month", Type: models.ColumnDate},
		models.Column{Name: "Revenue", Type: models.ColumnNumber},
		models.Column{Name: "Cost", Type: models.ColumnNumber},
	)
	assert.Equal(t, []string{
		"Revenue trend over time",
		"compare Revenue and Cost",
		"show me an overview of the data",
		"show me an overview of the data",
	}, analysis.TemplateQuestions(s))
}
