package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartgenie/chartgenie/internal/analysis"
	"github.com/chartgenie/chartgenie/internal/api"
	"github.com/chartgenie/chartgenie/internal/api/handlers"
	"github.com/chartgenie/chartgenie/internal/config"
	"github.com/chartgenie/chartgenie/internal/conversation"
	"github.com/chartgenie/chartgenie/internal/query"
	"github.com/chartgenie/chartgenie/internal/storage"
	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/pkg/models"
)

const salesCSV = "Region,Sales\nWest,10\nEast,20\nWest,5\nEast,15\nWest,30\nEast,25\n"

type testEnv struct {
	server   *httptest.Server
	store    *store.MemoryStore
	analyzer *analysis.Analyzer
}

func newEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	st := store.NewMemoryStore(t.TempDir())
	blobs := storage.NewLocalStore(t.TempDir(), true)
	an := analysis.NewAnalyzer(st, blobs, nil, nil, analysis.DefaultOptions())
	q := query.NewRouter(nil, query.DefaultOptions())
	conv := conversation.NewService(conversation.NewMemoryStore(conversation.MaxTurns), q, an)

	h := handlers.New(st, blobs, an, q, conv, nil)
	srv := httptest.NewServer(api.NewRouter(cfg, h))
	t.Cleanup(func() {
		srv.Close()
		an.Wait()
		_ = st.Close()
	})
	return &testEnv{server: srv, store: st, analyzer: an}
}

func (e *testEnv) do(t *testing.T, method, path, owner string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rdr)
	require.NoError(t, err)
	if owner != "" {
		req.Header.Set("X-Owner-Id", owner)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) upload(t *testing.T, owner, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/v1/datasets", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Owner-Id", owner)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readyDataset uploads salesCSV and waits for analysis.
func (e *testEnv) readyDataset(t *testing.T, owner string) models.Dataset {
	t.Helper()
	resp := e.upload(t, owner, "sales.csv", salesCSV)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var ds models.Dataset
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ds))
	e.analyzer.Wait()
	return ds
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthAndVersion(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", decode[map[string]string](t, resp)["status"])

	resp = env.do(t, http.MethodGet, "/version", "", nil)
	assert.Equal(t, "0.1.0", decode[map[string]string](t, resp)["version"])
}

func TestUploadAnalyzeAndGet(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.upload(t, "u1", "sales.csv", salesCSV)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decode[models.Dataset](t, resp)
	assert.Equal(t, models.DatasetPending, created.Status)
	assert.Equal(t, "u1", created.OwnerID)
	assert.Contains(t, created.StorageObjectPath, "u1/")
	env.analyzer.Wait()

	resp = env.do(t, http.MethodGet, "/api/v1/datasets/"+created.ID, "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ds := decode[models.Dataset](t, resp)
	assert.Equal(t, models.DatasetReady, ds.Status)
	assert.Equal(t, 6, ds.RowCount)
	assert.Len(t, ds.SuggestedQuestions, analysis.SuggestedCount)
	typ, _ := ds.ColumnSchema.Type("Sales")
	assert.Equal(t, models.ColumnNumber, typ)

	// Another owner cannot see it.
	resp = env.do(t, http.MethodGet, "/api/v1/datasets/"+created.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/datasets", "u1", nil)
	assert.Len(t, decode[[]models.Dataset](t, resp), 1)
	resp = env.do(t, http.MethodGet, "/api/v1/datasets", "u2", nil)
	assert.Len(t, decode[[]models.Dataset](t, resp), 0)
}

func TestUpload_Rejections(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.upload(t, "u1", "notes.txt", "hello")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/datasets", "u1", "not multipart")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryDataset(t *testing.T) {
	env := newEnv(t, nil)
	ds := env.readyDataset(t, "u1")
	path := "/api/v1/datasets/" + ds.ID + "/query"

	resp := env.do(t, http.MethodPost, path, "u1", map[string]string{"prompt": "how many rows are there?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[models.QueryResult](t, resp)
	assert.Equal(t, models.ResultText, res.Type)
	assert.Contains(t, res.Insight, "6 rows")
	assert.True(t, res.UsedFallback)

	history := "User: hi\nGenie: hello\n\nLatest: show Sales by Region"
	resp = env.do(t, http.MethodPost, path, "u1", map[string]string{"prompt": history})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res = decode[models.QueryResult](t, resp)
	assert.Equal(t, models.ResultViz, res.Type)
	require.NotNil(t, res.ChartSpec)
	assert.NotEmpty(t, res.ChartData)

	resp = env.do(t, http.MethodPost, path, "u1", map[string]string{"prompt": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryDataset_NotReady(t *testing.T) {
	env := newEnv(t, nil)
	require.NoError(t, env.store.CreateDataset(context.Background(), &models.Dataset{
		ID: "pending", OwnerID: "u1", Status: models.DatasetPending, StorageObjectPath: "u1/1-x.csv",
	}))

	resp := env.do(t, http.MethodPost, "/api/v1/datasets/pending/query", "u1", map[string]string{"prompt": "how many rows"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestConversationFlow(t *testing.T) {
	env := newEnv(t, nil)
	ds := env.readyDataset(t, "u1")
	base := "/api/v1/datasets/" + ds.ID + "/conversations"

	resp := env.do(t, http.MethodPost, base, "u1", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	conv := decode[conversation.View](t, resp)
	require.NotEmpty(t, conv.ID)

	resp = env.do(t, http.MethodPost, base+"/"+conv.ID+"/messages", "u1", map[string]string{"text": "how many rows?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[models.QueryResult](t, resp)
	assert.Contains(t, res.Insight, "6 rows")

	resp = env.do(t, http.MethodPost, base+"/"+conv.ID+"/messages", "u1", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, base+"/"+conv.ID, "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[conversation.View](t, resp)
	require.Len(t, got.Turns, 2)
	assert.True(t, got.Turns[0].IsUser)
	assert.False(t, got.Turns[1].IsUser)

	resp = env.do(t, http.MethodGet, base, "u1", nil)
	assert.Len(t, decode[[]conversation.View](t, resp), 1)

	// Conversations are scoped to their owner.
	resp = env.do(t, http.MethodGet, base+"/"+conv.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, base+"/"+conv.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, base+"/"+conv.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDatasetDataAndCharts(t *testing.T) {
	env := newEnv(t, nil)
	ds := env.readyDataset(t, "u1")

	resp := env.do(t, http.MethodGet, "/api/v1/datasets/"+ds.ID+"/data?limit=2", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode[struct {
		Columns []string     `json:"columns"`
		Rows    []models.Row `json:"rows"`
		Total   int          `json:"total"`
	}](t, resp)
	assert.Equal(t, []string{"Region", "Sales"}, data.Columns)
	assert.Len(t, data.Rows, 2)
	assert.Equal(t, 6, data.Total)
	assert.Equal(t, 10.0, data.Rows[0]["Sales"])

	resp = env.do(t, http.MethodGet, "/api/v1/datasets/"+ds.ID+"/charts?render=true", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	charts := decode[struct {
		Charts []struct {
			Spec   models.ChartSpec `json:"chart_spec"`
			Render json.RawMessage  `json:"render"`
		} `json:"charts"`
	}](t, resp)
	require.NotEmpty(t, charts.Charts)
	assert.NotEmpty(t, charts.Charts[0].Render)
	assert.NotEmpty(t, charts.Charts[0].Spec.Type())
}

func TestDeleteDataset(t *testing.T) {
	env := newEnv(t, nil)
	ds := env.readyDataset(t, "u1")

	resp := env.do(t, http.MethodDelete, "/api/v1/datasets/"+ds.ID, "u2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/v1/datasets/"+ds.ID, "u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/datasets/"+ds.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInferSchema(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/schema/infer", "", salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[struct {
		ColumnSchema       models.Schema `json:"column_schema"`
		PreviewData        []models.Row  `json:"preview_data"`
		RowCount           int           `json:"row_count"`
		SuggestedQuestions []string      `json:"suggested_questions"`
	}](t, resp)
	assert.Equal(t, []string{"Region", "Sales"}, out.ColumnSchema.Names())
	assert.Equal(t, 6, out.RowCount)
	assert.Len(t, out.PreviewData, 6)
	assert.Equal(t, "show Sales by Region", out.SuggestedQuestions[0])

	resp = env.do(t, http.MethodPost, "/api/v1/schema/infer", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0.0, decode[map[string]any](t, resp)["row_count"])
}

func TestRenderChart(t *testing.T) {
	env := newEnv(t, nil)
	body := map[string]any{
		"chart_spec": map[string]any{
			"chart_type": "bar",
			"config":     map[string]any{"category": "Region", "value": "Sales"},
			"title":      "Sales by Region",
		},
		"rows": []map[string]any{
			{"Region": "West", "Sales": 45},
			{"Region": "East", "Sales": 60},
		},
	}

	resp := env.do(t, http.MethodPost, "/api/v1/charts/render", "", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string]any](t, resp)
	assert.Equal(t, "bar", out["chartType"])
	assert.Equal(t, false, out["empty"])

	resp = env.do(t, http.MethodPost, "/api/v1/charts/render", "", map[string]any{"rows": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestModelsWithoutProviders(t *testing.T) {
	env := newEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/v1/models/providers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[map[string][]string](t, resp)
	assert.Empty(t, out["providers"])
}

func TestAPIKeysEnforced(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.APIKeys = []string{"secret"} })

	resp := env.do(t, http.MethodGet, "/api/v1/datasets", "u1", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/datasets", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "secret")
	ok, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}
