package handlers

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/internal/api/middleware"
	"github.com/chartgenie/chartgenie/internal/chartconfig"
	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Dataset Handlers ─────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListDatasets handles GET /api/v1/datasets?limit=&offset=
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &ts
	}

	datasets, err := h.Store.ListDatasets(r.Context(), middleware.GetOwner(r.Context()), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if datasets == nil {
		datasets = []models.Dataset{}
	}
	respondJSON(w, http.StatusOK, datasets)
}

// UploadDataset handles POST /api/v1/datasets (multipart, field "file").
// The record is created PENDING and analysis runs in the background.
func (h *Handlers) UploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filename := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if !strings.EqualFold(path.Ext(filename), ".csv") {
		respondError(w, http.StatusBadRequest, "only .csv files are supported")
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = filename
	}

	owner := middleware.GetOwner(r.Context())
	loc, err := h.Blobs.Put(r.Context(), owner, filename, file)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	ds := &models.Dataset{
		ID:                uuid.New().String(),
		OwnerID:           owner,
		Name:              name,
		Status:            models.DatasetPending,
		StorageObjectPath: loc,
	}
	if err := h.Store.CreateDataset(r.Context(), ds); err != nil {
		if derr := h.Blobs.Delete(r.Context(), loc); derr != nil {
			log.Warn().Err(derr).Str("locator", loc).Msg("Failed to clean up orphaned upload")
		}
		respondErr(w, r, err)
		return
	}

	h.Analyzer.Submit(r.Context(), ds.ID)

	log.Info().Str("dataset", ds.ID).Str("owner", owner).Str("name", name).Msg("Dataset uploaded")
	respondJSON(w, http.StatusAccepted, ds)
}

// GetDataset handles GET /api/v1/datasets/{datasetId}
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

// DeleteDataset handles DELETE /api/v1/datasets/{datasetId}. The blob
// and any conversations go with the record.
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeleteDataset(r.Context(), ds.ID); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.Blobs.Delete(r.Context(), ds.StorageObjectPath); err != nil {
		log.Warn().Err(err).Str("dataset", ds.ID).Msg("Failed to delete dataset object")
	}
	n := h.Conversations.Store().DeleteByDataset(r.Context(), ds.ID)

	log.Info().Str("dataset", ds.ID).Int("conversations", n).Msg("Dataset deleted")
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeDataset handles POST /api/v1/datasets/{datasetId}/analyze
func (h *Handlers) AnalyzeDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	h.Analyzer.Submit(r.Context(), ds.ID)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"id":     ds.ID,
		"status": string(models.DatasetAnalyzing),
	})
}

// DatasetData handles GET /api/v1/datasets/{datasetId}/data?limit=
func (h *Handlers) DatasetData(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	tbl, err := h.Analyzer.Rows(r.Context(), ds, true)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	rows := tbl.Rows
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []models.Row{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"columns": tbl.Header,
		"rows":    rows,
		"total":   len(tbl.Rows),
	})
}

type chartEntry struct {
	Spec   models.ChartSpec          `json:"chart_spec"`
	Render *chartconfig.RenderConfig `json:"render,omitempty"`
}

// DatasetCharts handles GET /api/v1/datasets/{datasetId}/charts?render=true
// with the automatic dashboard for a ready dataset.
func (h *Handlers) DatasetCharts(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	s, rows, err := h.Analyzer.Load(r.Context(), ds.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	render, _ := strconv.ParseBool(r.URL.Query().Get("render"))

	specs := h.Selector.Select(s, rows)
	out := make([]chartEntry, 0, len(specs))
	for _, spec := range specs {
		entry := chartEntry{Spec: spec}
		if render {
			rc := h.Builder.Build(spec, rows)
			entry.Render = &rc
		}
		out = append(out, entry)
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"charts": out})
}

// ownedDataset loads the {datasetId} dataset, answering 404 when it is
// missing or belongs to another owner.
func (h *Handlers) ownedDataset(w http.ResponseWriter, r *http.Request) (*models.Dataset, bool) {
	id := chi.URLParam(r, "datasetId")
	ds, err := h.Store.GetDataset(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	if ds.OwnerID != middleware.GetOwner(r.Context()) {
		respondErr(w, r, &store.ErrNotFound{Entity: "dataset", Key: id})
		return nil, false
	}
	return ds, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}
