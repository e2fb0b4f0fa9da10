package handlers

import (
	"net/http"

	"github.com/chartgenie/chartgenie/internal/analysis"
	"github.com/chartgenie/chartgenie/internal/tabular"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Chart & Schema Handlers ──────────────────────────────────
// ══════════════════════════════════════════════════════════════

type renderRequest struct {
	ChartSpec *models.ChartSpec `json:"chart_spec"`
	Rows      []models.Row      `json:"rows"`
}

// RenderChart handles POST /api/v1/charts/render and turns a chart
// specification plus rows into a render config.
func (h *Handlers) RenderChart(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.ChartSpec == nil || req.ChartSpec.Config == nil {
		respondError(w, http.StatusBadRequest, "chart_spec is required")
		return
	}
	respondJSON(w, http.StatusOK, h.Builder.Build(*req.ChartSpec, req.Rows))
}

type inferResponse struct {
	ColumnSchema       models.Schema `json:"column_schema"`
	PreviewData        []models.Row  `json:"preview_data"`
	RowCount           int           `json:"row_count"`
	SuggestedQuestions []string      `json:"suggested_questions"`
}

// InferSchema handles POST /api/v1/schema/infer with a raw CSV body. It
// runs the same classifier as the analysis job without storing anything.
func (h *Handlers) InferSchema(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	tbl, err := tabular.Parse(r.Body, tabular.Options{})
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid CSV: "+err.Error())
		return
	}

	s := h.Classifier.Infer(tbl.Header, tbl.Rows)
	preview := tbl.Rows
	if len(preview) > h.PreviewRows {
		preview = preview[:h.PreviewRows]
	}
	if preview == nil {
		preview = []models.Row{}
	}
	respondJSON(w, http.StatusOK, inferResponse{
		ColumnSchema:       s,
		PreviewData:        preview,
		RowCount:           len(tbl.Rows),
		SuggestedQuestions: analysis.TemplateQuestions(s),
	})
}

// ══════════════════════════════════════════════════════════════
// ── Model Router Handlers ────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListProviders handles GET /api/v1/models/providers
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	if h.Models == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"providers": []string{}, "drivers": []string{}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.Models.Providers(),
		"drivers":   h.Models.ListDrivers(),
	})
}

// ModelUsage handles GET /api/v1/models/usage
func (h *Handlers) ModelUsage(w http.ResponseWriter, r *http.Request) {
	if h.Models == nil {
		respondJSON(w, http.StatusOK, map[string]models.TokenUsage{})
		return
	}
	respondJSON(w, http.StatusOK, h.Models.Usage())
}
