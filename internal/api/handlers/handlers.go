// Package handlers implements the HTTP handlers for the chartgenie API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/internal/analysis"
	"github.com/chartgenie/chartgenie/internal/autochart"
	"github.com/chartgenie/chartgenie/internal/chartconfig"
	"github.com/chartgenie/chartgenie/internal/conversation"
	"github.com/chartgenie/chartgenie/internal/query"
	"github.com/chartgenie/chartgenie/internal/router"
	"github.com/chartgenie/chartgenie/internal/schema"
	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/pkg/contracts"
)

// DefaultMaxUploadBytes caps a multipart upload.
const DefaultMaxUploadBytes = 50 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Store         store.Store
	Blobs         contracts.BlobStore
	Analyzer      *analysis.Analyzer
	Query         *query.Router
	Conversations *conversation.Service
	Models        *router.ModelRouter // nil when no providers are configured
	Selector      *autochart.Selector
	Builder       *chartconfig.Builder
	Classifier    *schema.Classifier

	MaxUploadBytes int64
	PreviewRows    int
}

// New creates a Handlers instance with default chart and schema helpers.
func New(s store.Store, blobs contracts.BlobStore, an *analysis.Analyzer, q *query.Router, conv *conversation.Service, mr *router.ModelRouter) *Handlers {
	return &Handlers{
		Store:          s,
		Blobs:          blobs,
		Analyzer:       an,
		Query:          q,
		Conversations:  conv,
		Models:         mr,
		Selector:       autochart.NewSelector(autochart.DefaultOptions()),
		Builder:        chartconfig.NewBuilder(chartconfig.CoralReef(), chartconfig.DefaultFormatter()),
		Classifier:     schema.Default,
		MaxUploadBytes: DefaultMaxUploadBytes,
		PreviewRows:    analysis.DefaultOptions().PreviewRows,
	}
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondErr maps a domain error to its HTTP status.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var nf *store.ErrNotFound
	switch {
	case errors.As(err, &nf):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analysis.ErrNotReady):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		w.WriteHeader(499)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
