package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/internal/api/middleware"
	"github.com/chartgenie/chartgenie/internal/conversation"
	"github.com/chartgenie/chartgenie/internal/query"
	"github.com/chartgenie/chartgenie/internal/store"
)

// ══════════════════════════════════════════════════════════════
// ── Query & Conversation Handlers ────────────────────────────
// ══════════════════════════════════════════════════════════════

type queryRequest struct {
	Prompt string `json:"prompt"`
}

// QueryDataset handles POST /api/v1/datasets/{datasetId}/query.
// The prompt may embed prior turns ahead of a final "Latest: " marker;
// nothing is stored server-side.
func (h *Handlers) QueryDataset(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	history, question := query.SplitPrompt(req.Prompt)
	if strings.TrimSpace(question) == "" {
		respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	s, rows, err := h.Analyzer.Load(r.Context(), ds.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	res, err := h.Query.Ask(r.Context(), query.Request{
		Schema:   s,
		Rows:     rows,
		Question: question,
		History:  history,
	})
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// CreateConversation handles POST /api/v1/datasets/{datasetId}/conversations
func (h *Handlers) CreateConversation(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	conv := h.Conversations.Store().Create(r.Context(), ds.ID, ds.OwnerID)
	log.Info().Str("conversation", conv.ID).Str("dataset", ds.ID).Msg("Conversation started")
	respondJSON(w, http.StatusCreated, conv.View())
}

// ListConversations handles GET /api/v1/datasets/{datasetId}/conversations
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return
	}
	convs := h.Conversations.Store().ListByDataset(r.Context(), ds.ID)
	views := make([]conversation.View, 0, len(convs))
	for _, c := range convs {
		views = append(views, c.View())
	}
	respondJSON(w, http.StatusOK, views)
}

// GetConversation handles GET .../conversations/{conversationId}
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.datasetConversation(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, conv.View())
}

// DeleteConversation handles DELETE .../conversations/{conversationId}
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.datasetConversation(w, r)
	if !ok {
		return
	}
	if err := h.Conversations.Store().Delete(r.Context(), conv.ID); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageRequest struct {
	Text string `json:"text"`
}

// PostMessage handles POST .../conversations/{conversationId}/messages
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	conv, ok := h.datasetConversation(w, r)
	if !ok {
		return
	}
	res, err := h.Conversations.Send(r.Context(), conv.ID, req.Text)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// datasetConversation resolves {conversationId} under an owned
// {datasetId}.
func (h *Handlers) datasetConversation(w http.ResponseWriter, r *http.Request) (*conversation.Conversation, bool) {
	ds, ok := h.ownedDataset(w, r)
	if !ok {
		return nil, false
	}
	id := chi.URLParam(r, "conversationId")
	conv, err := h.Conversations.Store().Get(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return nil, false
	}
	if conv.DatasetID != ds.ID || conv.OwnerID != middleware.GetOwner(r.Context()) {
		respondErr(w, r, &store.ErrNotFound{Entity: "conversation", Key: id})
		return nil, false
	}
	return conv, true
}
