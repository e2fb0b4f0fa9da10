package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/internal/query"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// HistoryTurns is how many prior turns go into each question's context.
const HistoryTurns = 6

// friendlyFailure is the Genie turn stored when a turn fails for reasons
// that are not the user's fault.
const friendlyFailure = "Sorry, I couldn't answer that right now. Please try again in a moment."

// ErrEmptyMessage rejects a turn with no text.
var ErrEmptyMessage = errors.New("message text is required")

// Loader returns the typed schema and rows of a ready dataset.
type Loader interface {
	Load(ctx context.Context, datasetID string) (models.Schema, []models.Row, error)
}

// Asker answers one conversational turn.
type Asker interface {
	Ask(ctx context.Context, req query.Request) (*models.QueryResult, error)
}

// Service runs turns of server-managed conversations.
type Service struct {
	store  *MemoryStore
	asker  Asker
	loader Loader
	now    func() time.Time
}

// NewService wires a conversation store to the query router and the
// dataset loader.
func NewService(s *MemoryStore, asker Asker, loader Loader) *Service {
	return &Service{store: s, asker: asker, loader: loader, now: time.Now}
}

// Store returns the underlying conversation store.
func (s *Service) Store() *MemoryStore { return s.store }

// Send asks text in the conversation and appends the user turn and the
// Genie turn together. A cancelled ctx appends nothing.
func (s *Service) Send(ctx context.Context, conversationID, text string) (*models.QueryResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	conv, err := s.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	conv.turnMu.Lock()
	defer conv.turnMu.Unlock()

	schema, rows, err := s.loader.Load(ctx, conv.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", conv.DatasetID, err)
	}

	res, err := s.asker.Ask(ctx, query.Request{
		Schema:   schema,
		Rows:     rows,
		Question: text,
		History:  query.FormatHistory(conv.turns.Recent(HistoryTurns), HistoryTurns),
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	now := s.now().UTC()
	user := models.Turn{Text: text, IsUser: true, CreatedAt: now}
	if err != nil {
		log.Error().Err(err).Str("conversation", conv.ID).Msg("Conversation turn failed")
		res = &models.QueryResult{Type: models.ResultText, Insight: friendlyFailure, UsedFallback: true}
		conv.turns.Append(user, models.Turn{Text: friendlyFailure, Error: true, CreatedAt: now})
		conv.touch(now)
		return res, nil
	}

	genie := models.Turn{
		Text:      res.Insight,
		ChartSpec: res.ChartSpec,
		ChartData: res.ChartData,
		Error:     res.Insight == query.MapUnavailable,
		CreatedAt: now,
	}
	conv.turns.Append(user, genie)
	conv.touch(now)
	return res, nil
}
