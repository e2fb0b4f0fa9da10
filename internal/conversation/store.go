// Package conversation keeps server-managed chat history per dataset and
// runs each new turn through the query router.
package conversation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// Conversation is one chat about one dataset.
type Conversation struct {
	ID        string
	DatasetID string
	OwnerID   string
	CreatedAt time.Time

	turns *TurnBuffer

	// turnMu makes each turn a single writer: a turn holds it from the
	// question until both turns are appended.
	turnMu sync.Mutex

	activeMu   sync.Mutex
	lastActive time.Time
}

// View is the JSON shape of a conversation.
type View struct {
	ID         string        `json:"id"`
	DatasetID  string        `json:"dataset_id"`
	OwnerID    string        `json:"owner_id"`
	Turns      []models.Turn `json:"turns"`
	CreatedAt  time.Time     `json:"created_at"`
	LastActive time.Time     `json:"last_active"`
}

// View returns a copy of the conversation's state.
func (c *Conversation) View() View {
	return View{
		ID:         c.ID,
		DatasetID:  c.DatasetID,
		OwnerID:    c.OwnerID,
		Turns:      c.turns.Recent(0),
		CreatedAt:  c.CreatedAt,
		LastActive: c.LastActive(),
	}
}

// Turns returns the held turns, oldest first.
func (c *Conversation) Turns() []models.Turn { return c.turns.Recent(0) }

// LastActive is when the conversation was created or last appended to.
func (c *Conversation) LastActive() time.Time {
	c.activeMu.Lock()
	defer c.activeMu.Unlock()
	return c.lastActive
}

func (c *Conversation) touch(t time.Time) {
	c.activeMu.Lock()
	c.lastActive = t
	c.activeMu.Unlock()
}

// MemoryStore is a thread-safe in-memory conversation registry.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // key: conversation ID
	maxTurns      int
	now           func() time.Time
}

// NewMemoryStore creates a store whose conversations keep maxTurns turns.
func NewMemoryStore(maxTurns int) *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*Conversation),
		maxTurns:      maxTurns,
		now:           time.Now,
	}
}

// Create starts an empty conversation about a dataset.
func (s *MemoryStore) Create(_ context.Context, datasetID, owner string) *Conversation {
	now := s.now().UTC()
	c := &Conversation{
		ID:         uuid.NewString(),
		DatasetID:  datasetID,
		OwnerID:    owner,
		CreatedAt:  now,
		turns:      NewTurnBuffer(s.maxTurns),
		lastActive: now,
	}
	s.mu.Lock()
	s.conversations[c.ID] = c
	s.mu.Unlock()
	return c
}

// Get returns the conversation or *store.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil, &store.ErrNotFound{Entity: "conversation", Key: id}
	}
	return c, nil
}

// ListByDataset returns a dataset's conversations, newest first.
func (s *MemoryStore) ListByDataset(_ context.Context, datasetID string) []*Conversation {
	s.mu.RLock()
	var out []*Conversation
	for _, c := range s.conversations {
		if c.DatasetID == datasetID {
			out = append(out, c)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Delete removes a conversation.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return &store.ErrNotFound{Entity: "conversation", Key: id}
	}
	delete(s.conversations, id)
	return nil
}

// DeleteByDataset drops every conversation about a dataset and returns
// how many were removed.
func (s *MemoryStore) DeleteByDataset(_ context.Context, datasetID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.conversations {
		if c.DatasetID == datasetID {
			delete(s.conversations, id)
			n++
		}
	}
	return n
}

// EvictIdle removes conversations idle for longer than ttl.
func (s *MemoryStore) EvictIdle(ttl time.Duration) int {
	cutoff := s.now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, c := range s.conversations {
		if c.LastActive().Before(cutoff) {
			delete(s.conversations, id)
			n++
		}
	}
	return n
}

// Len returns the number of live conversations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}
