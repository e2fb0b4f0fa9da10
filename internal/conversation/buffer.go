package conversation

import (
	"sync"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// MaxTurns is how many turns a conversation keeps.
const MaxTurns = 20

// TurnBuffer is a thread-safe ring buffer holding the last N turns,
// oldest first.
type TurnBuffer struct {
	mu       sync.RWMutex
	turns    []models.Turn
	maxTurns int
}

// NewTurnBuffer creates a buffer that retains up to maxTurns turns.
func NewTurnBuffer(maxTurns int) *TurnBuffer {
	if maxTurns <= 0 {
		maxTurns = MaxTurns
	}
	return &TurnBuffer{
		turns:    make([]models.Turn, 0, maxTurns),
		maxTurns: maxTurns,
	}
}

// Append adds turns in order, evicting the oldest beyond capacity.
func (b *TurnBuffer) Append(turns ...models.Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turns...)
	if over := len(b.turns) - b.maxTurns; over > 0 {
		// Copy down so the backing array does not grow without bound.
		n := copy(b.turns, b.turns[over:])
		clear(b.turns[n:])
		b.turns = b.turns[:n]
	}
}

// Recent returns the last n turns; n <= 0 returns all of them.
func (b *TurnBuffer) Recent(n int) []models.Turn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := len(b.turns)
	if n <= 0 || n > total {
		n = total
	}
	out := make([]models.Turn, n)
	copy(out, b.turns[total-n:])
	return out
}

// Len returns the number of turns held.
func (b *TurnBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}
