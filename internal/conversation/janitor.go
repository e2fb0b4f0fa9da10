package conversation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Janitor periodically evicts conversations idle longer than a TTL.
type Janitor struct {
	store    *MemoryStore
	interval time.Duration
	ttl      time.Duration
}

// NewJanitor creates a janitor sweeping every interval.
func NewJanitor(s *MemoryStore, interval, ttl time.Duration) *Janitor {
	if interval < time.Second {
		interval = time.Minute
	}
	return &Janitor{store: s, interval: interval, ttl: ttl}
}

// Start runs until ctx is cancelled. A zero TTL disables eviction.
func (j *Janitor) Start(ctx context.Context) {
	if j.ttl <= 0 {
		log.Info().Msg("Conversation janitor disabled")
		return
	}
	log.Info().
		Dur("interval", j.interval).
		Dur("idle_ttl", j.ttl).
		Msg("Conversation janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Conversation janitor stopped")
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce performs one sweep and returns how many were evicted.
func (j *Janitor) RunOnce() int {
	n := j.store.EvictIdle(j.ttl)
	if n > 0 {
		log.Info().Int("evicted", n).Int("remaining", j.store.Len()).Msg("Evicted idle conversations")
	}
	return n
}
