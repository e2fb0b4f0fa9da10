package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/pkg/models"
)

const saveDebounce = 500 * time.Millisecond

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Datasets map[string]*models.Dataset `json:"datasets"` // key: id
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu       sync.RWMutex
	datasets map[string]*models.Dataset // key: id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save loop to stop
}

// NewMemoryStore creates a new in-memory store. When dataDir is non-empty
// the records are persisted to dataDir/datasets.json and reloaded on start.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		datasets: make(map[string]*models.Dataset),
		saveCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}

	if dataDir != "" {
		m.snapshotPath = filepath.Join(dataDir, "datasets.json")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().
		Str("snapshot", m.snapshotPath).
		Int("datasets", len(m.datasets)).
		Msg("Memory store configured")

	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			select {
			case <-time.After(saveDebounce):
			case <-m.doneCh:
				return
			}
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	data, err := json.MarshalIndent(snapshot{Datasets: m.datasets}, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}
	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Datasets != nil {
		m.datasets = snap.Datasets
	}

	// A job interrupted by a restart never finishes; surface that.
	interrupted := 0
	for _, d := range m.datasets {
		if d.Status == models.DatasetPending || d.Status == models.DatasetAnalyzing {
			d.Status = models.DatasetError
			d.Error = "analysis interrupted by restart"
			interrupted++
		}
	}
	log.Info().
		Int("datasets", len(m.datasets)).
		Int("interrupted", interrupted).
		Str("path", m.snapshotPath).
		Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops the save loop and forces a final snapshot write.
// Safe to call multiple times.
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}

	if m.snapshotPath != "" {
		log.Info().Msg("Flushing final snapshot before shutdown...")
		m.saveSnapshot()
	}
	log.Info().Msg("Memory store closed")
	return nil
}

func (m *MemoryStore) Migrate(_ context.Context) error { return nil }

// ── Dataset Store ───────────────────────────────────────────

func (m *MemoryStore) ListDatasets(_ context.Context, owner string, filter ListFilter) ([]models.Dataset, error) {
	m.mu.RLock()
	result := make([]models.Dataset, 0, len(m.datasets))
	for _, d := range m.datasets {
		if d.OwnerID == owner || owner == "" {
			result = append(result, *cloneDataset(d))
		}
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return filter.apply(result), nil
}

func (m *MemoryStore) GetDataset(_ context.Context, id string) (*models.Dataset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.datasets[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "dataset", Key: id}
	}
	return cloneDataset(d), nil
}

func (m *MemoryStore) CreateDataset(_ context.Context, ds *models.Dataset) error {
	c := cloneDataset(ds)
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	m.mu.Lock()
	m.datasets[c.ID] = c
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateDataset(_ context.Context, ds *models.Dataset) error {
	m.mu.Lock()
	existing, ok := m.datasets[ds.ID]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "dataset", Key: ds.ID}
	}
	c := cloneDataset(ds)
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	m.datasets[c.ID] = c
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeleteDataset(_ context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.datasets[id]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "dataset", Key: id}
	}
	delete(m.datasets, id)
	m.mu.Unlock()
	m.requestSave()
	return nil
}
