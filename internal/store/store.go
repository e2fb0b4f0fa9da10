// Package store provides dataset persistence for the chartgenie control
// plane. The in-memory store serves local dev and tests; the PostgreSQL
// store is used when a database URL is configured.
package store

import (
	"context"
	"time"

	"github.com/chartgenie/chartgenie/pkg/models"
)

// Store is the primary storage interface. Handler and job code depends
// on this interface only.
type Store interface {
	DatasetStore

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate runs schema migrations.
	Migrate(ctx context.Context) error
}

// ── Dataset Store ───────────────────────────────────────────

// DatasetStore persists dataset records. Records are keyed by id and
// listed per owner, newest first.
type DatasetStore interface {
	ListDatasets(ctx context.Context, owner string, filter ListFilter) ([]models.Dataset, error)
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	CreateDataset(ctx context.Context, ds *models.Dataset) error
	UpdateDataset(ctx context.Context, ds *models.Dataset) error
	DeleteDataset(ctx context.Context, id string) error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ── Filter helpers ──────────────────────────────────────────

// ListFilter provides common pagination/filter options.
// Zero Limit means no limit.
type ListFilter struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// apply pages an already sorted slice.
func (f ListFilter) apply(in []models.Dataset) []models.Dataset {
	if f.Since != nil {
		kept := in[:0]
		for _, d := range in {
			if !d.CreatedAt.Before(*f.Since) {
				kept = append(kept, d)
			}
		}
		in = kept
	}
	if f.Offset > 0 {
		if f.Offset >= len(in) {
			return nil
		}
		in = in[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(in) {
		in = in[:f.Limit]
	}
	return in
}

// cloneDataset returns a deep copy so callers never share slices or the
// schema index with the stored record.
func cloneDataset(d *models.Dataset) *models.Dataset {
	c := *d
	c.ColumnSchema = models.NewSchema(d.ColumnSchema.Columns()...)
	if d.PreviewData != nil {
		c.PreviewData = make([]models.Row, len(d.PreviewData))
		for i, r := range d.PreviewData {
			row := make(models.Row, len(r))
			for k, v := range r {
				row[k] = v
			}
			c.PreviewData[i] = row
		}
	}
	if d.SuggestedQuestions != nil {
		c.SuggestedQuestions = append([]string(nil), d.SuggestedQuestions...)
	}
	return &c
}
