// Package contracts defines the service ports of the chartgenie control
// plane. Handlers, jobs and the CLI depend on these interfaces; the
// concrete implementations are wired in pkg/server.
package contracts

import (
	"context"
	"io"

	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/pkg/models"
)

// Store is a type alias for the internal Store interface, exposed so
// code outside this module can provide its own persistence.
type Store = store.Store

// ErrNotFound is a type alias for the internal ErrNotFound error.
type ErrNotFound = store.ErrNotFound

// ── Reasoning ───────────────────────────────────────────────

// Reasoner answers a completion request. Implementations must honour
// ctx cancellation and deadlines; callers bound every call with a
// timeout and treat any error as "reasoning unavailable".
// Implementation: internal/router.ModelRouter
type Reasoner interface {
	Complete(ctx context.Context, req models.CompletionRequest) (*models.Completion, error)
}

// ── Blob Storage ────────────────────────────────────────────

// BlobStore keeps the raw uploaded CSV bytes.
// Implementations: internal/storage.LocalStore, internal/storage.S3Store
type BlobStore interface {
	// Put stores r and returns the locator "<owner>/<unixmillis>-<filename>".
	Put(ctx context.Context, owner, filename string, r io.Reader) (string, error)

	// Get opens the object at locator. The caller closes the reader.
	Get(ctx context.Context, locator string) (io.ReadCloser, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, locator string) error

	// Kind names the backend ("local", "s3").
	Kind() string
}

// ── Notifications ───────────────────────────────────────────

// Notifier receives dataset lifecycle events. Delivery failures are the
// notifier's concern and never fail the analysis job.
// Implementation: internal/notify.Service
type Notifier interface {
	Notify(ctx context.Context, ev models.DatasetEvent)
}
