// Package server provides the public entry point for initializing the
// chartgenie API server.
//
// Usage:
//
//	srv, err := server.New(ctx, "")
//	srv.Start(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/chartgenie/chartgenie/internal/analysis"
	"github.com/chartgenie/chartgenie/internal/api"
	"github.com/chartgenie/chartgenie/internal/api/handlers"
	"github.com/chartgenie/chartgenie/internal/autochart"
	"github.com/chartgenie/chartgenie/internal/config"
	"github.com/chartgenie/chartgenie/internal/conversation"
	"github.com/chartgenie/chartgenie/internal/notify"
	"github.com/chartgenie/chartgenie/internal/query"
	modelrouter "github.com/chartgenie/chartgenie/internal/router"
	"github.com/chartgenie/chartgenie/internal/schema"
	"github.com/chartgenie/chartgenie/internal/storage"
	"github.com/chartgenie/chartgenie/internal/store"
	"github.com/chartgenie/chartgenie/internal/telemetry"
	"github.com/chartgenie/chartgenie/pkg/contracts"
)

// Server holds the initialized chartgenie components.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	Store         store.Store
	Blobs         contracts.BlobStore
	Analyzer      *analysis.Analyzer
	Conversations *conversation.Service
	Models        *modelrouter.ModelRouter

	Config *config.Config
	Port   int

	janitor  *conversation.Janitor
	shutdown func(context.Context) error
}

// New loads configuration from cfgFile (may be empty) and builds the server.
func New(ctx context.Context, cfgFile string) (*Server, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes every component from an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	blobs, err := OpenBlobStore(ctx, cfg)
	if err != nil {
		dataStore.Close()
		return nil, err
	}

	reasoner, mr := NewReasoner(cfg)
	classifier := schema.NewClassifier(cfg.Schema)
	an := analysis.NewAnalyzer(dataStore, blobs, reasoner, classifier, cfg.Analysis)
	if len(cfg.Notify.Webhooks) > 0 {
		an.SetNotifier(notify.NewService(cfg.Notify.Webhooks, nil))
		log.Info().Int("webhooks", len(cfg.Notify.Webhooks)).Msg("🔔 Dataset webhooks enabled")
	}
	q := query.NewRouter(reasoner, cfg.Query)

	convStore := conversation.NewMemoryStore(cfg.Conversations.MaxTurns)
	conv := conversation.NewService(convStore, q, an)
	log.Info().Int("max_turns", cfg.Conversations.MaxTurns).Msg("✅ Conversation service initialized")

	h := handlers.New(dataStore, blobs, an, q, conv, mr)
	h.Selector = autochart.NewSelector(cfg.Charts)
	h.Classifier = classifier
	h.PreviewRows = cfg.Analysis.PreviewRows
	if cfg.MaxUploadBytes > 0 {
		h.MaxUploadBytes = cfg.MaxUploadBytes
	}

	return &Server{
		Handler:       api.NewRouter(cfg, h),
		Store:         dataStore,
		Blobs:         blobs,
		Analyzer:      an,
		Conversations: conv,
		Models:        mr,
		Config:        cfg,
		Port:          cfg.Port,
		janitor:       conversation.NewJanitor(convStore, cfg.Conversations.JanitorInterval, cfg.Conversations.IdleTTL),
		shutdown:      shutdown,
	}, nil
}

// Start launches background work. It returns immediately; everything
// stops when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go s.janitor.Start(ctx)
}

// Close waits for in-flight analysis, then releases the store and
// flushes telemetry.
func (s *Server) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.Analyzer.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("Analysis jobs still running at shutdown")
	}
	return errors.Join(s.Store.Close(), s.shutdown(ctx))
}

// ── Component constructors ──────────────────────────────────

// OpenStore returns the Postgres store when a database URL is configured
// and the snapshotting memory store otherwise.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		log.Info().Msg("✅ PostgreSQL store initialized")
		return pg, nil
	}
	ms := store.NewMemoryStore(cfg.DataDir)
	log.Info().Str("snapshot", filepath.Join(cfg.DataDir, "datasets.json")).Msg("✅ In-memory store initialized")
	return ms, nil
}

// OpenBlobStore returns the configured raw upload backend.
func OpenBlobStore(ctx context.Context, cfg *config.Config) (contracts.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		s3s, err := storage.NewS3Store(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("open s3 storage: %w", err)
		}
		log.Info().Str("bucket", cfg.Storage.S3.Bucket).Msg("✅ S3 blob storage initialized")
		return s3s, nil
	default:
		ls := storage.NewLocalStore(cfg.Storage.LocalPath, cfg.Storage.Compress)
		if err := ls.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		log.Info().Str("path", cfg.Storage.LocalPath).Bool("zstd", cfg.Storage.Compress).Msg("✅ Local blob storage initialized")
		return ls, nil
	}
}

// NewReasoner builds the model router. With no providers it returns a
// nil Reasoner so every consumer runs on its rule-based path.
func NewReasoner(cfg *config.Config) (contracts.Reasoner, *modelrouter.ModelRouter) {
	if len(cfg.Providers) == 0 {
		log.Info().Msg("🔕 No reasoning providers configured, using rule engine only")
		return nil, nil
	}
	mr := modelrouter.NewModelRouter(cfg.Providers, nil)
	log.Info().Strs("providers", mr.Providers()).Msg("✅ Model Router initialized")
	return mr, mr
}
