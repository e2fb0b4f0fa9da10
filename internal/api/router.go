// Package api assembles the chartgenie HTTP API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chartgenie/chartgenie/internal/api/handlers"
	"github.com/chartgenie/chartgenie/internal/api/middleware"
	"github.com/chartgenie/chartgenie/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Owner-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.OwnerExtractor)
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(middleware.NewAPIKeyAuth(cfg.APIKeys).Middleware)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", h.ListDatasets)
			r.Post("/", h.UploadDataset)
			r.Route("/{datasetId}", func(r chi.Router) {
				r.Get("/", h.GetDataset)
				r.Delete("/", h.DeleteDataset)
				r.Post("/analyze", h.AnalyzeDataset)
				r.Get("/data", h.DatasetData)
				r.Get("/charts", h.DatasetCharts)
				r.Post("/query", h.QueryDataset)

				r.Route("/conversations", func(r chi.Router) {
					r.Get("/", h.ListConversations)
					r.Post("/", h.CreateConversation)
					r.Route("/{conversationId}", func(r chi.Router) {
						r.Get("/", h.GetConversation)
						r.Delete("/", h.DeleteConversation)
						r.Post("/messages", h.PostMessage)
					})
				})
			})
		})

		r.Post("/charts/render", h.RenderChart)
		r.Post("/schema/infer", h.InferSchema)

		r.Route("/models", func(r chi.Router) {
			r.Get("/providers", h.ListProviders)
			r.Get("/usage", h.ModelUsage)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "chartgenie",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "chartgenie",
		})
	}
}
