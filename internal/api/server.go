// Package api is the HTTP surface of docstruct: parse job submission, live
// job events, stored documents, and service stats.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/llm"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/dgallion1/docstruct/internal/sse"
)

// Server is the HTTP API server for docstruct.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Orchestrator
	hub      *sse.Hub
	model    string
	stats    *llm.LLMStats
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      config.Config
}

// Deps are the components the handlers serve.
type Deps struct {
	Pipeline *pipeline.Orchestrator
	Hub      *sse.Hub
	Model    string
	Stats    *llm.LLMStats
	Metrics  *metrics.Metrics
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg config.Config, deps Deps, log *slog.Logger) *Server {
	s := &Server{
		pipeline: deps.Pipeline,
		hub:      deps.Hub,
		model:    deps.Model,
		stats:    deps.Stats,
		metrics:  deps.Metrics,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/parse", s.handleParse)
		r.Post("/api/parse/batch", s.handleBatchParse)
		r.Get("/api/parse/{jobID}", s.handleParseStatus)
		r.Get("/api/parse/{jobID}/events", s.handleParseEvents)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.pipeline.QueueDepth(),
	})
}
