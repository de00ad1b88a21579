package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docslice/internal/config"
	"github.com/dgallion1/docslice/internal/pipeline"
	"github.com/dgallion1/docslice/internal/search"
	"github.com/dgallion1/docslice/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docslice.
type Server struct {
	router       chi.Router
	store        *store.Store
	engine       *search.Engine
	orchestrator *pipeline.Orchestrator
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(st *store.Store, engine *search.Engine, orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		store:        st,
		engine:       engine,
		orchestrator: orch,
		log:          log,
		cfg:          cfg,
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

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleStoreDocument)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/tree", s.handleGetTree)
		r.Get("/api/documents/raw", s.handleRecompose)
		r.Delete("/api/documents", s.handleDeleteDocument)

		r.Get("/api/sections/{sectionID}", s.handleGetSection)
		r.Put("/api/sections/{sectionID}/embedding", s.handleSetEmbedding)

		r.Post("/api/search", s.handleSearch)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
