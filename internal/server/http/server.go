// Package httpserver provides the HTTP REST API for the narrative service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/poteroapp/potero/internal/database"
	"github.com/poteroapp/potero/internal/jobs"
	"github.com/poteroapp/potero/internal/narrative"
	"github.com/poteroapp/potero/internal/usagelog"
)

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	narratives *narrative.Service
	queue      *jobs.Queue
	usage      *usagelog.Logger
	db         *database.DB
	defaults   GenerationDefaults
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// GenerationDefaults are the styles and languages used when a generation
// request does not name any.
type GenerationDefaults struct {
	Styles          []string
	Languages       []string
	ExplainConcepts bool
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	narratives *narrative.Service,
	queue *jobs.Queue,
	usage *usagelog.Logger,
	db *database.DB,
	defaults GenerationDefaults,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		narratives: narratives,
		queue:      queue,
		usage:      usage,
		db:         db,
		defaults:   defaults,
		logger:     logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/papers/{paperID}/narratives", func(r chi.Router) {
			r.Post("/", s.generateNarratives)
			r.Get("/", s.listNarratives)
			r.Delete("/", s.deleteNarratives)
			r.Post("/regenerate", s.regenerateNarratives)
			r.Get("/{style}/{language}", s.getNarrative)
		})

		r.Route("/narratives", func(r chi.Router) {
			r.Get("/styles", s.listStyles)
			r.Get("/languages", s.listLanguages)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.listJobs)
			r.Get("/active", s.listActiveJobs)
			r.Get("/stream", s.streamJobs)
			r.Delete("/completed", s.clearCompletedJobs)
			r.Get("/{jobID}", s.getJob)
			r.Delete("/{jobID}", s.cancelJob)
		})

		r.Route("/llm", func(r chi.Router) {
			r.Get("/logs", s.listUsageLogs)
			r.Delete("/logs", s.clearUsageLogs)
			r.Get("/stats", s.usageStats)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routing handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "unreachable",
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "healthy"})
}

// readinessHandler reports whether the server can accept generation work.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": "unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}
