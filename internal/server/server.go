package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/michaelbrown/parley/internal/config"
	"github.com/michaelbrown/parley/internal/debate"
	"github.com/michaelbrown/parley/internal/storage"
)

// Server exposes the debate orchestrator and history store over HTTP. It is
// the machine-facing shell; terminal and web front-ends call into it.
type Server struct {
	cfg    *config.Config
	store  storage.Store
	panel  debate.Panel
	router chi.Router
	http   *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, store storage.Store, panel debate.Panel) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		panel:  panel,
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		// History
		r.Get("/sessions", s.handleSearchSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/snapshots", s.handleCreateSnapshot)
		r.Get("/sessions/{id}/snapshots", s.handleListSnapshots)
		r.Get("/sessions/{id}/snapshots/{snap}", s.handleGetSnapshot)

		// Debates
		r.Post("/debates", s.handleRunDebate)

		// WebSocket progress feed (no JSON content-type)
		r.Get("/debates/ws", s.handleDebateWS)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Info().Str("addr", addr).Msg("parley server starting")
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
