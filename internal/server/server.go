// Package server exposes the crosslink HTTP API: run a cycle, inspect
// reports and rules, validate the rule file, and mark match outcomes.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/strandworks/crosslink/internal/cycle"
	"github.com/strandworks/crosslink/internal/store"
)

// Server is the crosslink HTTP API server.
type Server struct {
	db      *store.DB
	runner  *cycle.Runner
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server with the given store, runner, and version string.
func New(db *store.DB, runner *cycle.Runner, version string) *Server {
	s := &Server{
		db:      db,
		runner:  runner,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/cycles/run", s.handleRunCycle)
		r.Get("/cycles", s.handleListReports)
		r.Get("/cycles/latest", s.handleLatestReport)

		r.Get("/rules", s.handleListRules)
		r.Post("/rules/validate", s.handleValidateRules)

		r.Get("/outcomes", s.handleListOutcomes)
		r.Post("/outcomes/mark", s.handleMarkOutcome)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
