// Package server provides the HTTP API: the chat endpoint, session reset,
// the facility directory, and health probes.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/otel"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/pipeline"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/resources"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
)

const defaultTimeout = 90 * time.Second

// ReadyCheck probes one collaborator for the /ready endpoint.
type ReadyCheck struct {
	Name  string
	Check func(r *http.Request) bool
}

// Server holds all dependencies for the HTTP API.
type Server struct {
	router      *chi.Mux
	runner      *pipeline.Runner
	sessions    *session.Store
	directory   *resources.Store
	apiKeys     []string
	corsOrigins []string
	readyChecks []ReadyCheck
	limiter     *rateLimiter
	startTime   time.Time
}

// Option configures the Server.
type Option func(*Server)

// WithDirectory sets the curated facility directory (optional).
func WithDirectory(d *resources.Store) Option {
	return func(s *Server) { s.directory = d }
}

// WithAPIKeys enables API-key auth on the chat routes. Empty means open.
func WithAPIKeys(keys []string) Option {
	return func(s *Server) { s.apiKeys = keys }
}

// WithCORSOrigins sets allowed CORS origins (e.g. ["*"] for any).
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithReadyCheck registers a collaborator probe for /ready.
func WithReadyCheck(name string, check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.readyChecks = append(s.readyChecks, ReadyCheck{Name: name, Check: check})
	}
}

// WithRateLimits sets the global and per-client requests-per-minute limits.
// Zero disables the corresponding limit.
func WithRateLimits(globalRPM, perClientRPM int) Option {
	return func(s *Server) { s.limiter = newRateLimiter(globalRPM, perClientRPM) }
}

// NewServer builds a Server with the required dependencies and optional Option(s).
func NewServer(runner *pipeline.Runner, sessions *session.Store, opts ...Option) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		runner:      runner,
		sessions:    sessions,
		corsOrigins: []string{"*"},
		startTime:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the configured http.Handler.
func (s *Server) Routes() http.Handler {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(otel.MiddlewareWithStatus())
	r.Use(CORSMiddleware(s.corsOrigins))

	// Unauthenticated probes
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.apiKeys))
		r.Use(RateLimitMiddleware(s.limiter))
		r.Use(middleware.Timeout(defaultTimeout))

		r.Post("/v1/chat", s.handleChat)
		r.Post("/v1/sessions/{id}/reset", s.handleSessionReset)
		r.Get("/v1/resources", s.handleResources)
	})

	return r
}
