// Package mockagent is a development stand-in for the agent service. It
// replays scripted analyze/implement event streams over SSE so the CLI
// and workflow can be exercised without a real agent.
package mockagent

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server serves the mock agent API.
type Server struct {
	Router *chi.Mux
	Port   int
	logger *slog.Logger

	// Delay between streamed events, so clients see real pacing.
	eventDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	RepoURL     string
	IssueNumber int
	IssueTitle  string
	Summary     string
	Status      string
	CreatedAt   time.Time
}

// Option configures the server.
type Option func(*Server)

// WithEventDelay sets the pause between streamed events. Zero means no
// pacing, which is what tests want.
func WithEventDelay(d time.Duration) Option {
	return func(s *Server) {
		s.eventDelay = d
	}
}

// New builds the mock server and its routes.
func New(port int, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		Port:       port,
		logger:     logger,
		eventDelay: 150 * time.Millisecond,
		sessions:   make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "mockagent")
	})

	r.Post("/agent/analyze", s.handleAnalyze)
	r.Post("/agent/implement", s.handleImplement)
	r.Get("/agent/health", s.handleHealth)
	r.Get("/agent/sessions", s.handleListSessions)
	r.Get("/agent/sessions/{sessionID}", s.handleGetSession)
	r.Delete("/agent/sessions/{sessionID}", s.handleDeleteSession)

	s.Router = r
	return s
}

// Start blocks serving HTTP on the configured port.
func (s *Server) Start() error {
	s.logger.Info("starting mock agent", slog.Int("port", s.Port))
	return http.ListenAndServe(fmt.Sprintf(":%d", s.Port), s.Router)
}
