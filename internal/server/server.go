// Package server exposes the USSD engine over HTTP and serves gRPC health.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/store"
)

// DefaultTurnDeadline bounds a whole webhook turn.
const DefaultTurnDeadline = 5 * time.Second

// TurnHandler turns one gateway call into a rendered CON/END string.
// *ussd.Engine implements it.
type TurnHandler interface {
	Handle(ctx context.Context, turn model.InboundTurn) string
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusFunc returns a JSON-encodable snapshot of a background worker.
type StatusFunc func() any

// Options configures a Server.
type Options struct {
	Engine TurnHandler   // required
	Turns  store.TurnLog // optional; /v1/turns returns 503 without it
	Hub    *Hub          // optional; /v1/events/stream returns 503 without it
	Checks map[string]Pinger

	// Workers are reported in GET /v1/health but never degrade it.
	Workers map[string]StatusFunc
	Logger  *slog.Logger

	AuthToken    string
	TurnDeadline time.Duration
}

// Server holds the HTTP handlers.
type Server struct {
	engine       TurnHandler
	turns        store.TurnLog
	hub          *Hub
	checks       map[string]Pinger
	workers      map[string]StatusFunc
	logger       *slog.Logger
	authToken    string
	turnDeadline time.Duration
	now          func() time.Time
}

// New returns a Server for opts.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	s := &Server{
		engine:       opts.Engine,
		turns:        opts.Turns,
		hub:          opts.Hub,
		checks:       opts.Checks,
		workers:      opts.Workers,
		logger:       opts.Logger,
		authToken:    opts.AuthToken,
		turnDeadline: opts.TurnDeadline,
		now:          time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.turnDeadline <= 0 {
		s.turnDeadline = DefaultTurnDeadline
	}
	return s, nil
}

// Handler returns an http.Handler with all routes and middleware registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ussd/webhook", s.handleWebhook)
	mux.HandleFunc("POST /ussd", s.handleRegister)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/turns", s.handleListTurns)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)

	var h http.Handler = mux
	h = AuthMiddleware(s.authToken, h)
	h = LoggingMiddleware(s.logger, h)
	h = RequestIDMiddleware(h)
	return h
}
