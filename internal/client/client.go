// Package client provides a transport-agnostic interface for the schoolline
// service and an HTTP implementation that talks to its webhook and /v1 API.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// Client is the interface the sl CLI commands use to talk to a running
// server. It is implemented by HTTPClient.
type Client interface {
	// Dial sends one gateway turn and returns the raw CON/END reply.
	Dial(ctx context.Context, turn model.InboundTurn) (string, error)

	// Register validates a short code binding.
	Register(ctx context.Context, reg *model.Registration) (*RegisterResponse, error)

	// Health reports the server status and the result of each check. A
	// degraded server is not an error.
	Health(ctx context.Context) (*HealthResponse, error)

	// ListTurns returns audit records newest first.
	ListTurns(ctx context.Context, req *ListTurnsRequest) ([]*model.TurnRecord, error)

	// StreamEvents delivers engine events until ctx is done or the server
	// closes the stream.
	StreamEvents(ctx context.Context, req *StreamRequest, fn func(*StreamEvent) error) error

	Close() error
}

// RegisterResponse mirrors the POST /ussd envelope.
type RegisterResponse struct {
	Success bool                      `json:"success"`
	Message string                    `json:"message"`
	Data    *model.RegistrationResult `json:"data,omitempty"`
	Errors  []FieldError              `json:"errors,omitempty"`
}

// FieldError is one rejected registration field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// HealthResponse mirrors GET /v1/health.
type HealthResponse struct {
	Status  string                     `json:"status"`
	Checks  map[string]string          `json:"checks,omitempty"`
	Workers map[string]json.RawMessage `json:"workers,omitempty"`
}

// OK reports whether every check passed.
func (h *HealthResponse) OK() bool { return h.Status == "ok" }

// ListTurnsRequest filters GET /v1/turns. Zero values use server defaults.
type ListTurnsRequest struct {
	Limit int
	Since time.Time
}

// StreamRequest selects events from GET /v1/events/stream.
type StreamRequest struct {
	Topics      []string
	LastEventID string
}

// StreamEvent is one server-sent event.
type StreamEvent struct {
	ID    string
	Topic string
	Data  []byte
}
