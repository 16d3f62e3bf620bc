package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// Event topic constants
const (
	TopicSessionStarted     = "ussd.session.started"
	TopicTurnCompleted      = "ussd.turn.completed"
	TopicCallerUnregistered = "ussd.caller.unregistered"
	TopicCollaboratorFailed = "ussd.collaborator.failed"

	// TopicAll matches every topic above.
	TopicAll = "ussd.>"
)

// Event types

// SessionStarted is emitted when a caller passes the identity gate.
type SessionStarted struct {
	SessionID    string    `json:"session_id"`
	PhoneNumber  string    `json:"phone_number"`
	AccountName  string    `json:"account_name"`
	Category     string    `json:"category,omitempty"`
	Organization string    `json:"organization"`
	At           time.Time `json:"at"`
}

// TurnCompleted is emitted after every handled turn.
type TurnCompleted struct {
	Turn *model.TurnRecord `json:"turn"`
}

type CallerUnregistered struct {
	SessionID   string    `json:"session_id"`
	PhoneNumber string    `json:"phone_number"`
	At          time.Time `json:"at"`
}

// CollaboratorFailed is emitted when a provider call errors, panics or
// times out.
type CollaboratorFailed struct {
	SessionID string      `json:"session_id"`
	Feature   string      `json:"feature"`
	Level     model.Level `json:"level"`
	Error     string      `json:"error"`
	At        time.Time   `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Decode unmarshals a delivered message into the event type of its topic.
func Decode(msg Message) (any, error) {
	var v any
	switch msg.Topic {
	case TopicSessionStarted:
		v = &SessionStarted{}
	case TopicTurnCompleted:
		v = &TurnCompleted{}
	case TopicCallerUnregistered:
		v = &CallerUnregistered{}
	case TopicCollaboratorFailed:
		v = &CollaboratorFailed{}
	default:
		return nil, fmt.Errorf("unknown topic %q", msg.Topic)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", msg.Topic, err)
	}
	return v, nil
}
