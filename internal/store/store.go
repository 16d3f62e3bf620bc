package store

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// ErrNotFound is returned when a session row does not exist.
var ErrNotFound = errors.New("not found")

// SessionStore persists dial sessions keyed by the gateway session ID.
type SessionStore interface {
	// GetOrCreate returns the session for sessionID, inserting one at
	// LevelInitial if none exists. Calling it twice never yields two rows.
	GetOrCreate(ctx context.Context, sessionID, phoneNumber string) (*model.DialSession, error)

	// SetLevel moves the session to level. Last write wins.
	SetLevel(ctx context.Context, sessionID string, level model.Level) error

	// SetOrganization records the organization greeted on the main menu.
	SetOrganization(ctx context.Context, sessionID, organization string) error

	Close() error
}

// TurnLog is an append-only audit log of handled turns.
type TurnLog interface {
	RecordTurn(ctx context.Context, turn *model.TurnRecord) error
	// ListTurns returns turns created at or after since, newest first.
	// A non-positive limit returns every matching turn.
	ListTurns(ctx context.Context, since time.Time, limit int) ([]*model.TurnRecord, error)
}

// Purger is implemented by stores whose rows do not expire on their own.
type Purger interface {
	// PurgeSessions deletes sessions not updated since before and returns
	// the number of rows removed.
	PurgeSessions(ctx context.Context, before time.Time) (int64, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	SessionStore
	TurnLog
}
