package postgres

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanSession scans a row in sessionColumns order. Rows carrying a level the
// menu does not know are rejected.
func scanSession(row scannable) (*model.DialSession, error) {
	var (
		s     model.DialSession
		level int
	)
	if err := row.Scan(&s.SessionID, &s.PhoneNumber, &level, &s.Organization, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	l, err := model.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.SessionID, err)
	}
	s.Level = l
	return &s, nil
}

// scanTurn scans a row in turnColumns order.
func scanTurn(row scannable) (*model.TurnRecord, error) {
	var (
		t                  model.TurnRecord
		before, after      int
		outcome            string
		phone, code, input sql.NullString
	)
	err := row.Scan(
		&t.ID,
		&t.SessionID,
		&phone,
		&code,
		&input,
		&before,
		&after,
		&outcome,
		&t.Terminal,
		&t.DurationMS,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.PhoneNumber = phone.String
	t.ServiceCode = code.String
	t.Input = input.String
	// Turn rows are history; keep unknown levels as-is rather than failing.
	t.LevelBefore = model.Level(before)
	t.LevelAfter = model.Level(after)
	t.Outcome = model.Outcome(outcome)
	return &t, nil
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
