package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/store"
)

const sessionColumns = `session_id, phone_number, level, organization, created_at, updated_at`

const turnColumns = `id, session_id, phone_number, service_code, input,
	level_before, level_after, outcome, terminal, duration_ms, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryGetOrCreateSession inserts the row if it is missing and then reads it
// back. Concurrent callers race on the insert; ON CONFLICT keeps it to one row.
func queryGetOrCreateSession(ctx context.Context, db executor, sessionID, phone string, now time.Time) (*model.DialSession, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ussd_sessions (session_id, phone_number, level, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (session_id) DO NOTHING`,
		sessionID, phone, int(model.LevelInitial), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	row := db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM ussd_sessions WHERE session_id = $1`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Purged between the two statements.
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func querySetLevel(ctx context.Context, db executor, sessionID string, level model.Level, now time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE ussd_sessions SET level = $2, updated_at = $3 WHERE session_id = $1`,
		sessionID, int(level), now,
	)
	if err != nil {
		return fmt.Errorf("update session level: %w", err)
	}
	return requireRow(res)
}

func querySetOrganization(ctx context.Context, db executor, sessionID, organization string, now time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE ussd_sessions SET organization = $2, updated_at = $3 WHERE session_id = $1`,
		sessionID, organization, now,
	)
	if err != nil {
		return fmt.Errorf("update session organization: %w", err)
	}
	return requireRow(res)
}

func queryPurgeSessions(ctx context.Context, db executor, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM ussd_sessions WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

func queryRecordTurn(ctx context.Context, db executor, t *model.TurnRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO ussd_turns (`+turnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID,
		t.SessionID,
		t.PhoneNumber,
		t.ServiceCode,
		t.Input,
		int(t.LevelBefore),
		int(t.LevelAfter),
		string(t.Outcome),
		t.Terminal,
		t.DurationMS,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func queryListTurns(ctx context.Context, db executor, since time.Time, limit int) ([]*model.TurnRecord, error) {
	q := `SELECT ` + turnColumns + ` FROM ussd_turns WHERE created_at >= $1 ORDER BY created_at DESC, id DESC`
	args := []any{since}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []*model.TurnRecord
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
