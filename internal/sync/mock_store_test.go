package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

// mockTurnLog is a minimal in-memory turn log for sync tests.
type mockTurnLog struct {
	mu    sync.Mutex
	turns []*model.TurnRecord
	since []time.Time
	err   error
}

func (m *mockTurnLog) RecordTurn(_ context.Context, t *model.TurnRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return nil
}

// ListTurns returns matching turns newest first, as the real stores do.
func (m *mockTurnLog) ListTurns(_ context.Context, since time.Time, limit int) ([]*model.TurnRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = append(m.since, since)
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.TurnRecord
	for i := len(m.turns) - 1; i >= 0; i-- {
		t := m.turns[i]
		if t.CreatedAt.Before(since) {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var errListFailed = errors.New("list failed")

func turnAt(id string, at time.Time, outcome model.Outcome) *model.TurnRecord {
	return &model.TurnRecord{
		ID:          id,
		SessionID:   "ATUid_" + id,
		PhoneNumber: "+254724027217",
		Input:       "1",
		LevelBefore: model.LevelMainMenu,
		LevelAfter:  model.LevelMainMenu,
		Outcome:     outcome,
		CreatedAt:   at,
	}
}
