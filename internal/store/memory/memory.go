// Package memory implements the store interfaces in process memory.
//
// Sessions live in an expirable LRU: rows not touched by any turn for longer
// than the TTL, or pushed out by newer sessions once the cache is full, are
// dropped. The turn log is a fixed-size ring of the most recent turns.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/store"
)

const (
	DefaultSessionCapacity = 10000
	DefaultSessionTTL      = 10 * time.Minute
	DefaultTurnCapacity    = 5000
)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	SessionCapacity int
	SessionTTL      time.Duration
	TurnCapacity    int
}

// Store is an in-memory store.Store.
type Store struct {
	mu       sync.Mutex // serializes read-modify-write on sessions
	sessions *expirable.LRU[string, model.DialSession]
	now      func() time.Time

	turnMu  sync.RWMutex
	turns   []*model.TurnRecord
	turnPos int
	turnLen int
}

var _ store.Store = (*Store)(nil)

// New creates an in-memory store.
func New(opts Options) *Store {
	if opts.SessionCapacity <= 0 {
		opts.SessionCapacity = DefaultSessionCapacity
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.TurnCapacity <= 0 {
		opts.TurnCapacity = DefaultTurnCapacity
	}
	return &Store{
		sessions: expirable.NewLRU[string, model.DialSession](opts.SessionCapacity, nil, opts.SessionTTL),
		now:      time.Now,
		turns:    make([]*model.TurnRecord, opts.TurnCapacity),
	}
}

func (s *Store) GetOrCreate(_ context.Context, sessionID, phoneNumber string) (*model.DialSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions.Get(sessionID); ok {
		// Get leaves the expiry alone; re-adding makes the TTL measure
		// idle time even on turns that change nothing.
		s.sessions.Add(sessionID, sess)
		return &sess, nil
	}
	sess := model.NewDialSession(sessionID, phoneNumber, s.now().UTC())
	s.sessions.Add(sessionID, *sess)
	return sess, nil
}

func (s *Store) SetLevel(_ context.Context, sessionID string, level model.Level) error {
	return s.update(sessionID, func(sess *model.DialSession) { sess.Level = level })
}

func (s *Store) SetOrganization(_ context.Context, sessionID, organization string) error {
	return s.update(sessionID, func(sess *model.DialSession) { sess.Organization = organization })
}

func (s *Store) update(sessionID string, fn func(*model.DialSession)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return store.ErrNotFound
	}
	fn(&sess)
	sess.UpdatedAt = s.now().UTC()
	// Add resets the expiry, so an active session stays alive.
	s.sessions.Add(sessionID, sess)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}

func (s *Store) RecordTurn(_ context.Context, turn *model.TurnRecord) error {
	cp := *turn
	s.turnMu.Lock()
	s.turns[s.turnPos] = &cp
	s.turnPos = (s.turnPos + 1) % len(s.turns)
	if s.turnLen < len(s.turns) {
		s.turnLen++
	}
	s.turnMu.Unlock()
	return nil
}

func (s *Store) ListTurns(_ context.Context, since time.Time, limit int) ([]*model.TurnRecord, error) {
	s.turnMu.RLock()
	defer s.turnMu.RUnlock()

	var out []*model.TurnRecord
	// Walk backwards from the newest entry.
	for i := 0; i < s.turnLen; i++ {
		idx := (s.turnPos - 1 - i + len(s.turns)) % len(s.turns)
		t := s.turns[idx]
		if t.CreatedAt.Before(since) {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	s.sessions.Purge()
	return nil
}
