// Package redis implements the store interfaces on Redis.
//
// Each session is a hash whose key expires after the session TTL, so idle
// dials disappear without a sweeper. The turn log is a capped stream.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/store"
)

const (
	DefaultPrefix       = "sl:"
	DefaultSessionTTL   = 10 * time.Minute
	DefaultTurnCapacity = 5000

	fieldPhone     = "phone_number"
	fieldLevel     = "level"
	fieldOrg       = "organization"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
	fieldTurn      = "turn"
)

// setField updates one field of an existing session and refreshes its TTL.
// It returns 0 when the session does not exist.
var setField = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

// Options configures a Store. Zero values select the defaults.
type Options struct {
	Prefix       string
	SessionTTL   time.Duration
	TurnCapacity int64
}

// Store is a Redis-backed store.Store.
type Store struct {
	client *goredis.Client
	opts   Options
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string, opts Options) (*Store, error) {
	ropts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client. The store takes ownership of it.
func NewWithClient(client *goredis.Client, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.TurnCapacity <= 0 {
		opts.TurnCapacity = DefaultTurnCapacity
	}
	return &Store{client: client, opts: opts, now: time.Now}
}

func (s *Store) sessionKey(id string) string { return s.opts.Prefix + "session:" + id }

func (s *Store) turnsKey() string { return s.opts.Prefix + "turns" }

// GetOrCreate writes each field with HSETNX inside one MULTI, so an existing
// session is left untouched and a new one appears complete.
func (s *Store) GetOrCreate(ctx context.Context, sessionID, phoneNumber string) (*model.DialSession, error) {
	key := s.sessionKey(sessionID)
	now := formatTime(s.now())

	var get *goredis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSetNX(ctx, key, fieldPhone, phoneNumber)
		p.HSetNX(ctx, key, fieldLevel, int(model.LevelInitial))
		p.HSetNX(ctx, key, fieldOrg, "")
		p.HSetNX(ctx, key, fieldCreatedAt, now)
		p.HSetNX(ctx, key, fieldUpdatedAt, now)
		p.PExpire(ctx, key, s.opts.SessionTTL)
		get = p.HGetAll(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get or create session: %w", err)
	}
	return decodeSession(sessionID, get.Val())
}

func (s *Store) SetLevel(ctx context.Context, sessionID string, level model.Level) error {
	return s.set(ctx, sessionID, fieldLevel, strconv.Itoa(int(level)))
}

func (s *Store) SetOrganization(ctx context.Context, sessionID, organization string) error {
	return s.set(ctx, sessionID, fieldOrg, organization)
}

func (s *Store) set(ctx context.Context, sessionID, field, value string) error {
	n, err := setField.Run(ctx, s.client, []string{s.sessionKey(sessionID)},
		field, value, formatTime(s.now()), s.opts.SessionTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("update session %s: %w", field, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) RecordTurn(ctx context.Context, turn *model.TurnRecord) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}
	err = s.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: s.turnsKey(),
		MaxLen: s.opts.TurnCapacity,
		Values: map[string]any{fieldTurn: data},
	}).Err()
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// ListTurns reads the stream newest first and stops at the first turn older
// than since.
func (s *Store) ListTurns(ctx context.Context, since time.Time, limit int) ([]*model.TurnRecord, error) {
	msgs, err := s.client.XRevRange(ctx, s.turnsKey(), "+", "-").Result()
	if err != nil {
		return nil, fmt.Errorf("read turns: %w", err)
	}
	var out []*model.TurnRecord
	for _, m := range msgs {
		raw, ok := m.Values[fieldTurn].(string)
		if !ok {
			continue
		}
		var t model.TurnRecord
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode turn %s: %w", m.ID, err)
		}
		if t.CreatedAt.Before(since) {
			break
		}
		out = append(out, &t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Ping reports whether the Redis server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func decodeSession(id string, h map[string]string) (*model.DialSession, error) {
	if len(h) == 0 {
		return nil, store.ErrNotFound
	}
	lv, err := strconv.Atoi(h[fieldLevel])
	if err != nil {
		return nil, fmt.Errorf("session %s: level %q: %w", id, h[fieldLevel], err)
	}
	level, err := model.ParseLevel(lv)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	created, err1 := parseTime(h[fieldCreatedAt])
	updated, err2 := parseTime(h[fieldUpdatedAt])
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	return &model.DialSession{
		SessionID:    id,
		PhoneNumber:  h[fieldPhone],
		Level:        level,
		Organization: h[fieldOrg],
		CreatedAt:    created,
		UpdatedAt:    updated,
	}, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }
