// Package postgres implements the store interfaces and the live school
// directory backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ store.Store  = (*PostgresStore)(nil)
	_ store.Purger = (*PostgresStore)(nil)
)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db, now: time.Now}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Directory returns the school directory sharing this store's connection.
func (s *PostgresStore) Directory() *Directory {
	return &Directory{db: s.db, now: s.now}
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, sessionID, phoneNumber string) (*model.DialSession, error) {
	return queryGetOrCreateSession(ctx, s.db, sessionID, phoneNumber, s.now().UTC())
}

func (s *PostgresStore) SetLevel(ctx context.Context, sessionID string, level model.Level) error {
	return querySetLevel(ctx, s.db, sessionID, level, s.now().UTC())
}

func (s *PostgresStore) SetOrganization(ctx context.Context, sessionID, organization string) error {
	return querySetOrganization(ctx, s.db, sessionID, organization, s.now().UTC())
}

func (s *PostgresStore) PurgeSessions(ctx context.Context, before time.Time) (int64, error) {
	return queryPurgeSessions(ctx, s.db, before)
}

func (s *PostgresStore) RecordTurn(ctx context.Context, turn *model.TurnRecord) error {
	return queryRecordTurn(ctx, s.db, turn)
}

func (s *PostgresStore) ListTurns(ctx context.Context, since time.Time, limit int) ([]*model.TurnRecord, error) {
	return queryListTurns(ctx, s.db, since, limit)
}
