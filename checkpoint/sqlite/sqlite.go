// Package sqlite provides a durable core.CheckpointStore backed by SQLite
// (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/firegraph/checkpoint"
	"github.com/hupe1980/firegraph/core"
	"github.com/hupe1980/firegraph/logging"
)

// Options configures a Store.
type Options struct {
	// MaxRetries is the number of attempts for a write hitting SQLITE_BUSY.
	MaxRetries int
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration
	Logger    logging.Logger
}

// Store persists checkpoints in a single table keyed by thread id.
type Store struct {
	db     *sql.DB
	opts   Options
	logger logging.Logger
}

const schema = `
PRAGMA busy_timeout = 5000;
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id TEXT PRIMARY KEY,
	state_json TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_updated ON checkpoints(updated_at);
`

// Open creates (or opens) the database at path and prepares the schema.
// The special path ":memory:" opens a private in-memory database.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes writers.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, opts: opts, logger: logging.ForComponent(opts.Logger, "checkpoint.sqlite")}, nil
}

// Load returns the checkpoint of threadID or a fresh state when none exists.
func (s *Store) Load(ctx context.Context, threadID string) (*core.State, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state_json FROM checkpoints WHERE thread_id = ?`, threadID)

	var raw string

	err := row.Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewState(threadID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", threadID, err)
	}

	return checkpoint.Decode(threadID, []byte(raw))
}

// Save upserts the snapshot of state. Writes that hit a locked database are
// retried with exponential backoff.
func (s *Store) Save(ctx context.Context, threadID string, state *core.State) error {
	raw, err := checkpoint.Encode(state)
	if err != nil {
		return err
	}

	for i := 0; ; i++ {
		err = s.saveOnce(ctx, threadID, string(raw))
		if err == nil {
			return nil
		}

		if !isBusy(err) || i >= s.opts.MaxRetries-1 {
			return fmt.Errorf("save checkpoint %s after %d attempts: %w", threadID, i+1, err)
		}

		delay := s.opts.BaseDelay * time.Duration(1<<i)
		s.logger.Debug("checkpoint.save.busy", "thread_id", threadID, "attempt", i+1, "delay", delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("save checkpoint %s: %w", threadID, ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (s *Store) saveOnce(ctx context.Context, threadID, raw string) error {
	now := time.Now().Unix()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (thread_id, state_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`,
		threadID, raw, now, now,
	)

	return err
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
