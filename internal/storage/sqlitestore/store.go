// Package sqlitestore implements the default embedded backend: a single
// SQLite file, or a pure in-memory database sharing the identical schema,
// via the pure-Go modernc.org/sqlite driver (no CGO).
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "modernc.org/sqlite"

	"github.com/chongliujia/engram/internal/storage"
)

// Store is a SQLite-backed Storage implementation. One Store owns one
// *sql.DB; no state is shared across Store instances.
type Store struct {
	db          *sql.DB
	log         *slog.Logger
	clock       func() int64
	maxSTMBytes int
}

// Option configures a Store at construction.
type Option func(*Store)

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the wall-clock millisecond source (tests only).
func WithClock(f func() int64) Option {
	return func(s *Store) { s.clock = f }
}

// WithMaxSTMBytes caps the aggregate size of an STM value in bytes; 0
// (the default) means unbounded.
func WithMaxSTMBytes(n int) Option {
	return func(s *Store) { s.maxSTMBytes = n }
}

func defaultClock() int64 { return time.Now().UnixMilli() }

// OpenFile opens (creating if absent) a single-file SQLite database at path.
func OpenFile(path string, opts ...Option) (*Store, error) {
	return open(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path), opts...)
}

// OpenMemory opens a private, process-local in-memory database. Each call
// returns an independent database (modernc's ":memory:" DSN is per-connection,
// so the pool is capped at one connection to keep a single logical database).
func OpenMemory(opts ...Option) (*Store, error) {
	s, err := open("file::memory:?_pragma=busy_timeout(5000)", opts...)
	if err != nil {
		return nil, err
	}
	s.db.SetMaxOpenConns(1)
	return s, nil
}

func open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storage.Wrap("sqlitestore.Open", storage.KindBackendUnavailable, err)
	}
	s := &Store{db: db, log: slog.Default(), clock: defaultClock}
	for _, o := range opts {
		o(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate performs idempotent schema creation at startup.
func (s *Store) migrate() error {
	for _, stmt := range strings.Split(schemaDDL, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return storage.Wrap("sqlitestore.migrate", storage.KindCorruption, err)
		}
	}
	return nil
}

// Close releases the underlying file handle / connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) now() int64 { return s.clock() }

// retryBusy runs fn, retrying on SQLITE_BUSY/SQLITE_LOCKED with
// exponential backoff. SQLite has one writer at a time, so transient lock
// contention is expected under concurrent scopes.
func (s *Store) retryBusy(ctx context.Context, fn func() error) error {
	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(10*time.Millisecond),
		backoff.WithMaxInterval(200*time.Millisecond),
		backoff.WithMaxElapsedTime(2*time.Second),
	), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isBusyErr(err) {
			return err
		}
		return backoff.Permanent(err)
	}, bo)
}

func isBusyErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.retryBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return storage.Wrap("sqlitestore.withTx", storage.KindBackendUnavailable, err)
		}
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r)
			}
		}()
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return storage.Wrap("sqlitestore.withTx", storage.KindBackendUnavailable, err)
		}
		return nil
	})
}
