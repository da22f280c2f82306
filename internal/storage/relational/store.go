// Package relational implements the optional remote backend:
// MySQL-compatible and Postgres-compatible variants sharing one
// database/sql code path, differing only in dialect (placeholder style,
// upsert syntax, type mapping). Transient connection failures are retried
// with exponential backoff by every operation except the single-row reads
// GetWorkingState and GetSTM, which do not retry; everything else
// surfaces immediately.
package relational

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chongliujia/engram/internal/storage"
)

// Dialect selects the remote SQL variant.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// Config holds remote-backend configuration: dialect, DSN, and pool
// bounds.
type Config struct {
	Dialect     Dialect
	DSN         string
	Database    string
	MinConns    int // caller-configurable pool minimum
	MaxConns    int // caller-configurable pool maximum
	MaxSTMBytes int // aggregate STM value cap; 0 = unbounded
	Logger      *slog.Logger
	Clock       func() int64
}

// Store is a remote relational Storage implementation. One connection
// pool is held for the backend's lifetime; each operation acquires,
// executes, releases.
type Store struct {
	db          *sql.DB
	dialect     Dialect
	log         *slog.Logger
	clock       func() int64
	maxSTMBytes int
}

func defaultClock() int64 { return time.Now().UnixMilli() }

// Open establishes the connection pool and performs idempotent schema
// creation.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := "mysql"
	if cfg.Dialect == DialectPostgres {
		driver = "pgx"
	}
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, storage.Wrap("relational.Open", storage.KindBackendUnavailable, err)
	}
	minConns := cfg.MinConns
	if minConns < 1 {
		minConns = 1
	}
	maxConns := cfg.MaxConns
	if maxConns < minConns {
		maxConns = minConns
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = defaultClock
	}

	s := &Store{db: db, dialect: cfg.Dialect, log: log, clock: clock, maxSTMBytes: cfg.MaxSTMBytes}

	if err := s.withRetry(ctx, func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, storage.Wrap("relational.Open", storage.KindBackendUnavailable, err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := mysqlSchemaDDL
	if s.dialect == DialectPostgres {
		ddl = postgresSchemaDDL
	}
	for _, stmt := range strings.Split(ddl, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := s.withRetry(ctx, func() error {
			_, err := s.db.ExecContext(ctx, stmt)
			return err
		}); err != nil {
			return storage.Wrap("relational.migrate", storage.KindCorruption, err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) now() int64 { return s.clock() }

// newRetryBackoff covers pool connections going stale, brief network
// blips, and server restarts.
func newRetryBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
		backoff.WithMaxInterval(500*time.Millisecond),
		backoff.WithMaxElapsedTime(5*time.Second),
	)
	return backoff.WithContext(bo, ctx)
}

func (s *Store) withRetry(ctx context.Context, fn func() error) error {
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if isRetryableError(err) {
			return err
		}
		return backoff.Permanent(err)
	}, newRetryBackoff(ctx))
}

// isRetryableError: connection refused/reset, driver.ErrBadConn, broken
// pipe.
func isRetryableError(err error) bool {
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "broken pipe", "bad connection", "driver: bad connection", "i/o timeout"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func isUniqueViolation(dialect Dialect, err error) bool {
	msg := err.Error()
	switch dialect {
	case DialectPostgres:
		return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
	default:
		return strings.Contains(msg, "Error 1062") || strings.Contains(msg, "Duplicate entry")
	}
}
