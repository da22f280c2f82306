// Package factory constructs a storage.Storage instance from
// configuration inputs at store construction: backend kind, path (file
// backends), dsn+database (remote), pool bounds.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/storage/relational"
	"github.com/chongliujia/engram/internal/storage/sqlitestore"
)

// Kind selects the backend implementation.
type Kind string

const (
	KindSQLiteMemory Kind = "sqlite-memory"
	KindSQLiteFile   Kind = "sqlite-file"
	KindMySQL        Kind = "mysql"
	KindPostgres     Kind = "postgres"
)

// Config is the union of every backend's construction inputs. Only the
// fields relevant to Kind are read.
type Config struct {
	Kind Kind

	// sqlite-file
	Path string

	// MaxSTMBytes caps the aggregate size of a scope's STM value; 0 means
	// unbounded.
	MaxSTMBytes int

	// mysql / postgres
	DSN      string
	Database string
	MinConns int
	MaxConns int

	// PolicyFile optionally points at a YAML file holding default
	// retrieval limits; consumed by the top-level Open, not by New.
	PolicyFile string

	// Dispatcher knobs, also consumed by the top-level Open: worker pool
	// width (0 = max(4, 2*cpu)), per-operation deadline (0 = the
	// dispatcher default, negative = no deadline), and the LRU cap on the
	// per-scope lock map (0 = default).
	PoolSize      int64
	OpTimeout     time.Duration
	LockCacheSize int

	Logger *slog.Logger
	Clock  func() int64
}

// New builds the backend named by cfg.Kind. No environment variables are
// consulted; the caller supplies every input explicitly.
func New(ctx context.Context, cfg Config) (storage.Storage, error) {
	const op = "factory.New"
	switch cfg.Kind {
	case KindSQLiteMemory:
		opts := sqliteOptions(cfg)
		return sqlitestore.OpenMemory(opts...)
	case KindSQLiteFile:
		if cfg.Path == "" {
			return nil, storage.New(op, storage.KindInvalidArgument, "path is required for sqlite-file")
		}
		opts := sqliteOptions(cfg)
		return sqlitestore.OpenFile(cfg.Path, opts...)
	case KindMySQL:
		return relational.Open(ctx, relational.Config{
			Dialect: relational.DialectMySQL, DSN: cfg.DSN, Database: cfg.Database,
			MinConns: cfg.MinConns, MaxConns: cfg.MaxConns, MaxSTMBytes: cfg.MaxSTMBytes,
			Logger: cfg.Logger, Clock: cfg.Clock,
		})
	case KindPostgres:
		return relational.Open(ctx, relational.Config{
			Dialect: relational.DialectPostgres, DSN: cfg.DSN, Database: cfg.Database,
			MinConns: cfg.MinConns, MaxConns: cfg.MaxConns, MaxSTMBytes: cfg.MaxSTMBytes,
			Logger: cfg.Logger, Clock: cfg.Clock,
		})
	default:
		return nil, storage.New(op, storage.KindInvalidArgument, fmt.Sprintf("unknown backend kind %q", cfg.Kind))
	}
}

func sqliteOptions(cfg Config) []sqlitestore.Option {
	var opts []sqlitestore.Option
	if cfg.Logger != nil {
		opts = append(opts, sqlitestore.WithLogger(cfg.Logger))
	}
	if cfg.Clock != nil {
		opts = append(opts, sqlitestore.WithClock(cfg.Clock))
	}
	if cfg.MaxSTMBytes > 0 {
		opts = append(opts, sqlitestore.WithMaxSTMBytes(cfg.MaxSTMBytes))
	}
	return opts
}
