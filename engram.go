// Package engram provides a minimal public API over the scoped agent
// memory store: append/upsert operations into each memory category, and
// the build_memory_packet composer that assembles a budgeted context
// packet for a scope.
//
// Most callers should construct an Engram with Open and use its methods;
// internal/storage, internal/composer and internal/dispatch remain
// available for advanced embedding.
package engram

import (
	"context"

	"github.com/chongliujia/engram/internal/composer"
	"github.com/chongliujia/engram/internal/dispatch"
	"github.com/chongliujia/engram/internal/policy"
	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/storage/factory"
	"github.com/chongliujia/engram/internal/types"
)

// Core types for working with scoped memory.
type (
	Scope             = scope.Scope
	Event             = types.Event
	WorkingState      = types.WorkingState
	WorkingStatePatch = types.WorkingStatePatch
	STM               = types.STM
	Fact              = types.Fact
	Episode           = types.Episode
	Procedure         = types.Procedure
	Insight           = types.Insight
	Value             = types.Value
	BuildRequest      = types.BuildRequest
	MemoryPacket      = types.MemoryPacket
	RetrievalPolicy   = types.RetrievalPolicy
	Budget            = types.Budget
)

// Backend kind constants for Config.Kind.
const (
	BackendSQLiteMemory = factory.KindSQLiteMemory
	BackendSQLiteFile   = factory.KindSQLiteFile
	BackendMySQL        = factory.KindMySQL
	BackendPostgres     = factory.KindPostgres
)

// Config selects and configures the backend.
type Config = factory.Config

// NewValue wraps an arbitrary JSON-marshalable value as an opaque Value;
// its bytes are carried through storage untouched.
func NewValue(v interface{}) (Value, error) { return types.NewValue(v) }

// Engram is a handle to one scoped memory store: a backend, a dispatcher
// bounding concurrent backend I/O, and a composer building packets.
type Engram struct {
	store    storage.Storage
	dispatch *dispatch.Dispatcher
	composer *composer.Composer
}

// Open constructs the backend named by cfg.Kind and wires it to a
// dispatcher (pool width cfg.PoolSize, default max(4, 2*cpu)) and a
// composer. When
// cfg.PolicyFile is set, its limits become the default retrieval policy
// for requests that carry none.
func Open(ctx context.Context, cfg Config) (*Engram, error) {
	store, err := factory.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	var dopts []dispatch.Option
	if cfg.OpTimeout != 0 {
		dopts = append(dopts, dispatch.WithOpTimeout(cfg.OpTimeout))
	}
	d := dispatch.New(cfg.PoolSize, cfg.LockCacheSize, dopts...)
	var opts []composer.Option
	if cfg.PolicyFile != "" {
		opts = append(opts, composer.WithDefaultPolicy(policy.Load(cfg.PolicyFile)))
	}
	return &Engram{store: store, dispatch: d, composer: composer.New(store, d, opts...)}, nil
}

// Close releases the backend's resources.
func (e *Engram) Close() error { return e.store.Close() }

// Handle is a completion handle returned by the asynchronous operation
// forms; Await blocks until the operation finishes or ctx is cancelled.
type Handle = dispatch.Handle

// AppendEvent appends an immutable event.
func (e *Engram) AppendEvent(ctx context.Context, ev Event) error {
	return e.dispatch.RunWrite(ctx, ev.Scope.Hash(), func(ctx context.Context) error {
		return e.store.AppendEvent(ctx, ev)
	})
}

// AppendEventAsync submits the append to the worker pool and returns
// immediately. Writes to the same scope are serialised in submission
// order.
func (e *Engram) AppendEventAsync(ctx context.Context, ev Event) *Handle {
	return e.dispatch.SubmitWrite(ctx, ev.Scope.Hash(), func(ctx context.Context) error {
		return e.store.AppendEvent(ctx, ev)
	})
}

// ListEvents returns events for sc, newest first, optionally bounded by tr.
func (e *Engram) ListEvents(ctx context.Context, sc Scope, tr *types.TimeRange, limit int) ([]Event, error) {
	var out []Event
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.ListEvents(ctx, sc, tr, limit)
		return err
	})
	return out, err
}

// GetWorkingState returns the scope's working state, or nil if unset.
func (e *Engram) GetWorkingState(ctx context.Context, sc Scope) (*WorkingState, error) {
	var out *WorkingState
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.GetWorkingState(ctx, sc)
		return err
	})
	return out, err
}

// PatchWorkingState deep-merges patch into the scope's working state.
func (e *Engram) PatchWorkingState(ctx context.Context, sc Scope, patch WorkingStatePatch) (WorkingState, error) {
	var out WorkingState
	err := e.dispatch.RunWrite(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.PatchWorkingState(ctx, sc, patch)
		return err
	})
	return out, err
}

// GetSTM returns the scope's short-term memory buffer, or nil if unset.
func (e *Engram) GetSTM(ctx context.Context, sc Scope) (*STM, error) {
	var out *STM
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.GetSTM(ctx, sc)
		return err
	})
	return out, err
}

// UpdateSTM whole-value replaces the scope's short-term memory buffer.
func (e *Engram) UpdateSTM(ctx context.Context, sc Scope, v Value) (STM, error) {
	var out STM
	err := e.dispatch.RunWrite(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.UpdateSTM(ctx, sc, v)
		return err
	})
	return out, err
}

// ListFacts returns facts for sc matching filter.
func (e *Engram) ListFacts(ctx context.Context, sc Scope, filter *types.FactFilter, limit int) ([]Fact, error) {
	var out []Fact
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.ListFacts(ctx, sc, filter, limit)
		return err
	})
	return out, err
}

// UpsertFact inserts or overwrites a fact by FactID.
func (e *Engram) UpsertFact(ctx context.Context, sc Scope, f Fact) (Fact, error) {
	var out Fact
	err := e.dispatch.RunWrite(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.UpsertFact(ctx, sc, f)
		return err
	})
	return out, err
}

// ListEpisodes returns episodes for sc matching filter, newest first.
func (e *Engram) ListEpisodes(ctx context.Context, sc Scope, filter *types.EpisodeFilter, limit int) ([]Episode, error) {
	var out []Episode
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.ListEpisodes(ctx, sc, filter, limit)
		return err
	})
	return out, err
}

// AppendEpisode inserts or replaces an episode by EpisodeID.
func (e *Engram) AppendEpisode(ctx context.Context, sc Scope, ep Episode) (Episode, error) {
	var out Episode
	err := e.dispatch.RunWrite(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.AppendEpisode(ctx, sc, ep)
		return err
	})
	return out, err
}

// ListProcedures returns procedures for sc, optionally filtered by taskType.
func (e *Engram) ListProcedures(ctx context.Context, sc Scope, taskType string, limit int) ([]Procedure, error) {
	var out []Procedure
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.ListProcedures(ctx, sc, taskType, limit)
		return err
	})
	return out, err
}

// UpsertProcedure inserts or replaces a procedure by ProcedureID.
func (e *Engram) UpsertProcedure(ctx context.Context, sc Scope, p Procedure) (Procedure, error) {
	var out Procedure
	err := e.dispatch.RunWrite(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.UpsertProcedure(ctx, sc, p)
		return err
	})
	return out, err
}

// ListInsights returns insights for sc, sorted by confidence then recency.
func (e *Engram) ListInsights(ctx context.Context, sc Scope, filter *types.InsightFilter, limit int) ([]Insight, error) {
	var out []Insight
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.ListInsights(ctx, sc, filter, limit)
		return err
	})
	return out, err
}

// AppendInsight inserts or replaces an insight by InsightID.
func (e *Engram) AppendInsight(ctx context.Context, sc Scope, in Insight) (Insight, error) {
	var out Insight
	err := e.dispatch.RunWrite(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.AppendInsight(ctx, sc, in)
		return err
	})
	return out, err
}

// ListContextBuilds returns the audit log of prior build_memory_packet
// calls for sc, newest first.
func (e *Engram) ListContextBuilds(ctx context.Context, sc Scope, limit int) ([]types.ContextBuild, error) {
	var out []types.ContextBuild
	err := e.dispatch.RunRead(ctx, sc.Hash(), func(ctx context.Context) error {
		var err error
		out, err = e.store.ListContextBuilds(ctx, sc, limit)
		return err
	})
	return out, err
}

// BuildMemoryPacket validates req, retrieves candidates, fits them under
// the budget, emits a packet, and (by default) persists a context-build
// audit record.
func (e *Engram) BuildMemoryPacket(ctx context.Context, req BuildRequest) (MemoryPacket, error) {
	return e.composer.Build(ctx, req)
}
