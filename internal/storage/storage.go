// Package storage defines the capability interface every backend
// implements and the shared error taxonomy.
package storage

import (
	"context"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/types"
)

// Storage is the uniform capability set the composer and retrieval layer
// depend on. Every operation is synchronous/blocking; concurrency is
// imposed above by internal/dispatch. No backend shares mutable state
// with another instance.
type Storage interface {
	// AppendEvent inserts an event; fails with Conflict if (scope, event_id)
	// already exists.
	AppendEvent(ctx context.Context, e types.Event) error
	// ListEvents returns events newest-first. limit, if >0, is pushed down
	// to the backend query.
	ListEvents(ctx context.Context, s scope.Scope, tr *types.TimeRange, limit int) ([]types.Event, error)

	// GetWorkingState returns nil, nil if no working state exists yet.
	GetWorkingState(ctx context.Context, s scope.Scope) (*types.WorkingState, error)
	// PatchWorkingState atomically read-merge-writes. Fails with Conflict
	// if patch.StateVersion is set and less than the stored version.
	PatchWorkingState(ctx context.Context, s scope.Scope, patch types.WorkingStatePatch) (types.WorkingState, error)

	// GetSTM returns nil, nil if no STM exists yet.
	GetSTM(ctx context.Context, s scope.Scope) (*types.STM, error)
	// UpdateSTM whole-value replaces the STM.
	UpdateSTM(ctx context.Context, s scope.Scope, v types.Value) (types.STM, error)

	// ListFacts applies filter (nil = no filter beyond default status=active)
	// and pushes limit down when >0.
	ListFacts(ctx context.Context, s scope.Scope, filter *types.FactFilter, limit int) ([]types.Fact, error)
	// UpsertFact inserts or replaces by FactID; bumps UpdatedMs.
	UpsertFact(ctx context.Context, s scope.Scope, f types.Fact) (types.Fact, error)

	ListEpisodes(ctx context.Context, s scope.Scope, filter *types.EpisodeFilter, limit int) ([]types.Episode, error)
	AppendEpisode(ctx context.Context, s scope.Scope, e types.Episode) (types.Episode, error)

	ListProcedures(ctx context.Context, s scope.Scope, taskType string, limit int) ([]types.Procedure, error)
	UpsertProcedure(ctx context.Context, s scope.Scope, p types.Procedure) (types.Procedure, error)

	ListInsights(ctx context.Context, s scope.Scope, filter *types.InsightFilter, limit int) ([]types.Insight, error)
	AppendInsight(ctx context.Context, s scope.Scope, i types.Insight) (types.Insight, error)

	WriteContextBuild(ctx context.Context, cb types.ContextBuild) error
	ListContextBuilds(ctx context.Context, s scope.Scope, limit int) ([]types.ContextBuild, error)

	// Close releases backend resources (pool/file handle).
	Close() error
}
