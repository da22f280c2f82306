package sqlitestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testScope(suffix string) scope.Scope {
	return scope.Scope{TenantID: "demo", UserID: "alice", AgentID: "helper", SessionID: "s1", RunID: "r1" + suffix}
}

func TestScopeIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := testScope("a")
	b := testScope("b")

	require.NoError(t, s.AppendEvent(ctx, types.Event{EventID: "e1", Scope: a, Kind: types.EventMessage, Payload: types.Null}))

	got, err := s.ListEvents(ctx, b, nil, 0)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAppendOnlyEventsAndConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := testScope("")

	e := types.Event{EventID: "e1", Scope: sc, Kind: types.EventMessage, Payload: types.Null, TsMs: 100}
	require.NoError(t, s.AppendEvent(ctx, e))

	events, err := s.ListEvents(ctx, sc, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	err = s.AppendEvent(ctx, e)
	require.Error(t, err)
	require.Equal(t, storage.KindConflict, storage.ErrorKind(err))
}

func TestUpsertFactIdempotence(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := testScope("")

	val, _ := types.NewValue("v1")
	f := types.Fact{FactID: "f1", FactKey: "k", Value: val, Confidence: 0.9, Status: types.FactActive}

	f1, err := s.UpsertFact(ctx, sc, f)
	require.NoError(t, err)

	f2, err := s.UpsertFact(ctx, sc, f)
	require.NoError(t, err)
	require.GreaterOrEqual(t, f2.UpdatedMs, f1.UpdatedMs)

	facts, err := s.ListFacts(ctx, sc, nil, 0)
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

func TestRoundTripOpacity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := testScope("")

	payload, err := types.NewValue(map[string]interface{}{"z": 1, "a": []interface{}{1, 2, 3}})
	require.NoError(t, err)

	require.NoError(t, s.AppendEvent(ctx, types.Event{EventID: "e1", Scope: sc, Kind: types.EventCustom, Payload: payload, TsMs: 1}))

	events, err := s.ListEvents(ctx, sc, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.JSONEq(t, string(payload.Bytes()), string(events[0].Payload.Bytes()))
}

func TestWorkingStatePatchMerge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := testScope("")

	goal := "trip"
	_, err := s.PatchWorkingState(ctx, sc, types.WorkingStatePatch{Goal: &goal, Plan: []string{"a", "b", "c"}})
	require.NoError(t, err)

	decisions := []string{"picked hotel"}
	plan2 := []string{"[done] a", "b", "c"}
	ws, err := s.PatchWorkingState(ctx, sc, types.WorkingStatePatch{Plan: plan2, Decisions: decisions})
	require.NoError(t, err)

	require.Equal(t, "trip", ws.Goal)
	require.Equal(t, plan2, ws.Plan)
	require.Equal(t, decisions, ws.Decisions)
}

func TestPatchWorkingStateConflictOnStaleVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := testScope("")

	v1 := int64(5)
	_, err := s.PatchWorkingState(ctx, sc, types.WorkingStatePatch{StateVersion: &v1})
	require.NoError(t, err)

	stale := int64(2)
	_, err = s.PatchWorkingState(ctx, sc, types.WorkingStatePatch{StateVersion: &stale})
	require.Error(t, err)
	require.Equal(t, storage.KindConflict, storage.ErrorKind(err))

	// Equal is accepted (idempotent retry), not a Conflict.
	same := int64(5)
	_, err = s.PatchWorkingState(ctx, sc, types.WorkingStatePatch{StateVersion: &same})
	require.NoError(t, err)
}

func TestLimitPushdownOnFacts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := testScope("")

	for i := 0; i < 50; i++ {
		v, _ := types.NewValue(i)
		_, err := s.UpsertFact(ctx, sc, types.Fact{FactID: string(rune('a' + i)), FactKey: "k", Value: v, Confidence: 0.5, Status: types.FactActive})
		require.NoError(t, err)
	}

	facts, err := s.ListFacts(ctx, sc, nil, 5)
	require.NoError(t, err)
	require.Len(t, facts, 5)
}

func TestConcurrentAppendEventDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sc := testScope("")

	const n = 10
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errCh <- s.AppendEvent(ctx, types.Event{EventID: string(rune('a' + i)), Scope: sc, Kind: types.EventMessage, Payload: types.Null, TsMs: int64(i)})
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errCh)
	}

	events, err := s.ListEvents(ctx, sc, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, n)
}
