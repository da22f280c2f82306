package engram_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chongliujia/engram"
)

func testScope(suffix string) engram.Scope {
	return engram.Scope{TenantID: "t" + suffix, UserID: "u" + suffix, AgentID: "a" + suffix, SessionID: "s" + suffix, RunID: "r" + suffix}
}

func TestOpenAndCloseMemoryBackend(t *testing.T) {
	e, err := engram.Open(context.Background(), engram.Config{Kind: engram.BackendSQLiteMemory})
	require.NoError(t, err)
	require.NoError(t, e.Close())
}

func TestAppendEventThenBuildMemoryPacketIncludesIt(t *testing.T) {
	ctx := context.Background()
	e, err := engram.Open(ctx, engram.Config{Kind: engram.BackendSQLiteMemory})
	require.NoError(t, err)
	defer e.Close()

	sc := testScope("1")
	payload, err := engram.NewValue(map[string]string{"text": "hello"})
	require.NoError(t, err)

	err = e.AppendEvent(ctx, engram.Event{Scope: sc, EventID: "ev-1", Kind: "message", Payload: payload})
	require.NoError(t, err)

	packet, err := e.BuildMemoryPacket(ctx, engram.BuildRequest{Scope: sc, Purpose: "planner"})
	require.NoError(t, err)
	require.Len(t, packet.Events, 1)
	require.Equal(t, "ev-1", packet.Events[0].EventID)
}

func TestUpsertFactIsIdempotentByFactID(t *testing.T) {
	ctx := context.Background()
	e, err := engram.Open(ctx, engram.Config{Kind: engram.BackendSQLiteMemory})
	require.NoError(t, err)
	defer e.Close()

	sc := testScope("2")
	v, err := engram.NewValue("v1")
	require.NoError(t, err)
	_, err = e.UpsertFact(ctx, sc, engram.Fact{FactID: "f1", FactKey: "k", Value: v, Confidence: 0.5})
	require.NoError(t, err)

	v2, err := engram.NewValue("v2")
	require.NoError(t, err)
	_, err = e.UpsertFact(ctx, sc, engram.Fact{FactID: "f1", FactKey: "k", Value: v2, Confidence: 0.9})
	require.NoError(t, err)

	facts, err := e.ListFacts(ctx, sc, nil, 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, 0.9, facts[0].Confidence)
}

func TestConcurrentAppendEventBurstViaDispatcher(t *testing.T) {
	ctx := context.Background()
	e, err := engram.Open(ctx, engram.Config{Kind: engram.BackendSQLiteMemory})
	require.NoError(t, err)
	defer e.Close()

	sc := testScope("3")
	const n = 10
	handles := make([]*engram.Handle, n)
	for i := 0; i < n; i++ {
		handles[i] = e.AppendEventAsync(ctx, engram.Event{
			Scope: sc, EventID: fmt.Sprintf("ev-%d", i), Kind: "message", Payload: engram.Value{}, TsMs: int64(i + 1),
		})
	}
	for _, h := range handles {
		require.NoError(t, h.Await(ctx))
	}

	events, err := e.ListEvents(ctx, sc, nil, 0)
	require.NoError(t, err)
	require.Len(t, events, n)
	seen := map[string]bool{}
	for _, ev := range events {
		require.False(t, seen[ev.EventID])
		seen[ev.EventID] = true
	}
}
