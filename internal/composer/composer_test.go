package composer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/chongliujia/engram/internal/dispatch"
	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage/sqlitestore"
	"github.com/chongliujia/engram/internal/types"
)

func testScope(suffix string) scope.Scope {
	return scope.Scope{TenantID: "t" + suffix, UserID: "u" + suffix, AgentID: "a" + suffix, SessionID: "s" + suffix, RunID: "r" + suffix}
}

func TestBuildRejectsInvalidScope(t *testing.T) {
	store, err := sqlitestore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	c := New(store, dispatch.New(4, 0))
	_, err = c.Build(context.Background(), types.BuildRequest{Scope: scope.Scope{}})
	require.Error(t, err)
}

func TestBuildIncludesWorkingStateAndSTMAlways(t *testing.T) {
	store, err := sqlitestore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	sc := testScope("1")

	goal := "ship the feature"
	_, err = store.PatchWorkingState(context.Background(), sc, types.WorkingStatePatch{Goal: &goal})
	require.NoError(t, err)
	v, err := types.NewValue(map[string]string{"note": "hi"})
	require.NoError(t, err)
	_, err = store.UpdateSTM(context.Background(), sc, v)
	require.NoError(t, err)

	c := New(store, dispatch.New(4, 0))
	packet, err := c.Build(context.Background(), types.BuildRequest{Scope: sc, Purpose: types.PurposePlanner})
	require.NoError(t, err)
	require.NotNil(t, packet.ShortTerm.WorkingState)
	require.Equal(t, goal, packet.ShortTerm.WorkingState.Goal)
	require.NotNil(t, packet.ShortTerm.STM)
	require.Equal(t, types.SchemaVersion, packet.Meta.SchemaVersion)
}

func TestBuildPersistsContextBuildByDefault(t *testing.T) {
	store, err := sqlitestore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	sc := testScope("2")

	c := New(store, dispatch.New(4, 0))
	_, err = c.Build(context.Background(), types.BuildRequest{Scope: sc, Purpose: types.PurposeResponder})
	require.NoError(t, err)

	builds, err := store.ListContextBuilds(context.Background(), sc, 10)
	require.NoError(t, err)
	require.Len(t, builds, 1)
}

func TestBuildTwiceSecondRunSeesFirstInContextBuilds(t *testing.T) {
	store, err := sqlitestore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	sc := testScope("3")

	c := New(store, dispatch.New(4, 0))
	_, err = c.Build(context.Background(), types.BuildRequest{Scope: sc, Purpose: types.PurposePlanner})
	require.NoError(t, err)
	_, err = c.Build(context.Background(), types.BuildRequest{Scope: sc, Purpose: types.PurposePlanner})
	require.NoError(t, err)

	builds, err := store.ListContextBuilds(context.Background(), sc, 10)
	require.NoError(t, err)
	require.Len(t, builds, 2)
}

func TestBuildRespectsMaxTokensBudget(t *testing.T) {
	store, err := sqlitestore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	sc := testScope("4")

	for i := 0; i < 200; i++ {
		v, verr := types.NewValue(map[string]string{"k": "some fairly long fact value to spend tokens on"})
		require.NoError(t, verr)
		_, err = store.UpsertFact(context.Background(), sc, types.Fact{
			FactID: "fact-" + string(rune('A'+i%26)) + string(rune('0'+i/26)), FactKey: "k", Value: v, Confidence: 1.0,
		})
		require.NoError(t, err)
	}

	maxTok := 300
	c := New(store, dispatch.New(4, 0))
	packet, err := c.Build(context.Background(), types.BuildRequest{
		Scope: sc, Purpose: types.PurposePlanner,
		Budget: &types.Budget{MaxTokens: &maxTok},
	})
	require.NoError(t, err)
	require.LessOrEqual(t, packet.BudgetReport.UsedTokensEst, maxTok)
	require.NotEmpty(t, packet.BudgetReport.Omissions)
}

func TestBuildKeepsHighConfidenceFactsUnderTightBudget(t *testing.T) {
	store, err := sqlitestore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()
	sc := testScope("5")

	for i := 0; i < 4; i++ {
		v, verr := types.NewValue("key")
		require.NoError(t, verr)
		_, err = store.UpsertFact(context.Background(), sc, types.Fact{
			FactID: fmt.Sprintf("key-%d", i), FactKey: "key", Value: v, Confidence: 1.0,
		})
		require.NoError(t, err)
	}
	for i := 0; i < 196; i++ {
		v, verr := types.NewValue("noise noise noise noise noise")
		require.NoError(t, verr)
		_, err = store.UpsertFact(context.Background(), sc, types.Fact{
			FactID: fmt.Sprintf("noise-%03d", i), FactKey: "noise", Value: v, Confidence: 0.5,
		})
		require.NoError(t, err)
	}

	maxTok := 300
	c := New(store, dispatch.New(4, 0))
	packet, err := c.Build(context.Background(), types.BuildRequest{
		Scope: sc, Purpose: types.PurposeResponder,
		Policy: &types.RetrievalPolicy{MaxFacts: 200},
		Budget: &types.Budget{MaxTokens: &maxTok},
	})
	require.NoError(t, err)

	// Confidence 1.0 sorts first, so all four key facts fit before any noise.
	got := map[string]bool{}
	for _, f := range packet.LongTerm.Facts {
		got[f.FactID] = true
	}
	for i := 0; i < 4; i++ {
		require.True(t, got[fmt.Sprintf("key-%d", i)])
	}
	require.LessOrEqual(t, packet.BudgetReport.UsedTokensEst, maxTok)
	require.NotEmpty(t, packet.BudgetReport.Omissions)
}

func TestBuildCountMetricIncrements(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	store, err := sqlitestore.OpenMemory()
	require.NoError(t, err)
	defer store.Close()

	c := New(store, dispatch.New(4, 0))
	_, err = c.Build(context.Background(), types.BuildRequest{Scope: testScope("6"), Purpose: types.PurposePlanner})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "engram.composer.build_count" {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	require.GreaterOrEqual(t, total, int64(1))
}
