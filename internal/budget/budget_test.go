package budget

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chongliujia/engram/internal/retrieval"
	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/types"
)

func TestEstimateFactorIsExact(t *testing.T) {
	require.Equal(t, 0, estimateBytes(0))
	require.Equal(t, 1, estimateBytes(1))
	require.Equal(t, 1, estimateBytes(4))
	require.Equal(t, 2, estimateBytes(5))
}

func TestFitOmitsOversizedCandidatesButKeepsScanning(t *testing.T) {
	sc := scope.Scope{TenantID: "t", UserID: "u", AgentID: "a", SessionID: "s", RunID: "r"}
	big := types.Fact{Scope: sc, FactID: "big", FactKey: "k", Value: mustValue(t, map[string]string{"x": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"})}
	small := types.Fact{Scope: sc, FactID: "small", FactKey: "k", Value: mustValue(t, map[string]string{"x": "y"})}
	set := retrieval.CandidateSet{Facts: []types.Fact{big, small}}
	maxTok := Estimate(small) // budget fits only the small one
	fitted := Fit(set, types.Budget{MaxTokens: &maxTok})

	require.Len(t, fitted.Facts, 1)
	require.Equal(t, "small", fitted.Facts[0].FactID)
	require.Len(t, fitted.Omissions, 1)
	require.Equal(t, "big", fitted.Omissions[0].ID)
	require.Equal(t, "budget", fitted.Omissions[0].Reason)
}

func TestFitNeverSpillsPerSectionBudget(t *testing.T) {
	sc := scope.Scope{TenantID: "t", UserID: "u", AgentID: "a", SessionID: "s", RunID: "r"}
	facts := []types.Fact{
		{Scope: sc, FactID: "f1", FactKey: "k", Value: mustValue(t, "a")},
		{Scope: sc, FactID: "f2", FactKey: "k", Value: mustValue(t, "b")},
	}
	episodes := []types.Episode{
		{Scope: sc, EpisodeID: "e1", Summary: "s"},
	}
	set := retrieval.CandidateSet{Facts: facts, Episodes: episodes}

	maxTok := 1000
	perSection := map[types.Section]int{types.SectionFacts: 0}
	fitted := Fit(set, types.Budget{MaxTokens: &maxTok, PerSection: perSection})

	require.Empty(t, fitted.Facts)
	require.Len(t, fitted.Omissions, 2)
	require.Len(t, fitted.Episodes, 1)
}

func mustValue(t *testing.T, v interface{}) types.Value {
	t.Helper()
	val, err := types.NewValue(v)
	require.NoError(t, err)
	return val
}
