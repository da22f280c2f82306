package retrieval

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chongliujia/engram/internal/types"
)

func makeSet(facts, episodes, events int) CandidateSet {
	var set CandidateSet
	for i := 0; i < facts; i++ {
		set.Facts = append(set.Facts, types.Fact{FactID: fmt.Sprintf("f%d", i)})
	}
	for i := 0; i < episodes; i++ {
		set.Episodes = append(set.Episodes, types.Episode{EpisodeID: fmt.Sprintf("e%d", i)})
	}
	for i := 0; i < events; i++ {
		set.Events = append(set.Events, types.Event{EventID: fmt.Sprintf("ev%d", i)})
	}
	return set
}

func TestCapTotalKeepsProportionalShares(t *testing.T) {
	set := makeSet(10, 10, 10)
	capped := capTotal(set, 9)

	require.Equal(t, 3, len(capped.Facts))
	require.Equal(t, 3, len(capped.Episodes))
	require.Equal(t, 3, len(capped.Events))
	// Internal order survives truncation.
	require.Equal(t, "f0", capped.Facts[0].FactID)
	require.Equal(t, "f2", capped.Facts[2].FactID)
}

func TestCapTotalNoopWhenUnderLimit(t *testing.T) {
	set := makeSet(2, 1, 1)
	capped := capTotal(set, 10)
	require.Equal(t, set.Counts(), capped.Counts())
}

func TestCapTotalSkipsExhaustedCategories(t *testing.T) {
	set := makeSet(10, 0, 1)
	capped := capTotal(set, 5)

	require.Equal(t, 1, len(capped.Events))
	require.Equal(t, 4, len(capped.Facts))
	require.Empty(t, capped.Episodes)
}
