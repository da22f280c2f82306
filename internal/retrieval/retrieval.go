// Package retrieval implements per-category candidate selection and the
// cross-category proportional truncation. Each category's
// filter/sort/limit contract is already enforced at the storage layer
// (sqlitestore, relational); this package composes those reads into one
// CandidateSet and applies the policy.max_total_candidates cap.
package retrieval

import (
	"context"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// CandidateSet is the ordered, per-category result of selection prior to
// budget fitting.
type CandidateSet struct {
	Facts      []types.Fact
	Episodes   []types.Episode
	Procedures []types.Procedure
	Insights   []types.Insight
	Events     []types.Event
}

// Counts reports the post-selection size of each category, used to
// populate packet.explain.selection_counts.
func (c CandidateSet) Counts() map[types.Section]int {
	return map[types.Section]int{
		types.SectionFacts:      len(c.Facts),
		types.SectionEpisodes:   len(c.Episodes),
		types.SectionProcedures: len(c.Procedures),
		types.SectionInsights:   len(c.Insights),
		types.SectionEvents:     len(c.Events),
	}
}

// Select assembles the CandidateSet for a scope: per-category
// filter/sort/limit happens in the backend query itself (storage.Storage
// contract), then the cross-category max_total_candidates cap is applied
// here by a proportional round-robin truncation.
func Select(ctx context.Context, store storage.Storage, sc scope.Scope, taskType string, cues *types.Cues, policy types.RetrievalPolicy) (CandidateSet, error) {
	const op = "retrieval.Select"
	policy = policy.WithDefaults()

	var episodeFilter *types.EpisodeFilter
	if cues != nil && (cues.TimeRange != nil || len(cues.Tags) > 0) {
		episodeFilter = &types.EpisodeFilter{TimeRange: cues.TimeRange, Tags: cues.Tags}
	}

	facts, err := store.ListFacts(ctx, sc, nil, policy.MaxFacts)
	if err != nil {
		return CandidateSet{}, storage.Wrap(op, storage.ErrorKind(err), err)
	}
	episodes, err := store.ListEpisodes(ctx, sc, episodeFilter, policy.MaxEpisodes)
	if err != nil {
		return CandidateSet{}, storage.Wrap(op, storage.ErrorKind(err), err)
	}
	procedures, err := store.ListProcedures(ctx, sc, taskType, policy.MaxProcedures)
	if err != nil {
		return CandidateSet{}, storage.Wrap(op, storage.ErrorKind(err), err)
	}
	insights, err := store.ListInsights(ctx, sc, nil, policy.MaxInsights)
	if err != nil {
		return CandidateSet{}, storage.Wrap(op, storage.ErrorKind(err), err)
	}
	events, err := store.ListEvents(ctx, sc, nil, policy.MaxEvents)
	if err != nil {
		return CandidateSet{}, storage.Wrap(op, storage.ErrorKind(err), err)
	}

	set := CandidateSet{Facts: facts, Episodes: episodes, Procedures: procedures, Insights: insights, Events: events}
	return capTotal(set, policy.MaxTotalCandidates), nil
}

// capTotal truncates the union to at most max candidates by a round-robin
// pass over the fixed section order, keeping each category's own internal
// order and giving every non-empty category a proportional share rather
// than starving later sections entirely.
func capTotal(set CandidateSet, max int) CandidateSet {
	total := len(set.Facts) + len(set.Episodes) + len(set.Procedures) + len(set.Insights) + len(set.Events)
	if max <= 0 || total <= max {
		return set
	}

	keep := map[types.Section]int{}
	idx := map[types.Section]int{
		types.SectionFacts: len(set.Facts), types.SectionEpisodes: len(set.Episodes),
		types.SectionProcedures: len(set.Procedures), types.SectionInsights: len(set.Insights),
		types.SectionEvents: len(set.Events),
	}
	admitted := 0
	for admitted < max {
		progressed := false
		for _, sec := range types.SectionOrder {
			if admitted >= max {
				break
			}
			if keep[sec] < idx[sec] {
				keep[sec]++
				admitted++
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	return CandidateSet{
		Facts:      set.Facts[:keep[types.SectionFacts]],
		Episodes:   set.Episodes[:keep[types.SectionEpisodes]],
		Procedures: set.Procedures[:keep[types.SectionProcedures]],
		Insights:   set.Insights[:keep[types.SectionInsights]],
		Events:     set.Events[:keep[types.SectionEvents]],
	}
}
