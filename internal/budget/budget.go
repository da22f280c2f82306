// Package budget implements the deterministic token estimator and greedy
// multi-section fitter. The estimator factor is a locked contract, not a
// heuristic: changing it is a schema-version bump.
package budget

import (
	"encoding/json"
	"math"

	"github.com/chongliujia/engram/internal/retrieval"
	"github.com/chongliujia/engram/internal/types"
)

// Estimate returns the deterministic token estimate for an opaque record:
// ceil(byte_length / EstimatorFactor) of its canonical serialisation.
func Estimate(v interface{}) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return estimateBytes(len(b))
}

func estimateBytes(n int) int {
	return int(math.Ceil(float64(n) / float64(types.EstimatorFactor)))
}

// candidate pairs a stable identifier with a token estimate, so the
// fitter can record omissions without knowing each category's concrete
// type.
type candidate struct {
	id     string
	tokens int
}

// Fitted is the outcome of fitting one CandidateSet under a budget: the
// admitted records per section, plus the omissions and token accounting
// needed for packet.budget_report.
type Fitted struct {
	Facts      []types.Fact
	Episodes   []types.Episode
	Procedures []types.Procedure
	Insights   []types.Insight
	Events     []types.Event

	UsedTokens      int
	RemainingTokens int
	Omissions       []types.Omission
}

// Fit applies the greedy fitting algorithm: sections are processed in the
// fixed priority order types.SectionOrder; within a section, candidates
// are admitted in their selection order iff they fit both the section's
// and the global remaining budget; per-section leftover budget never
// spills to later sections.
func Fit(set retrieval.CandidateSet, b types.Budget) Fitted {
	global := math.MaxInt
	if b.MaxTokens != nil {
		global = *b.MaxTokens
	}

	out := Fitted{}
	var omissions []types.Omission

	factTok := tokenize(set.Facts, func(f types.Fact) string { return f.FactID }, func(f types.Fact) interface{} { return f })
	epTok := tokenize(set.Episodes, func(e types.Episode) string { return e.EpisodeID }, func(e types.Episode) interface{} { return e })
	procTok := tokenize(set.Procedures, func(p types.Procedure) string { return p.ProcedureID }, func(p types.Procedure) interface{} { return p })
	insTok := tokenize(set.Insights, func(i types.Insight) string { return i.InsightID }, func(i types.Insight) interface{} { return i })
	evTok := tokenize(set.Events, func(e types.Event) string { return e.EventID }, func(e types.Event) interface{} { return e })

	used := 0
	admitFacts, used, omissions := fitSection(types.SectionFacts, factTok, sectionBudget(b, types.SectionFacts), &global, used, omissions)
	admitEp, used, omissions := fitSection(types.SectionEpisodes, epTok, sectionBudget(b, types.SectionEpisodes), &global, used, omissions)
	admitProc, used, omissions := fitSection(types.SectionProcedures, procTok, sectionBudget(b, types.SectionProcedures), &global, used, omissions)
	admitIns, used, omissions := fitSection(types.SectionInsights, insTok, sectionBudget(b, types.SectionInsights), &global, used, omissions)
	admitEv, used, omissions := fitSection(types.SectionEvents, evTok, sectionBudget(b, types.SectionEvents), &global, used, omissions)

	for i, ok := range admitFacts {
		if ok {
			out.Facts = append(out.Facts, set.Facts[i])
		}
	}
	for i, ok := range admitEp {
		if ok {
			out.Episodes = append(out.Episodes, set.Episodes[i])
		}
	}
	for i, ok := range admitProc {
		if ok {
			out.Procedures = append(out.Procedures, set.Procedures[i])
		}
	}
	for i, ok := range admitIns {
		if ok {
			out.Insights = append(out.Insights, set.Insights[i])
		}
	}
	for i, ok := range admitEv {
		if ok {
			out.Events = append(out.Events, set.Events[i])
		}
	}

	out.UsedTokens = used
	out.Omissions = omissions
	if b.MaxTokens != nil {
		out.RemainingTokens = *b.MaxTokens - used
	}
	return out
}

func tokenize[T any](items []T, id func(T) string, val func(T) interface{}) []candidate {
	out := make([]candidate, len(items))
	for i, it := range items {
		out[i] = candidate{id: id(it), tokens: Estimate(val(it))}
	}
	return out
}

func sectionBudget(b types.Budget, s types.Section) int {
	if b.PerSection == nil {
		return math.MaxInt
	}
	if v, ok := b.PerSection[s]; ok {
		return v
	}
	return math.MaxInt
}

// fitSection admits candidates in order, skipping (and recording an
// omission for) any that do not fit the section or global remainder,
// without stopping the scan; a smaller later candidate may still fit.
func fitSection(sec types.Section, cands []candidate, sectionRemaining int, global *int, used int, omissions []types.Omission) ([]bool, int, []types.Omission) {
	admit := make([]bool, len(cands))
	for i, c := range cands {
		if c.tokens <= sectionRemaining && c.tokens <= *global {
			admit[i] = true
			sectionRemaining -= c.tokens
			*global -= c.tokens
			used += c.tokens
		} else {
			omissions = append(omissions, types.Omission{Section: sec, ID: c.id, Reason: "budget"})
		}
	}
	return admit, used, omissions
}
