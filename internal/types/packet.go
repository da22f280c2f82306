package types

import "github.com/chongliujia/engram/internal/scope"

// Purpose is a free-form request purpose tag; the enumerated values are
// suggestions, not an enforced closed set.
type Purpose string

const (
	PurposePlanner   Purpose = "planner"
	PurposeResponder Purpose = "responder"
	PurposeReviewer  Purpose = "reviewer"
)

// Cues narrows candidate selection by tags, entities, or a time window.
type Cues struct {
	Tags      []string   `json:"tags,omitempty"`
	Entities  []string   `json:"entities,omitempty"`
	TimeRange *TimeRange `json:"time_range,omitempty"`
}

// RetrievalPolicy bounds per-category candidate counts.
type RetrievalPolicy struct {
	MaxFacts           int `json:"max_facts,omitempty"`
	MaxEpisodes        int `json:"max_episodes,omitempty"`
	MaxProcedures      int `json:"max_procedures,omitempty"`
	MaxInsights        int `json:"max_insights,omitempty"`
	MaxEvents          int `json:"max_events,omitempty"`
	MaxTotalCandidates int `json:"max_total_candidates,omitempty"`
}

// DefaultRetrievalPolicy returns the limits applied when a request
// supplies no policy.
func DefaultRetrievalPolicy() RetrievalPolicy {
	return RetrievalPolicy{
		MaxFacts:           50,
		MaxEpisodes:        20,
		MaxProcedures:      10,
		MaxInsights:        20,
		MaxEvents:          20,
		MaxTotalCandidates: 200,
	}
}

// WithDefaults overlays p onto DefaultRetrievalPolicy, field by field.
func (p RetrievalPolicy) WithDefaults() RetrievalPolicy {
	d := DefaultRetrievalPolicy()
	if p.MaxFacts > 0 {
		d.MaxFacts = p.MaxFacts
	}
	if p.MaxEpisodes > 0 {
		d.MaxEpisodes = p.MaxEpisodes
	}
	if p.MaxProcedures > 0 {
		d.MaxProcedures = p.MaxProcedures
	}
	if p.MaxInsights > 0 {
		d.MaxInsights = p.MaxInsights
	}
	if p.MaxEvents > 0 {
		d.MaxEvents = p.MaxEvents
	}
	if p.MaxTotalCandidates > 0 {
		d.MaxTotalCandidates = p.MaxTotalCandidates
	}
	return d
}

// Section identifies one of the five budget-fitted sections.
type Section string

const (
	SectionFacts      Section = "facts"
	SectionEpisodes   Section = "episodes"
	SectionProcedures Section = "procedures"
	SectionInsights   Section = "insights"
	SectionEvents     Section = "events"
)

// SectionOrder is the fixed priority order the fitter processes sections in.
var SectionOrder = []Section{SectionFacts, SectionEpisodes, SectionProcedures, SectionInsights, SectionEvents}

// Budget bounds packet size globally and per section.
type Budget struct {
	MaxTokens  *int            `json:"max_tokens,omitempty"`
	PerSection map[Section]int `json:"per_section,omitempty"`
}

// BuildRequest is the input to BuildMemoryPacket.
type BuildRequest struct {
	Scope         scope.Scope      `json:"scope"`
	Purpose       Purpose          `json:"purpose"`
	TaskType      string           `json:"task_type,omitempty"`
	Cues          *Cues            `json:"cues,omitempty"`
	Policy        *RetrievalPolicy `json:"policy,omitempty"`
	Budget        *Budget          `json:"budget,omitempty"`
	PolicyID      string           `json:"policy_id,omitempty"`
	Persist       *bool            `json:"persist,omitempty"`
	PersistStrict bool             `json:"persist_strict,omitempty"`
}

// PersistOrDefault returns the effective persist flag; default true.
func (r BuildRequest) PersistOrDefault() bool {
	if r.Persist == nil {
		return true
	}
	return *r.Persist
}

// Meta is the packet.meta block.
type Meta struct {
	SchemaVersion string      `json:"schema_version"`
	Scope         scope.Scope `json:"scope"`
	Purpose       Purpose     `json:"purpose"`
	CreatedMs     int64       `json:"created_ms"`
	PolicyID      string      `json:"policy_id,omitempty"`
}

// ShortTerm is the packet.short_term block, always included, never trimmed.
type ShortTerm struct {
	WorkingState *WorkingState `json:"working_state"`
	STM          *STM          `json:"stm"`
}

// LongTerm is the packet.long_term block, after budget fitting.
type LongTerm struct {
	Facts      []Fact      `json:"facts"`
	Episodes   []Episode   `json:"episodes"`
	Procedures []Procedure `json:"procedures"`
	Insights   []Insight   `json:"insights"`
}

// Omission records a candidate dropped for budget reasons.
type Omission struct {
	Section Section `json:"section"`
	ID      string  `json:"id"`
	Reason  string  `json:"reason"`
}

// BudgetReport is the packet.budget_report block.
type BudgetReport struct {
	RequestedTokens *int       `json:"requested_tokens"`
	UsedTokensEst   int        `json:"used_tokens_est"`
	RemainingTokens int        `json:"remaining_tokens"`
	Omissions       []Omission `json:"omissions"`
}

// Explain is the packet.explain non-authoritative trace.
type Explain struct {
	CandidateLimits RetrievalPolicy `json:"candidate_limits"`
	SelectionCounts map[Section]int `json:"selection_counts"`
	EstimatorFactor int             `json:"estimator_factor"`
}

// MemoryPacket is the full BuildMemoryPacket response.
type MemoryPacket struct {
	Meta         Meta         `json:"meta"`
	ShortTerm    ShortTerm    `json:"short_term"`
	LongTerm     LongTerm     `json:"long_term"`
	Events       []Event      `json:"events"`
	BudgetReport BudgetReport `json:"budget_report"`
	Explain      Explain      `json:"explain"`
}

// SchemaVersion is the current locked wire schema version. Changing
// EstimatorFactor requires bumping it.
const SchemaVersion = "1"

// EstimatorFactor is the bytes-per-token divisor; a contract, not a
// heuristic.
const EstimatorFactor = 4
