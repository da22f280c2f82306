// Package types defines the persisted record shapes and the external wire
// shapes shared by every storage backend and the composer.
package types

import (
	"sort"

	"github.com/chongliujia/engram/internal/scope"
)

// EventKind enumerates the permitted event kinds.
type EventKind string

const (
	EventMessage     EventKind = "message"
	EventToolCall    EventKind = "tool_call"
	EventToolResult  EventKind = "tool_result"
	EventObservation EventKind = "observation"
	EventCustom      EventKind = "custom"
)

// Event is an append-only record. Ordering on recall is by TsMs then
// EventID.
type Event struct {
	EventID  string      `json:"event_id"`
	Scope    scope.Scope `json:"scope"`
	TsMs     int64       `json:"ts_ms"`
	Kind     EventKind   `json:"kind"`
	Payload  Value       `json:"payload"`
	Tags     []string    `json:"tags"`
	Entities []string    `json:"entities"`
}

// Normalize sorts and dedupes Tags/Entities into canonical set form so
// that two events differing only in insertion order serialise identically.
func (e *Event) Normalize() {
	e.Tags = sortedUniqueStrings(e.Tags)
	e.Entities = sortedUniqueStrings(e.Entities)
}

func sortedUniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// WorkingState is the single per-scope planner scratchpad.
type WorkingState struct {
	Scope        scope.Scope            `json:"scope"`
	Goal         string                 `json:"goal"`
	Plan         []string               `json:"plan"`
	Decisions    []string               `json:"decisions"`
	StateVersion int64                  `json:"state_version"`
	Extra        map[string]interface{} `json:"-"`
	CreatedMs    int64                  `json:"created_ms"`
	UpdatedMs    int64                  `json:"updated_ms"`
}

// STM is the single per-scope short-term recency buffer. The store
// preserves the caller's bytes but may cap aggregate size.
type STM struct {
	Scope     scope.Scope `json:"scope"`
	Value     Value       `json:"value"`
	CreatedMs int64       `json:"created_ms"`
	UpdatedMs int64       `json:"updated_ms"`
}

// FactStatus enumerates Fact lifecycle states.
type FactStatus string

const (
	FactActive     FactStatus = "active"
	FactDeprecated FactStatus = "deprecated"
)

// Fact is identified by FactID with a secondary index on FactKey.
type Fact struct {
	FactID     string      `json:"fact_id"`
	Scope      scope.Scope `json:"scope"`
	FactKey    string      `json:"fact_key"`
	Value      Value       `json:"value"`
	Confidence float64     `json:"confidence"`
	Status     FactStatus  `json:"status"`
	Source     string      `json:"source"`
	Evidence   Value       `json:"evidence"`
	CreatedMs  int64       `json:"created_ms"`
	UpdatedMs  int64       `json:"updated_ms"`
}

// CompressionLevel enumerates Episode summarisation levels.
type CompressionLevel string

const (
	CompressionRaw     CompressionLevel = "raw"
	CompressionSummary CompressionLevel = "summary"
	CompressionGist    CompressionLevel = "gist"
)

// TimeRange bounds an Episode or a Cue's recall window. End is optional
// (zero value means open-ended / "ongoing").
type TimeRange struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms,omitempty"`
}

// Overlaps reports whether two time ranges intersect. An open-ended range
// (EndMs == 0) is treated as extending to +infinity.
func (t TimeRange) Overlaps(o TimeRange) bool {
	aEnd := t.EndMs
	if aEnd == 0 {
		aEnd = int64(1) << 62
	}
	bEnd := o.EndMs
	if bEnd == 0 {
		bEnd = int64(1) << 62
	}
	return t.StartMs <= bEnd && o.StartMs <= aEnd
}

// Episode is a summarised slice of past activity identified by EpisodeID.
type Episode struct {
	EpisodeID        string           `json:"episode_id"`
	Scope            scope.Scope      `json:"scope"`
	TimeRange        TimeRange        `json:"time_range"`
	Summary          string           `json:"summary"`
	Tags             []string         `json:"tags"`
	CompressionLevel CompressionLevel `json:"compression_level"`
	EmbeddingRef     string           `json:"embedding_ref,omitempty"`
	CreatedMs        int64            `json:"created_ms"`
	UpdatedMs        int64            `json:"updated_ms"`
}

// Procedure is a reusable how-to identified by ProcedureID, keyed on
// TaskType for retrieval.
type Procedure struct {
	ProcedureID    string      `json:"procedure_id"`
	Scope          scope.Scope `json:"scope"`
	TaskType       string      `json:"task_type"`
	Steps          []string    `json:"steps"`
	Preconditions  []string    `json:"preconditions"`
	Postconditions []string    `json:"postconditions"`
	SuccessCount   int64       `json:"success_count"`
	FailureCount   int64       `json:"failure_count"`
	CreatedMs      int64       `json:"created_ms"`
	UpdatedMs      int64       `json:"updated_ms"`
}

// Insight is a derived observation identified by InsightID.
type Insight struct {
	InsightID    string      `json:"insight_id"`
	Scope        scope.Scope `json:"scope"`
	Statement    string      `json:"statement"`
	Confidence   float64     `json:"confidence"`
	EvidenceRefs []string    `json:"evidence_refs"`
	CreatedMs    int64       `json:"created_ms"`
}

// ContextBuild is the audit record written after a packet is composed,
// keyed by (scope, created_ms).
type ContextBuild struct {
	Scope     scope.Scope  `json:"scope"`
	CreatedMs int64        `json:"created_ms"`
	Packet    MemoryPacket `json:"packet"`
}

// FactFilter restricts ListFacts.
type FactFilter struct {
	FactKey       *string
	Status        *FactStatus
	MinConfidence *float64
	Tags          []string
}

// EpisodeFilter restricts ListEpisodes.
type EpisodeFilter struct {
	TimeRange *TimeRange
	Tags      []string
}

// InsightFilter restricts ListInsights.
type InsightFilter struct {
	MinConfidence *float64
}
