package types

import "encoding/json"

// knownWorkingStateKeys are the named fields of WorkingState; everything
// else round-trips through Extra so unknown keys survive a write-read
// cycle.
var knownWorkingStateKeys = map[string]bool{
	"scope": true, "goal": true, "plan": true, "decisions": true,
	"state_version": true, "created_ms": true, "updated_ms": true,
}

// MarshalJSON flattens Extra alongside the named fields.
func (w WorkingState) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"scope":         w.Scope,
		"goal":          w.Goal,
		"plan":          w.Plan,
		"decisions":     w.Decisions,
		"state_version": w.StateVersion,
		"created_ms":    w.CreatedMs,
		"updated_ms":    w.UpdatedMs,
	}
	for k, v := range w.Extra {
		if !knownWorkingStateKeys[k] {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON captures unknown keys into Extra.
func (w *WorkingState) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	type alias WorkingState
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*w = WorkingState(a)
	w.Extra = make(map[string]interface{})
	for k, v := range raw {
		if knownWorkingStateKeys[k] {
			continue
		}
		var val interface{}
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		w.Extra[k] = val
	}
	return nil
}

// DeepMergeMaps is the single source of truth for working-state patch
// semantics: mappings merge key-wise recursively; sequences and scalars
// replace wholesale.
func DeepMergeMaps(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		bv, exists := out[k]
		if !exists {
			out[k] = pv
			continue
		}
		bm, bIsMap := bv.(map[string]interface{})
		pm, pIsMap := pv.(map[string]interface{})
		if bIsMap && pIsMap {
			out[k] = DeepMergeMaps(bm, pm)
			continue
		}
		// sequences, scalars, and nulls replace outright.
		out[k] = pv
	}
	return out
}

// WorkingStatePatch carries the caller-specified partial update to a
// WorkingState. Fields left nil are untouched;
// Plan/Decisions, when non-nil, replace wholesale (they are sequences, not
// mappings). Extra participates in the deep merge.
type WorkingStatePatch struct {
	Goal         *string
	Plan         []string
	Decisions    []string
	StateVersion *int64
	Extra        map[string]interface{}
}

// Apply merges p onto w per DeepMergeMaps semantics and returns the result.
// w is not mutated.
func (p WorkingStatePatch) Apply(w WorkingState) WorkingState {
	out := w
	if p.Goal != nil {
		out.Goal = *p.Goal
	}
	if p.Plan != nil {
		out.Plan = append([]string(nil), p.Plan...)
	}
	if p.Decisions != nil {
		out.Decisions = append([]string(nil), p.Decisions...)
	}
	if len(p.Extra) > 0 {
		out.Extra = DeepMergeMaps(w.Extra, p.Extra)
	}
	return out
}
