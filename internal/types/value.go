package types

import (
	"bytes"
	"encoding/json"
)

// Value is an opaque, dynamically-shaped field (payload, value, evidence).
// It preserves unknown structure and round-trips byte-identically modulo
// insignificant whitespace, which is stripped once on ingestion to produce
// the canonical form the token estimator measures.
type Value struct {
	raw json.RawMessage
}

// Null is the canonical empty Value.
var Null = Value{raw: json.RawMessage("null")}

// NewValue marshals a Go native value (map/slice/string/number/bool/nil)
// into a Value using the standard library's canonical encoding.
func NewValue(v interface{}) (Value, error) {
	if v == nil {
		return Null, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: b}, nil
}

// ValueFromJSON wraps already-serialised JSON bytes as an opaque Value,
// compacting to canonical form (whitespace removal only; key order and
// structure are preserved exactly).
func ValueFromJSON(b []byte) (Value, error) {
	if len(b) == 0 {
		return Null, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return Value{}, err
	}
	return Value{raw: append(json.RawMessage(nil), buf.Bytes()...)}, nil
}

// Bytes returns the canonical JSON bytes backing this Value.
func (v Value) Bytes() []byte {
	if v.raw == nil {
		return []byte("null")
	}
	return v.raw
}

// IsZero reports whether this Value was never set (distinct from explicit null).
func (v Value) IsZero() bool {
	return v.raw == nil
}

// Unmarshal decodes the Value into out.
func (v Value) Unmarshal(out interface{}) error {
	return json.Unmarshal(v.Bytes(), out)
}

// MarshalJSON implements json.Marshaler by emitting the canonical bytes.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, compacting on the way in.
func (v *Value) UnmarshalJSON(b []byte) error {
	nv, err := ValueFromJSON(b)
	if err != nil {
		return err
	}
	*v = nv
	return nil
}
