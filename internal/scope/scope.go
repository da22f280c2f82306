// Package scope defines the canonical tenant/user/agent/session/run
// partitioning key shared by every memory record and every storage query.
package scope

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Scope is the 5-tuple primary partitioning key for all memory records.
// Every field is required; validation rejects empty fields.
type Scope struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`
}

// Validate rejects a scope with any missing or empty field.
func (s Scope) Validate() error {
	fields := map[string]string{
		"tenant_id":  s.TenantID,
		"user_id":    s.UserID,
		"agent_id":   s.AgentID,
		"session_id": s.SessionID,
		"run_id":     s.RunID,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("scope: missing or empty field %q", name)
		}
	}
	return nil
}

// Equal reports component-wise equality.
func (s Scope) Equal(o Scope) bool {
	return s.TenantID == o.TenantID &&
		s.UserID == o.UserID &&
		s.AgentID == o.AgentID &&
		s.SessionID == o.SessionID &&
		s.RunID == o.RunID
}

// canonical produces the stable ordered serialisation that Hash is derived
// from. Field order is fixed (not alphabetical) to match the tuple order.
func (s Scope) canonical() string {
	return s.TenantID + "\x1f" + s.UserID + "\x1f" + s.AgentID + "\x1f" + s.SessionID + "\x1f" + s.RunID
}

// Hash returns a stable hex-encoded hash over the scope's canonical
// serialisation. Used as a row-key prefix by every backend.
func (s Scope) Hash() string {
	sum := sha256.Sum256([]byte(s.canonical()))
	return hex.EncodeToString(sum[:])
}

// String renders a human-readable form for logs; never used as a storage key.
func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", s.TenantID, s.UserID, s.AgentID, s.SessionID, s.RunID)
}
