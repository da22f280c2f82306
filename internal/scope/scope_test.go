package scope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsEmptyField(t *testing.T) {
	s := Scope{TenantID: "t", UserID: "u", AgentID: "a", SessionID: "s", RunID: ""}
	require.Error(t, s.Validate())

	s.RunID = "r"
	require.NoError(t, s.Validate())
}

func TestHashStableAndDistinct(t *testing.T) {
	a := Scope{TenantID: "demo", UserID: "alice", AgentID: "helper", SessionID: "s1", RunID: "r1"}
	b := a
	require.Equal(t, a.Hash(), b.Hash())

	b.RunID = "r2"
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestEqual(t *testing.T) {
	a := Scope{TenantID: "t", UserID: "u", AgentID: "a", SessionID: "s", RunID: "r"}
	b := a
	require.True(t, a.Equal(b))
	b.UserID = "other"
	require.False(t, a.Equal(b))
}
