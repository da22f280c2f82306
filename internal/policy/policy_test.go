package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chongliujia/engram/internal/types"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Equal(t, types.DefaultRetrievalPolicy(), got)
}

func TestLoadOverlaysProvidedFields(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(p, []byte("max_facts: 5\nmax_events: 3\n"), 0o600))

	got := Load(p)
	require.Equal(t, 5, got.MaxFacts)
	require.Equal(t, 3, got.MaxEvents)
	require.Equal(t, types.DefaultRetrievalPolicy().MaxEpisodes, got.MaxEpisodes)
}
