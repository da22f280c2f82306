package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSQLiteMemory(t *testing.T) {
	s, err := New(context.Background(), Config{Kind: KindSQLiteMemory})
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()
}

func TestNewSQLiteFileRequiresPath(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: KindSQLiteFile})
	require.Error(t, err)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "bogus"})
	require.Error(t, err)
}
