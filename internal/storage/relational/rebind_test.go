package relational

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRebindMySQLLeavesPlaceholders(t *testing.T) {
	s := &Store{dialect: DialectMySQL}
	q := `SELECT x FROM t WHERE a = ? AND b = ?`
	require.Equal(t, q, s.rebind(q))
}

func TestRebindPostgresNumbersPlaceholders(t *testing.T) {
	s := &Store{dialect: DialectPostgres}
	got := s.rebind(`INSERT INTO t (a, b, c) VALUES (?,?,?)`)
	require.Equal(t, `INSERT INTO t (a, b, c) VALUES ($1,$2,$3)`, got)
}

func TestUpsertSuffixPerDialect(t *testing.T) {
	my := &Store{dialect: DialectMySQL}
	require.Equal(t,
		"ON DUPLICATE KEY UPDATE value=VALUES(value), updated_ms=VALUES(updated_ms)",
		my.upsertSuffix([]string{"scope_hash"}, []string{"value", "updated_ms"}))

	pg := &Store{dialect: DialectPostgres}
	require.Equal(t,
		"ON CONFLICT (scope_hash, fact_id) DO UPDATE SET value=excluded.value, updated_ms=excluded.updated_ms",
		pg.upsertSuffix([]string{"scope_hash", "fact_id"}, []string{"value", "updated_ms"}))
}
