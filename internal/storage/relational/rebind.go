package relational

import (
	"strconv"
	"strings"
)

// rebind rewrites a query written with "?" placeholders into this store's
// dialect. MySQL already uses "?"; Postgres needs "$1", "$2", ... This
// lets every CRUD method share one query string across both dialects.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// upsertSuffix returns the dialect-specific "insert or replace on conflict"
// clause: Postgres's ON CONFLICT ... DO UPDATE SET col=excluded.col, and
// MySQL's ON DUPLICATE KEY UPDATE col=VALUES(col), for the given set of
// mutable (non-key) columns.
func (s *Store) upsertSuffix(conflictCols, mutableCols []string) string {
	if s.dialect == DialectPostgres {
		sets := make([]string, len(mutableCols))
		for i, c := range mutableCols {
			sets[i] = c + "=excluded." + c
		}
		return "ON CONFLICT (" + strings.Join(conflictCols, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
	sets := make([]string, len(mutableCols))
	for i, c := range mutableCols {
		sets[i] = c + "=VALUES(" + c + ")"
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}
