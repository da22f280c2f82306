package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// AppendEvent inserts an event; fails with Conflict if (scope, event_id)
// already exists.
func (s *Store) AppendEvent(ctx context.Context, e types.Event) error {
	const op = "sqlitestore.AppendEvent"
	if err := e.Scope.Validate(); err != nil {
		return storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if e.EventID == "" {
		return storage.New(op, storage.KindInvalidArgument, "event_id is required")
	}
	e.Normalize()
	if e.TsMs == 0 {
		e.TsMs = s.now()
	}
	h := e.Scope.Hash()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO events (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
				event_id, ts_ms, kind, payload, tags, entities)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
			h, e.Scope.TenantID, e.Scope.UserID, e.Scope.AgentID, e.Scope.SessionID, e.Scope.RunID,
			e.EventID, e.TsMs, string(e.Kind), string(e.Payload.Bytes()), encodeStrings(e.Tags), encodeStrings(e.Entities))
		if err != nil {
			if isUniqueViolation(err) {
				return storage.Wrap(op, storage.KindConflict, err)
			}
			return storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		return nil
	})
}

// ListEvents returns events newest-first, applying limit in the query.
func (s *Store) ListEvents(ctx context.Context, sc scope.Scope, tr *types.TimeRange, limit int) ([]types.Event, error) {
	const op = "sqlitestore.ListEvents"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	query := `SELECT event_id, ts_ms, kind, payload, tags, entities FROM events WHERE scope_hash = ?`
	args := []interface{}{sc.Hash()}
	if tr != nil {
		query += ` AND ts_ms >= ?`
		args = append(args, tr.StartMs)
		if tr.EndMs > 0 {
			query += ` AND ts_ms <= ?`
			args = append(args, tr.EndMs)
		}
	}
	query += ` ORDER BY ts_ms DESC, event_id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	defer rows.Close()

	var out []types.Event
	for rows.Next() {
		var e types.Event
		var payload, tags, entities string
		var kind string
		if err := rows.Scan(&e.EventID, &e.TsMs, &kind, &payload, &tags, &entities); err != nil {
			return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		e.Scope = sc
		e.Kind = types.EventKind(kind)
		pv, perr := types.ValueFromJSON([]byte(payload))
		if perr != nil {
			return nil, storage.Wrap(op, storage.KindCorruption, perr)
		}
		e.Payload = pv
		e.Tags = decodeStrings(tags)
		e.Entities = decodeStrings(entities)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite surfaces a *sqlite.Error with message text
	// containing "UNIQUE constraint failed" / "constraint failed: UNIQUE".
	var s string
	if errors.Unwrap(err) != nil {
		s = errors.Unwrap(err).Error()
	} else {
		s = err.Error()
	}
	return containsAny(s, "UNIQUE constraint failed", "constraint failed: UNIQUE", "PRIMARY KEY")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
