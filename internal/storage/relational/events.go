package relational

import (
	"context"
	"encoding/json"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

func encodeStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

// AppendEvent inserts an event; fails with Conflict on a duplicate
// (scope, event_id).
func (s *Store) AppendEvent(ctx context.Context, e types.Event) error {
	const op = "relational.AppendEvent"
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
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO events (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
				event_id, ts_ms, kind, payload, tags, entities)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`),
			e.Scope.Hash(), e.Scope.TenantID, e.Scope.UserID, e.Scope.AgentID, e.Scope.SessionID, e.Scope.RunID,
			e.EventID, e.TsMs, string(e.Kind), string(e.Payload.Bytes()), encodeStrings(e.Tags), encodeStrings(e.Entities))
		return err
	})
	if err != nil {
		if isUniqueViolation(s.dialect, err) {
			return storage.Wrap(op, storage.KindConflict, err)
		}
		return storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return nil
}

// ListEvents returns events newest-first, limit pushed down.
func (s *Store) ListEvents(ctx context.Context, sc scope.Scope, tr *types.TimeRange, limit int) ([]types.Event, error) {
	const op = "relational.ListEvents"
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

	var out []types.Event
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e types.Event
			var payload, tags, entities, kind string
			if err := rows.Scan(&e.EventID, &e.TsMs, &kind, &payload, &tags, &entities); err != nil {
				return err
			}
			e.Scope = sc
			e.Kind = types.EventKind(kind)
			pv, perr := types.ValueFromJSON([]byte(payload))
			if perr != nil {
				return perr
			}
			e.Payload = pv
			e.Tags = decodeStrings(tags)
			e.Entities = decodeStrings(entities)
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return out, nil
}
