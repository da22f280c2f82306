package relational

import (
	"context"
	"encoding/json"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// WriteContextBuild persists a complete packet keyed by
// (scope, created_ms) for offline evaluation.
func (s *Store) WriteContextBuild(ctx context.Context, cb types.ContextBuild) error {
	const op = "relational.WriteContextBuild"
	if err := cb.Scope.Validate(); err != nil {
		return storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	b, err := json.Marshal(cb.Packet)
	if err != nil {
		return storage.Wrap(op, storage.KindInternal, err)
	}
	if cb.CreatedMs == 0 {
		cb.CreatedMs = s.now()
	}
	query := `INSERT INTO context_builds (scope_hash, tenant_id, user_id, agent_id, session_id, run_id, created_ms, packet_json)
		VALUES (?,?,?,?,?,?,?,?) ` + s.upsertSuffix([]string{"scope_hash", "created_ms"}, []string{"packet_json"})
	err = s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			cb.Scope.Hash(), cb.Scope.TenantID, cb.Scope.UserID, cb.Scope.AgentID, cb.Scope.SessionID, cb.Scope.RunID,
			cb.CreatedMs, string(b))
		return err
	})
	if err != nil {
		return storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return nil
}

// ListContextBuilds returns builds newest-first, limit pushed down.
func (s *Store) ListContextBuilds(ctx context.Context, sc scope.Scope, limit int) ([]types.ContextBuild, error) {
	const op = "relational.ListContextBuilds"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	query := `SELECT created_ms, packet_json FROM context_builds WHERE scope_hash = ? ORDER BY created_ms DESC`
	args := []interface{}{sc.Hash()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []types.ContextBuild
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cb types.ContextBuild
			var packetJSON string
			if err := rows.Scan(&cb.CreatedMs, &packetJSON); err != nil {
				return err
			}
			cb.Scope = sc
			if err := json.Unmarshal([]byte(packetJSON), &cb.Packet); err != nil {
				return err
			}
			out = append(out, cb)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return out, nil
}
