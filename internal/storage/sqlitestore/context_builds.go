package sqlitestore

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
	const op = "sqlitestore.WriteContextBuild"
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO context_builds (scope_hash, tenant_id, user_id, agent_id, session_id, run_id, created_ms, packet_json)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(scope_hash, created_ms) DO UPDATE SET packet_json=excluded.packet_json`,
		cb.Scope.Hash(), cb.Scope.TenantID, cb.Scope.UserID, cb.Scope.AgentID, cb.Scope.SessionID, cb.Scope.RunID,
		cb.CreatedMs, string(b))
	if err != nil {
		return storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return nil
}

// ListContextBuilds returns builds newest-first, limit pushed down.
func (s *Store) ListContextBuilds(ctx context.Context, sc scope.Scope, limit int) ([]types.ContextBuild, error) {
	const op = "sqlitestore.ListContextBuilds"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	query := `SELECT created_ms, packet_json FROM context_builds WHERE scope_hash = ? ORDER BY created_ms DESC`
	args := []interface{}{sc.Hash()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	defer rows.Close()

	var out []types.ContextBuild
	for rows.Next() {
		var cb types.ContextBuild
		var packetJSON string
		if err := rows.Scan(&cb.CreatedMs, &packetJSON); err != nil {
			return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		cb.Scope = sc
		if err := json.Unmarshal([]byte(packetJSON), &cb.Packet); err != nil {
			return nil, storage.Wrap(op, storage.KindCorruption, err)
		}
		out = append(out, cb)
	}
	return out, rows.Err()
}
