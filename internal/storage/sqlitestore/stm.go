package sqlitestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// GetSTM returns nil, nil if no STM exists yet.
func (s *Store) GetSTM(ctx context.Context, sc scope.Scope) (*types.STM, error) {
	const op = "sqlitestore.GetSTM"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT value, created_ms, updated_ms FROM stm WHERE scope_hash = ?`, sc.Hash())
	var stm types.STM
	var value string
	if err := row.Scan(&value, &stm.CreatedMs, &stm.UpdatedMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	stm.Scope = sc
	v, err := types.ValueFromJSON([]byte(value))
	if err != nil {
		return nil, storage.Wrap(op, storage.KindCorruption, err)
	}
	stm.Value = v
	return &stm, nil
}

// UpdateSTM whole-value replaces the STM, enforcing the configured
// aggregate size cap (0 = unbounded).
func (s *Store) UpdateSTM(ctx context.Context, sc scope.Scope, v types.Value) (types.STM, error) {
	const op = "sqlitestore.UpdateSTM"
	if err := sc.Validate(); err != nil {
		return types.STM{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if s.maxSTMBytes > 0 && len(v.Bytes()) > s.maxSTMBytes {
		return types.STM{}, storage.New(op, storage.KindInvalidArgument, "stm value exceeds configured size cap")
	}
	now := s.now()
	var createdMs int64 = now
	if existing, _ := s.GetSTM(ctx, sc); existing != nil {
		createdMs = existing.CreatedMs
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stm (scope_hash, tenant_id, user_id, agent_id, session_id, run_id, value, created_ms, updated_ms)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(scope_hash) DO UPDATE SET value=excluded.value, updated_ms=excluded.updated_ms`,
		sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID, string(v.Bytes()), createdMs, now)
	if err != nil {
		return types.STM{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return types.STM{Scope: sc, Value: v, CreatedMs: createdMs, UpdatedMs: now}, nil
}
