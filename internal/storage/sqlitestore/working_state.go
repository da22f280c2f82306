package sqlitestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// GetWorkingState returns nil, nil if no working state exists yet.
func (s *Store) GetWorkingState(ctx context.Context, sc scope.Scope) (*types.WorkingState, error) {
	const op = "sqlitestore.GetWorkingState"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	ws, err := s.getWorkingStateTx(ctx, s.db, sc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return ws, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) getWorkingStateTx(ctx context.Context, q querier, sc scope.Scope) (*types.WorkingState, error) {
	row := q.QueryRowContext(ctx, `
		SELECT goal, plan, decisions, state_version, extra, created_ms, updated_ms
		FROM working_state WHERE scope_hash = ?`, sc.Hash())
	var ws types.WorkingState
	var plan, decisions, extra string
	if err := row.Scan(&ws.Goal, &plan, &decisions, &ws.StateVersion, &extra, &ws.CreatedMs, &ws.UpdatedMs); err != nil {
		return nil, err
	}
	ws.Scope = sc
	ws.Plan = decodeStrings(plan)
	ws.Decisions = decodeStrings(decisions)
	ws.Extra = decodeExtra(extra)
	return &ws, nil
}

// PatchWorkingState atomically read-merge-writes. Fails with Conflict if
// patch.StateVersion is set and strictly less than the stored version;
// equal is accepted as an idempotent retry.
func (s *Store) PatchWorkingState(ctx context.Context, sc scope.Scope, patch types.WorkingStatePatch) (types.WorkingState, error) {
	const op = "sqlitestore.PatchWorkingState"
	if err := sc.Validate(); err != nil {
		return types.WorkingState{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}

	var result types.WorkingState
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := s.getWorkingStateTx(ctx, tx, sc)
		now := s.now()
		var base types.WorkingState
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return storage.Wrap(op, storage.KindBackendUnavailable, err)
			}
			base = types.WorkingState{Scope: sc, CreatedMs: now, Extra: map[string]interface{}{}}
		} else {
			base = *existing
			if patch.StateVersion != nil && *patch.StateVersion < base.StateVersion {
				return storage.New(op, storage.KindConflict, "state_version is less than stored version")
			}
		}

		merged := patch.Apply(base)
		merged.UpdatedMs = now
		if merged.CreatedMs == 0 {
			merged.CreatedMs = now
		}
		if patch.StateVersion != nil {
			merged.StateVersion = *patch.StateVersion
		} else {
			merged.StateVersion = base.StateVersion + 1
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO working_state (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
				goal, plan, decisions, state_version, extra, created_ms, updated_ms)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(scope_hash) DO UPDATE SET
				goal=excluded.goal, plan=excluded.plan, decisions=excluded.decisions,
				state_version=excluded.state_version, extra=excluded.extra, updated_ms=excluded.updated_ms`,
			sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
			merged.Goal, encodeStrings(merged.Plan), encodeStrings(merged.Decisions),
			merged.StateVersion, encodeExtra(merged.Extra), merged.CreatedMs, merged.UpdatedMs)
		if err != nil {
			return storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		result = merged
		return nil
	})
	if err != nil {
		return types.WorkingState{}, err
	}
	return result, nil
}
