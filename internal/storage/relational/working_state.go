package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

func encodeExtra(m map[string]interface{}) string {
	if m == nil {
		m = map[string]interface{}{}
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func decodeExtra(s string) map[string]interface{} {
	out := map[string]interface{}{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func (s *Store) getWorkingState(ctx context.Context, sc scope.Scope) (*types.WorkingState, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT goal, plan, decisions, state_version, extra, created_ms, updated_ms
		FROM working_state WHERE scope_hash = ?`), sc.Hash())
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

// GetWorkingState returns nil, nil if no working state exists yet.
func (s *Store) GetWorkingState(ctx context.Context, sc scope.Scope) (*types.WorkingState, error) {
	const op = "relational.GetWorkingState"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	ws, err := s.getWorkingState(ctx, sc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return ws, nil
}

// PatchWorkingState atomically read-merge-writes within a transaction.
// Equal state_version is an idempotent retry, not a Conflict;
// strictly-less is Conflict.
func (s *Store) PatchWorkingState(ctx context.Context, sc scope.Scope, patch types.WorkingStatePatch) (types.WorkingState, error) {
	const op = "relational.PatchWorkingState"
	if err := sc.Validate(); err != nil {
		return types.WorkingState{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}

	var result types.WorkingState
	err := s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r)
			}
		}()

		row := tx.QueryRowContext(ctx, s.rebind(`
			SELECT goal, plan, decisions, state_version, extra, created_ms, updated_ms
			FROM working_state WHERE scope_hash = ?`), sc.Hash())
		now := s.now()
		var base types.WorkingState
		var plan, decisions, extra string
		scanErr := row.Scan(&base.Goal, &plan, &decisions, &base.StateVersion, &extra, &base.CreatedMs, &base.UpdatedMs)
		if scanErr != nil {
			if !errors.Is(scanErr, sql.ErrNoRows) {
				_ = tx.Rollback()
				return scanErr
			}
			base = types.WorkingState{Scope: sc, CreatedMs: now, Extra: map[string]interface{}{}}
		} else {
			base.Scope = sc
			base.Plan = decodeStrings(plan)
			base.Decisions = decodeStrings(decisions)
			base.Extra = decodeExtra(extra)
			if patch.StateVersion != nil && *patch.StateVersion < base.StateVersion {
				_ = tx.Rollback()
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

		insert := `INSERT INTO working_state (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
				goal, plan, decisions, state_version, extra, created_ms, updated_ms)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?) ` +
			s.upsertSuffix([]string{"scope_hash"}, []string{"goal", "plan", "decisions", "state_version", "extra", "updated_ms"})
		_, err = tx.ExecContext(ctx, s.rebind(insert),
			sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
			merged.Goal, encodeStrings(merged.Plan), encodeStrings(merged.Decisions),
			merged.StateVersion, encodeExtra(merged.Extra), merged.CreatedMs, merged.UpdatedMs)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		result = merged
		return tx.Commit()
	})
	if err != nil {
		var se *storage.Error
		if errors.As(err, &se) {
			return types.WorkingState{}, err
		}
		return types.WorkingState{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return result, nil
}
