package relational

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListProcedures orders by success_count desc, updated_ms desc.
func (s *Store) ListProcedures(ctx context.Context, sc scope.Scope, taskType string, limit int) ([]types.Procedure, error) {
	const op = "relational.ListProcedures"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	query := `SELECT procedure_id, task_type, steps, preconditions, postconditions, success_count, failure_count, created_ms, updated_ms
		FROM procedures WHERE scope_hash = ?`
	args := []interface{}{sc.Hash()}
	if taskType != "" {
		query += ` AND task_type = ?`
		args = append(args, taskType)
	}
	query += ` ORDER BY success_count DESC, updated_ms DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []types.Procedure
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p types.Procedure
			var steps, pre, post string
			if err := rows.Scan(&p.ProcedureID, &p.TaskType, &steps, &pre, &post, &p.SuccessCount, &p.FailureCount, &p.CreatedMs, &p.UpdatedMs); err != nil {
				return err
			}
			p.Scope = sc
			p.Steps = decodeStrings(steps)
			p.Preconditions = decodeStrings(pre)
			p.Postconditions = decodeStrings(post)
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return out, nil
}

// UpsertProcedure inserts or replaces by ProcedureID.
func (s *Store) UpsertProcedure(ctx context.Context, sc scope.Scope, p types.Procedure) (types.Procedure, error) {
	const op = "relational.UpsertProcedure"
	if err := sc.Validate(); err != nil {
		return types.Procedure{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if p.ProcedureID == "" {
		return types.Procedure{}, storage.New(op, storage.KindInvalidArgument, "procedure_id is required")
	}
	now := s.now()
	query := `INSERT INTO procedures (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
			procedure_id, task_type, steps, preconditions, postconditions, success_count, failure_count, created_ms, updated_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) ` +
		s.upsertSuffix([]string{"scope_hash", "procedure_id"}, []string{"task_type", "steps", "preconditions", "postconditions", "success_count", "failure_count", "updated_ms"})

	var createdMs int64
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

		createdMs = now
		row := tx.QueryRowContext(ctx, s.rebind(`SELECT created_ms FROM procedures WHERE scope_hash = ? AND procedure_id = ?`), sc.Hash(), p.ProcedureID)
		var existing int64
		switch err := row.Scan(&existing); {
		case err == nil:
			createdMs = existing
		case !errors.Is(err, sql.ErrNoRows):
			_ = tx.Rollback()
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind(query),
			sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
			p.ProcedureID, p.TaskType, encodeStrings(p.Steps), encodeStrings(p.Preconditions), encodeStrings(p.Postconditions), p.SuccessCount, p.FailureCount, createdMs, now); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return types.Procedure{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	p.Scope = sc
	p.CreatedMs = createdMs
	p.UpdatedMs = now
	return p, nil
}
