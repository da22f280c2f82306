package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListProcedures filters by task_type (empty = all), sorted by
// success_count DESC, updated_ms DESC.
func (s *Store) ListProcedures(ctx context.Context, sc scope.Scope, taskType string, limit int) ([]types.Procedure, error) {
	const op = "sqlitestore.ListProcedures"
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
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	defer rows.Close()

	var out []types.Procedure
	for rows.Next() {
		var p types.Procedure
		var steps, pre, post string
		if err := rows.Scan(&p.ProcedureID, &p.TaskType, &steps, &pre, &post, &p.SuccessCount, &p.FailureCount, &p.CreatedMs, &p.UpdatedMs); err != nil {
			return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		p.Scope = sc
		p.Steps = decodeStrings(steps)
		p.Preconditions = decodeStrings(pre)
		p.Postconditions = decodeStrings(post)
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertProcedure inserts or replaces by ProcedureID.
func (s *Store) UpsertProcedure(ctx context.Context, sc scope.Scope, p types.Procedure) (types.Procedure, error) {
	const op = "sqlitestore.UpsertProcedure"
	if err := sc.Validate(); err != nil {
		return types.Procedure{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if p.ProcedureID == "" {
		return types.Procedure{}, storage.New(op, storage.KindInvalidArgument, "procedure_id is required")
	}
	now := s.now()
	var createdMs int64 = now
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT created_ms FROM procedures WHERE scope_hash = ? AND procedure_id = ?`, sc.Hash(), p.ProcedureID)
		var existingCreated int64
		if err := row.Scan(&existingCreated); err == nil {
			createdMs = existingCreated
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO procedures (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
				procedure_id, task_type, steps, preconditions, postconditions, success_count, failure_count, created_ms, updated_ms)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(scope_hash, procedure_id) DO UPDATE SET
				task_type=excluded.task_type, steps=excluded.steps, preconditions=excluded.preconditions,
				postconditions=excluded.postconditions, success_count=excluded.success_count,
				failure_count=excluded.failure_count, updated_ms=excluded.updated_ms`,
			sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
			p.ProcedureID, p.TaskType, encodeStrings(p.Steps), encodeStrings(p.Preconditions), encodeStrings(p.Postconditions),
			p.SuccessCount, p.FailureCount, createdMs, now)
		return err
	})
	if err != nil {
		return types.Procedure{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	p.Scope = sc
	p.CreatedMs = createdMs
	p.UpdatedMs = now
	return p, nil
}
