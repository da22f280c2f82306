package relational

import (
	"context"
	"database/sql"
	"errors"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListFacts mirrors sqlitestore's ordering/filtering contract.
func (s *Store) ListFacts(ctx context.Context, sc scope.Scope, filter *types.FactFilter, limit int) ([]types.Fact, error) {
	const op = "relational.ListFacts"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	query := `SELECT fact_id, fact_key, value, confidence, status, source, evidence, created_ms, updated_ms
		FROM facts WHERE scope_hash = ?`
	args := []interface{}{sc.Hash()}
	if filter == nil || filter.Status == nil {
		query += ` AND status = ?`
		args = append(args, string(types.FactActive))
	} else {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter != nil {
		if filter.FactKey != nil {
			query += ` AND fact_key = ?`
			args = append(args, *filter.FactKey)
		}
		if filter.MinConfidence != nil {
			query += ` AND confidence >= ?`
			args = append(args, *filter.MinConfidence)
		}
	}
	query += ` ORDER BY confidence DESC, updated_ms DESC, fact_id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []types.Fact
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var f types.Fact
			var value, status, evidence string
			if err := rows.Scan(&f.FactID, &f.FactKey, &value, &f.Confidence, &status, &f.Source, &evidence, &f.CreatedMs, &f.UpdatedMs); err != nil {
				return err
			}
			f.Scope = sc
			f.Status = types.FactStatus(status)
			if f.Value, err = types.ValueFromJSON([]byte(value)); err != nil {
				return err
			}
			if f.Evidence, err = types.ValueFromJSON([]byte(evidence)); err != nil {
				return err
			}
			out = append(out, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return out, nil
}

// UpsertFact inserts or replaces by FactID, bumping UpdatedMs.
func (s *Store) UpsertFact(ctx context.Context, sc scope.Scope, f types.Fact) (types.Fact, error) {
	const op = "relational.UpsertFact"
	if err := sc.Validate(); err != nil {
		return types.Fact{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if f.FactID == "" {
		return types.Fact{}, storage.New(op, storage.KindInvalidArgument, "fact_id is required")
	}
	if f.Status == "" {
		f.Status = types.FactActive
	}
	now := s.now()
	query := `INSERT INTO facts (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
			fact_id, fact_key, value, confidence, status, source, evidence, created_ms, updated_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) ` +
		s.upsertSuffix([]string{"scope_hash", "fact_id"}, []string{"fact_key", "value", "confidence", "status", "source", "evidence", "updated_ms"})

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
		row := tx.QueryRowContext(ctx, s.rebind(`SELECT created_ms FROM facts WHERE scope_hash = ? AND fact_id = ?`), sc.Hash(), f.FactID)
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
			f.FactID, f.FactKey, string(f.Value.Bytes()), f.Confidence, string(f.Status), f.Source, string(f.Evidence.Bytes()), createdMs, now); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return types.Fact{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	f.Scope = sc
	f.CreatedMs = createdMs
	f.UpdatedMs = now
	return f, nil
}
