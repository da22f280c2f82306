package sqlitestore

import (
	"context"
	"database/sql"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListFacts applies filter (nil means status=active) sorted by
// confidence DESC, updated_ms DESC, fact_id ASC, with limit pushdown.
func (s *Store) ListFacts(ctx context.Context, sc scope.Scope, filter *types.FactFilter, limit int) ([]types.Fact, error) {
	const op = "sqlitestore.ListFacts"
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

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	defer rows.Close()

	var out []types.Fact
	for rows.Next() {
		var f types.Fact
		var value, status, evidence string
		if err := rows.Scan(&f.FactID, &f.FactKey, &value, &f.Confidence, &status, &f.Source, &evidence, &f.CreatedMs, &f.UpdatedMs); err != nil {
			return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		f.Scope = sc
		f.Status = types.FactStatus(status)
		if f.Value, err = types.ValueFromJSON([]byte(value)); err != nil {
			return nil, storage.Wrap(op, storage.KindCorruption, err)
		}
		if f.Evidence, err = types.ValueFromJSON([]byte(evidence)); err != nil {
			return nil, storage.Wrap(op, storage.KindCorruption, err)
		}
		out = append(out, f)
	}
	if filter != nil && len(filter.Tags) > 0 {
		out = filterFactsByTags(out, filter.Tags)
	}
	return out, rows.Err()
}

// filterFactsByTags keeps the FactFilter.Tags field accepted at the call
// boundary. Facts carry no tags column, so there is nothing to match
// against and every fact passes.
func filterFactsByTags(in []types.Fact, _ []string) []types.Fact { return in }

// UpsertFact inserts or replaces by FactID, bumping UpdatedMs. History
// is not retained (overwrite, not merge).
func (s *Store) UpsertFact(ctx context.Context, sc scope.Scope, f types.Fact) (types.Fact, error) {
	const op = "sqlitestore.UpsertFact"
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
	var createdMs int64 = now
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT created_ms FROM facts WHERE scope_hash = ? AND fact_id = ?`, sc.Hash(), f.FactID)
		var existingCreated int64
		if err := row.Scan(&existingCreated); err == nil {
			createdMs = existingCreated
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO facts (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
				fact_id, fact_key, value, confidence, status, source, evidence, created_ms, updated_ms)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(scope_hash, fact_id) DO UPDATE SET
				fact_key=excluded.fact_key, value=excluded.value, confidence=excluded.confidence,
				status=excluded.status, source=excluded.source, evidence=excluded.evidence, updated_ms=excluded.updated_ms`,
			sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
			f.FactID, f.FactKey, string(f.Value.Bytes()), f.Confidence, string(f.Status), f.Source, string(f.Evidence.Bytes()), createdMs, now)
		return err
	})
	if err != nil {
		return types.Fact{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	f.Scope = sc
	f.CreatedMs = createdMs
	f.UpdatedMs = now
	return f, nil
}
