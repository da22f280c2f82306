package sqlitestore

import (
	"context"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListInsights sorts by confidence DESC, created_ms DESC.
func (s *Store) ListInsights(ctx context.Context, sc scope.Scope, filter *types.InsightFilter, limit int) ([]types.Insight, error) {
	const op = "sqlitestore.ListInsights"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	query := `SELECT insight_id, statement, confidence, evidence_refs, created_ms FROM insights WHERE scope_hash = ?`
	args := []interface{}{sc.Hash()}
	if filter != nil && filter.MinConfidence != nil {
		query += ` AND confidence >= ?`
		args = append(args, *filter.MinConfidence)
	}
	query += ` ORDER BY confidence DESC, created_ms DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	defer rows.Close()

	var out []types.Insight
	for rows.Next() {
		var i types.Insight
		var refs string
		if err := rows.Scan(&i.InsightID, &i.Statement, &i.Confidence, &refs, &i.CreatedMs); err != nil {
			return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		i.Scope = sc
		i.EvidenceRefs = decodeStrings(refs)
		out = append(out, i)
	}
	return out, rows.Err()
}

// AppendInsight inserts or replaces by InsightID.
func (s *Store) AppendInsight(ctx context.Context, sc scope.Scope, i types.Insight) (types.Insight, error) {
	const op = "sqlitestore.AppendInsight"
	if err := sc.Validate(); err != nil {
		return types.Insight{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if i.InsightID == "" {
		return types.Insight{}, storage.New(op, storage.KindInvalidArgument, "insight_id is required")
	}
	if i.CreatedMs == 0 {
		i.CreatedMs = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
			insight_id, statement, confidence, evidence_refs, created_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(scope_hash, insight_id) DO UPDATE SET
			statement=excluded.statement, confidence=excluded.confidence, evidence_refs=excluded.evidence_refs`,
		sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
		i.InsightID, i.Statement, i.Confidence, encodeStrings(i.EvidenceRefs), i.CreatedMs)
	if err != nil {
		return types.Insight{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	i.Scope = sc
	return i, nil
}
