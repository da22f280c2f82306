package relational

import (
	"context"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListInsights sorts by confidence DESC, created_ms DESC.
func (s *Store) ListInsights(ctx context.Context, sc scope.Scope, filter *types.InsightFilter, limit int) ([]types.Insight, error) {
	const op = "relational.ListInsights"
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

	var out []types.Insight
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var i types.Insight
			var refs string
			if err := rows.Scan(&i.InsightID, &i.Statement, &i.Confidence, &refs, &i.CreatedMs); err != nil {
				return err
			}
			i.Scope = sc
			i.EvidenceRefs = decodeStrings(refs)
			out = append(out, i)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	return out, nil
}

// AppendInsight inserts or replaces by InsightID.
func (s *Store) AppendInsight(ctx context.Context, sc scope.Scope, i types.Insight) (types.Insight, error) {
	const op = "relational.AppendInsight"
	if err := sc.Validate(); err != nil {
		return types.Insight{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if i.InsightID == "" {
		return types.Insight{}, storage.New(op, storage.KindInvalidArgument, "insight_id is required")
	}
	if i.CreatedMs == 0 {
		i.CreatedMs = s.now()
	}
	query := `INSERT INTO insights (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
			insight_id, statement, confidence, evidence_refs, created_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?) ` +
		s.upsertSuffix([]string{"scope_hash", "insight_id"}, []string{"statement", "confidence", "evidence_refs"})
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
			i.InsightID, i.Statement, i.Confidence, encodeStrings(i.EvidenceRefs), i.CreatedMs)
		return err
	})
	if err != nil {
		return types.Insight{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	i.Scope = sc
	return i, nil
}
