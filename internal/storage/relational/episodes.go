package relational

import (
	"context"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListEpisodes mirrors sqlitestore's Go-side time-range/tag filtering
// since set-intersection is not portable SQL across dialects.
func (s *Store) ListEpisodes(ctx context.Context, sc scope.Scope, filter *types.EpisodeFilter, limit int) ([]types.Episode, error) {
	const op = "relational.ListEpisodes"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}

	var out []types.Episode
	err := s.withRetry(ctx, func() error {
		out = nil
		rows, err := s.db.QueryContext(ctx, s.rebind(`
			SELECT episode_id, start_ms, end_ms, summary, tags, compression_level, embedding_ref, created_ms, updated_ms
			FROM episodes WHERE scope_hash = ? ORDER BY start_ms DESC`), sc.Hash())
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e types.Episode
			var tags, level string
			if err := rows.Scan(&e.EpisodeID, &e.TimeRange.StartMs, &e.TimeRange.EndMs, &e.Summary, &tags, &level, &e.EmbeddingRef, &e.CreatedMs, &e.UpdatedMs); err != nil {
				return err
			}
			e.Scope = sc
			e.Tags = decodeStrings(tags)
			e.CompressionLevel = types.CompressionLevel(level)
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}

	if filter != nil {
		filtered := out[:0:0]
		for _, e := range out {
			if filter.TimeRange != nil && !e.TimeRange.Overlaps(*filter.TimeRange) {
				continue
			}
			if len(filter.Tags) > 0 && !tagsIntersect(e.Tags, filter.Tags) {
				continue
			}
			filtered = append(filtered, e)
		}
		out = filtered
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func tagsIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// AppendEpisode inserts or replaces by EpisodeID.
func (s *Store) AppendEpisode(ctx context.Context, sc scope.Scope, e types.Episode) (types.Episode, error) {
	const op = "relational.AppendEpisode"
	if err := sc.Validate(); err != nil {
		return types.Episode{}, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	if e.EpisodeID == "" {
		return types.Episode{}, storage.New(op, storage.KindInvalidArgument, "episode_id is required")
	}
	now := s.now()
	if e.CreatedMs == 0 {
		e.CreatedMs = now
	}
	e.UpdatedMs = now
	if e.CompressionLevel == "" {
		e.CompressionLevel = types.CompressionRaw
	}
	query := `INSERT INTO episodes (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
			episode_id, start_ms, end_ms, summary, tags, compression_level, embedding_ref, created_ms, updated_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) ` +
		s.upsertSuffix([]string{"scope_hash", "episode_id"}, []string{"start_ms", "end_ms", "summary", "tags", "compression_level", "embedding_ref", "updated_ms"})
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, s.rebind(query),
			sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
			e.EpisodeID, e.TimeRange.StartMs, e.TimeRange.EndMs, e.Summary, encodeStrings(e.Tags), string(e.CompressionLevel), e.EmbeddingRef, e.CreatedMs, e.UpdatedMs)
		return err
	})
	if err != nil {
		return types.Episode{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	e.Scope = sc
	return e, nil
}
