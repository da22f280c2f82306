package sqlitestore

import (
	"context"

	"github.com/chongliujia/engram/internal/scope"
	"github.com/chongliujia/engram/internal/storage"
	"github.com/chongliujia/engram/internal/types"
)

// ListEpisodes filters by time-range overlap and tag intersection
// (applied in Go, since SQLite has no native set-intersection operator
// for a JSON-encoded tag column), sorted by time_range.start DESC.
func (s *Store) ListEpisodes(ctx context.Context, sc scope.Scope, filter *types.EpisodeFilter, limit int) ([]types.Episode, error) {
	const op = "sqlitestore.ListEpisodes"
	if err := sc.Validate(); err != nil {
		return nil, storage.Wrap(op, storage.KindInvalidArgument, err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT episode_id, start_ms, end_ms, summary, tags, compression_level, embedding_ref, created_ms, updated_ms
		FROM episodes WHERE scope_hash = ? ORDER BY start_ms DESC`, sc.Hash())
	if err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	defer rows.Close()

	var out []types.Episode
	for rows.Next() {
		var e types.Episode
		var tags, level string
		if err := rows.Scan(&e.EpisodeID, &e.TimeRange.StartMs, &e.TimeRange.EndMs, &e.Summary, &tags, &level, &e.EmbeddingRef, &e.CreatedMs, &e.UpdatedMs); err != nil {
			return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
		}
		e.Scope = sc
		e.Tags = decodeStrings(tags)
		e.CompressionLevel = types.CompressionLevel(level)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}

	if filter != nil {
		out = filterEpisodes(out, filter)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func filterEpisodes(in []types.Episode, filter *types.EpisodeFilter) []types.Episode {
	out := in[:0:0]
	for _, e := range in {
		if filter.TimeRange != nil && !e.TimeRange.Overlaps(*filter.TimeRange) {
			continue
		}
		if len(filter.Tags) > 0 && !tagsIntersect(e.Tags, filter.Tags) {
			continue
		}
		out = append(out, e)
	}
	return out
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
	const op = "sqlitestore.AppendEpisode"
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
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (scope_hash, tenant_id, user_id, agent_id, session_id, run_id,
			episode_id, start_ms, end_ms, summary, tags, compression_level, embedding_ref, created_ms, updated_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(scope_hash, episode_id) DO UPDATE SET
			start_ms=excluded.start_ms, end_ms=excluded.end_ms, summary=excluded.summary, tags=excluded.tags,
			compression_level=excluded.compression_level, embedding_ref=excluded.embedding_ref, updated_ms=excluded.updated_ms`,
		sc.Hash(), sc.TenantID, sc.UserID, sc.AgentID, sc.SessionID, sc.RunID,
		e.EpisodeID, e.TimeRange.StartMs, e.TimeRange.EndMs, e.Summary, encodeStrings(e.Tags), string(e.CompressionLevel), e.EmbeddingRef, e.CreatedMs, e.UpdatedMs)
	if err != nil {
		return types.Episode{}, storage.Wrap(op, storage.KindBackendUnavailable, err)
	}
	e.Scope = sc
	return e, nil
}
