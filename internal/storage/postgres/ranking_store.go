package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// RankingStore implements seo.RankingStore using Postgres. Uniqueness of
// (site_id, lower(keyword), date) is enforced by the table's unique index.
type RankingStore struct {
	db Querier
}

// NewRankingStore creates a RankingStore on an existing pool.
func NewRankingStore(db Querier) *RankingStore {
	return &RankingStore{db: db}
}

// UpsertSnapshot stores one row per (site, keyword, date). With overwrite the
// new values win; without it an existing row is left untouched.
func (s *RankingStore) UpsertSnapshot(ctx context.Context, snap seo.RankingSnapshot, overwrite bool) (bool, error) {
	conflict := `DO NOTHING`
	if overwrite {
		conflict = `DO UPDATE
		SET keyword_id = EXCLUDED.keyword_id,
			url = EXCLUDED.url,
			position = EXCLUDED.position,
			clicks = EXCLUDED.clicks,
			impressions = EXCLUDED.impressions,
			ctr = EXCLUDED.ctr,
			source = EXCLUDED.source`
	}
	query := fmt.Sprintf(`
		INSERT INTO ranking_snapshots (
			site_id, keyword, date, keyword_id, url, position,
			clicks, impressions, ctr, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (site_id, lower(keyword), date) %s;
	`, conflict)

	tag, err := s.db.Exec(ctx, query,
		snap.SiteID,
		snap.Keyword,
		snap.Date,
		snap.KeywordID,
		snap.URL,
		snap.Position,
		snap.Clicks,
		snap.Impressions,
		snap.CTR,
		snap.Source,
	)
	if err != nil {
		return false, fmt.Errorf("upsert snapshot (%s, %s): %w", snap.SiteID, snap.Keyword, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListSnapshots returns rows matching the query, ordered by date descending.
func (s *RankingStore) ListSnapshots(ctx context.Context, q seo.SnapshotQuery) ([]seo.RankingSnapshot, error) {
	var (
		conds = []string{"site_id = $1"}
		args  = []any{q.SiteID}
	)
	if q.Keyword != "" {
		args = append(args, "%"+strings.ToLower(q.Keyword)+"%")
		conds = append(conds, fmt.Sprintf("lower(keyword) LIKE $%d", len(args)))
	}
	if q.StartDate != nil {
		args = append(args, *q.StartDate)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if q.EndDate != nil {
		args = append(args, *q.EndDate)
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 365
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT site_id, keyword, date, keyword_id, url, position,
			clicks, impressions, ctr, source
		FROM ranking_snapshots
		WHERE %s
		ORDER BY date DESC, keyword ASC
		LIMIT $%d;
	`, strings.Join(conds, " AND "), len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []seo.RankingSnapshot
	for rows.Next() {
		var snap seo.RankingSnapshot
		err := rows.Scan(
			&snap.SiteID,
			&snap.Keyword,
			&snap.Date,
			&snap.KeywordID,
			&snap.URL,
			&snap.Position,
			&snap.Clicks,
			&snap.Impressions,
			&snap.CTR,
			&snap.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}
