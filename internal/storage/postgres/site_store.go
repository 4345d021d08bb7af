package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// SiteStore implements seo.SiteStore using Postgres.
type SiteStore struct {
	db Querier
}

// NewSiteStore creates a SiteStore on an existing pool.
func NewSiteStore(db Querier) *SiteStore {
	return &SiteStore{db: db}
}

// GetSite retrieves a site by ID.
func (s *SiteStore) GetSite(ctx context.Context, siteID string) (seo.Site, error) {
	query := `SELECT id, domain, sitemap_url FROM sites WHERE id = $1;`
	var site seo.Site
	err := s.db.QueryRow(ctx, query, siteID).Scan(&site.ID, &site.Domain, &site.SitemapURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.Site{}, seo.ErrNotFound
	}
	if err != nil {
		return seo.Site{}, fmt.Errorf("get site %s: %w", siteID, err)
	}
	return site, nil
}

// KeywordStore implements seo.KeywordStore using Postgres.
type KeywordStore struct {
	db Querier
}

// NewKeywordStore creates a KeywordStore on an existing pool.
func NewKeywordStore(db Querier) *KeywordStore {
	return &KeywordStore{db: db}
}

// ListTrackedKeywords returns all tracked keywords for a site.
func (s *KeywordStore) ListTrackedKeywords(ctx context.Context, siteID string) ([]seo.TrackedKeyword, error) {
	query := `
		SELECT id, site_id, keyword, position, url
		FROM tracked_keywords
		WHERE site_id = $1
		ORDER BY keyword;
	`
	rows, err := s.db.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("list tracked keywords: %w", err)
	}
	defer rows.Close()

	var out []seo.TrackedKeyword
	for rows.Next() {
		var (
			kw  seo.TrackedKeyword
			url *string
		)
		if err := rows.Scan(&kw.ID, &kw.SiteID, &kw.Keyword, &kw.Position, &url); err != nil {
			return nil, fmt.Errorf("scan tracked keyword: %w", err)
		}
		if url != nil {
			kw.URL = *url
		}
		out = append(out, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked keywords: %w", err)
	}
	return out, nil
}

// ListQueryPerformance returns a site's query-performance rows for one day.
func (s *KeywordStore) ListQueryPerformance(
	ctx context.Context,
	siteID string,
	day time.Time,
) ([]seo.QueryPerformanceRow, error) {
	query := `
		SELECT site_id, query, clicks, impressions, ctr, position, page, date
		FROM query_performance
		WHERE site_id = $1 AND date = $2
		ORDER BY query;
	`
	rows, err := s.db.Query(ctx, query, siteID, day)
	if err != nil {
		return nil, fmt.Errorf("list query performance: %w", err)
	}
	defer rows.Close()

	var out []seo.QueryPerformanceRow
	for rows.Next() {
		var (
			row  seo.QueryPerformanceRow
			page *string
		)
		err := rows.Scan(
			&row.SiteID,
			&row.Query,
			&row.Clicks,
			&row.Impressions,
			&row.CTR,
			&row.Position,
			&page,
			&row.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("scan query performance row: %w", err)
		}
		if page != nil {
			row.Page = *page
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query performance rows: %w", err)
	}
	return out, nil
}
