// Package ranking builds the keyword ranking history: daily snapshots of
// tracked-keyword positions, historical imports, and trend statistics over
// a stored window.
package ranking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// Result summarizes one archiver action.
type Result struct {
	Archived int    `json:"archived"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message,omitempty"`
}

// ImportRow is one externally supplied historical ranking row. Date must be
// formatted as YYYY-MM-DD.
type ImportRow struct {
	Keyword     string   `json:"keyword"`
	Date        string   `json:"date"`
	Position    *float64 `json:"position"`
	URL         string   `json:"url,omitempty"`
	Clicks      int      `json:"clicks,omitempty"`
	Impressions int      `json:"impressions,omitempty"`
	CTR         float64  `json:"ctr,omitempty"`
}

// Archiver writes ranking snapshots. All three entry points are idempotent
// for the same (site, date) pair.
type Archiver struct {
	keywords seo.KeywordStore
	rankings seo.RankingStore
	clock    seo.Clock
	logger   *zap.Logger
}

// NewArchiver constructs an Archiver.
func NewArchiver(
	keywords seo.KeywordStore,
	rankings seo.RankingStore,
	clock seo.Clock,
	logger *zap.Logger,
) *Archiver {
	return &Archiver{
		keywords: keywords,
		rankings: rankings,
		clock:    clock,
		logger:   logger,
	}
}

// Snapshot archives today's position for every tracked keyword that has
// one, joining query-performance rows by case-insensitive keyword match.
// Re-running on the same day overwrites that day's rows.
func (a *Archiver) Snapshot(ctx context.Context, siteID string) (Result, error) {
	keywords, err := a.keywords.ListTrackedKeywords(ctx, siteID)
	if err != nil {
		return Result{}, fmt.Errorf("list tracked keywords: %w", err)
	}

	var ranked []seo.TrackedKeyword
	for _, kw := range keywords {
		if kw.Position != nil {
			ranked = append(ranked, kw)
		}
	}
	if len(ranked) == 0 {
		return Result{Message: "no tracked keywords have a position"}, nil
	}

	today := dateOf(a.clock.Now())
	perf, err := a.keywords.ListQueryPerformance(ctx, siteID, today)
	if err != nil {
		return Result{}, fmt.Errorf("list query performance: %w", err)
	}
	perfByQuery := make(map[string]seo.QueryPerformanceRow, len(perf))
	for _, row := range perf {
		perfByQuery[strings.ToLower(row.Query)] = row
	}

	var res Result
	for _, kw := range ranked {
		snap := seo.RankingSnapshot{
			SiteID:    siteID,
			KeywordID: &kw.ID,
			Keyword:   kw.Keyword,
			Date:      today,
			URL:       kw.URL,
			Position:  kw.Position,
			Source:    seo.SourceGSC,
		}
		if row, ok := perfByQuery[strings.ToLower(kw.Keyword)]; ok {
			snap.Clicks = row.Clicks
			snap.Impressions = row.Impressions
			snap.CTR = row.CTR
			if snap.URL == "" {
				snap.URL = row.Page
			}
		}
		if _, err := a.rankings.UpsertSnapshot(ctx, snap, true); err != nil {
			return res, fmt.Errorf("archive keyword %q: %w", kw.Keyword, err)
		}
		res.Archived++
	}

	a.logger.Info("ranking snapshot archived",
		zap.String("site_id", siteID),
		zap.Int("archived", res.Archived),
	)
	return res, nil
}

// Import stores externally supplied historical rows. Rows missing a
// keyword, date, or position are dropped; duplicate keys are left untouched
// rather than overwritten.
func (a *Archiver) Import(ctx context.Context, siteID string, rows []ImportRow) (Result, error) {
	var res Result
	for _, row := range rows {
		if row.Keyword == "" || row.Date == "" || row.Position == nil {
			res.Skipped++
			continue
		}
		date, err := time.ParseInLocation("2006-01-02", row.Date, time.UTC)
		if err != nil {
			res.Skipped++
			continue
		}
		snap := seo.RankingSnapshot{
			SiteID:      siteID,
			Keyword:     row.Keyword,
			Date:        date,
			URL:         row.URL,
			Position:    row.Position,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.CTR,
			Source:      seo.SourceImport,
		}
		stored, err := a.rankings.UpsertSnapshot(ctx, snap, false)
		if err != nil {
			return res, fmt.Errorf("import keyword %q: %w", row.Keyword, err)
		}
		if stored {
			res.Archived++
		} else {
			res.Skipped++
		}
	}

	a.logger.Info("ranking history imported",
		zap.String("site_id", siteID),
		zap.Int("imported", res.Archived),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// Backfill matches today's query-performance rows against tracked keywords
// by case-insensitive exact match and stores one snapshot per match,
// leaving existing rows untouched.
func (a *Archiver) Backfill(ctx context.Context, siteID string) (Result, error) {
	keywords, err := a.keywords.ListTrackedKeywords(ctx, siteID)
	if err != nil {
		return Result{}, fmt.Errorf("list tracked keywords: %w", err)
	}
	tracked := make(map[string]seo.TrackedKeyword, len(keywords))
	for _, kw := range keywords {
		tracked[strings.ToLower(kw.Keyword)] = kw
	}

	today := dateOf(a.clock.Now())
	perf, err := a.keywords.ListQueryPerformance(ctx, siteID, today)
	if err != nil {
		return Result{}, fmt.Errorf("list query performance: %w", err)
	}

	var res Result
	for _, row := range perf {
		kw, ok := tracked[strings.ToLower(row.Query)]
		if !ok {
			res.Skipped++
			continue
		}
		pos := row.Position
		snap := seo.RankingSnapshot{
			SiteID:      siteID,
			KeywordID:   &kw.ID,
			Keyword:     kw.Keyword,
			Date:        today,
			URL:         row.Page,
			Position:    &pos,
			Clicks:      row.Clicks,
			Impressions: row.Impressions,
			CTR:         row.CTR,
			Source:      seo.SourceGSCBackfill,
		}
		stored, err := a.rankings.UpsertSnapshot(ctx, snap, false)
		if err != nil {
			return res, fmt.Errorf("backfill keyword %q: %w", kw.Keyword, err)
		}
		if stored {
			res.Archived++
		} else {
			res.Skipped++
		}
	}

	a.logger.Info("ranking history backfilled",
		zap.String("site_id", siteID),
		zap.Int("archived", res.Archived),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
