package seo

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrTerminal is returned when a mark targets a job already in a terminal
// state.
var ErrTerminal = errors.New("job is in a terminal state")

// SiteStore reads registered sites.
type SiteStore interface {
	GetSite(ctx context.Context, siteID string) (Site, error)
}

// MarkOptions carries the optional fields of a job update. Nil fields are
// left unchanged.
type MarkOptions struct {
	Progress *int
	Result   *CrawlResult
	Error    *string
}

// JobStore persists crawl jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job CrawlJob) error
	Mark(ctx context.Context, jobID string, status JobStatus, opts MarkOptions) error
	GetJob(ctx context.Context, jobID string) (CrawlJob, error)
}

// PageStore persists page records. UpsertPage reports whether the row was
// created rather than updated.
type PageStore interface {
	UpsertPage(ctx context.Context, rec PageRecord) (bool, error)
	GetPage(ctx context.Context, siteID, path string) (PageRecord, error)
}

// KeywordStore reads tracked keywords and query-performance data.
type KeywordStore interface {
	ListTrackedKeywords(ctx context.Context, siteID string) ([]TrackedKeyword, error)
	ListQueryPerformance(ctx context.Context, siteID string, day time.Time) ([]QueryPerformanceRow, error)
}

// SnapshotQuery filters a ranking snapshot listing. Keyword is a
// case-insensitive substring match; date bounds are inclusive.
type SnapshotQuery struct {
	SiteID    string
	Keyword   string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
}

// RankingStore persists ranking snapshots. UpsertSnapshot reports whether
// the row was stored; with overwrite false a duplicate key is silently
// skipped.
type RankingStore interface {
	UpsertSnapshot(ctx context.Context, snap RankingSnapshot, overwrite bool) (bool, error)
	ListSnapshots(ctx context.Context, q SnapshotQuery) ([]RankingSnapshot, error)
}

// FetchRequest describes one outbound page fetch.
type FetchRequest struct {
	URL       string
	UserAgent string
}

// FetchResponse is the outcome of a successful fetch.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// BlobStore writes raw page archives. PutObject returns the stored
// object's URI.
type BlobStore interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Publisher emits job completion events.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Clock supplies the current time, injectable for tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints identifiers for new records.
type IDGenerator interface {
	NewID() string
}
