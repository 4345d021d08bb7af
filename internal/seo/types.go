// Package seo defines the domain types and collaborator interfaces shared
// by the crawl pipeline and the ranking history archiver.
package seo

import "time"

// JobStatus is the lifecycle state of a crawl job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is absorbing. A terminal job is
// never updated again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Site is a customer site registered for crawling.
type Site struct {
	ID         string `json:"id"`
	Domain     string `json:"domain"`
	SitemapURL string `json:"sitemap_url"`
}

// CrawlJob tracks one crawl invocation from queued to a terminal state.
type CrawlJob struct {
	ID          string       `json:"id"`
	SiteID      string       `json:"site_id"`
	Status      JobStatus    `json:"status"`
	Progress    int          `json:"progress"`
	Result      *CrawlResult `json:"result,omitempty"`
	ErrorText   string       `json:"error,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// CrawlResult summarizes a finished crawl.
type CrawlResult struct {
	TotalURLs int         `json:"total_urls"`
	Extracted int         `json:"extracted"`
	Created   int         `json:"created"`
	Updated   int         `json:"updated"`
	Errors    int         `json:"errors"`
	Details   []URLDetail `json:"details,omitempty"`
}

const (
	URLStatusOK    = "ok"
	URLStatusError = "error"
)

// URLDetail records the outcome for a single crawled URL.
type URLDetail struct {
	URL         string `json:"url"`
	Status      string `json:"status"`
	Title       string `json:"title,omitempty"`
	HealthScore int    `json:"health_score,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SitemapEntry is one page URL discovered through sitemap resolution.
type SitemapEntry struct {
	URL      string     `json:"url"`
	LastMod  *time.Time `json:"last_mod,omitempty"`
	Priority *float64   `json:"priority,omitempty"`
}

// PageMeta holds the on-page SEO signals extracted from a single document.
type PageMeta struct {
	URL  string `json:"url"`
	Path string `json:"path"`
	Raw  []byte `json:"-"`

	Title                 string `json:"title"`
	TitleLength           int    `json:"title_length"`
	MetaDescription       string `json:"meta_description"`
	MetaDescriptionLength int    `json:"meta_description_length"`
	H1                    string `json:"h1"`
	H1Count               int    `json:"h1_count"`
	CanonicalURL          string `json:"canonical_url"`
	Robots                string `json:"robots"`

	WordCount        int  `json:"word_count"`
	InternalLinks    int  `json:"internal_links"`
	ExternalLinks    int  `json:"external_links"`
	ImageCount       int  `json:"image_count"`
	ImagesMissingAlt int  `json:"images_missing_alt"`
	HasSchema        bool `json:"has_schema"`

	SchemaTypes []string `json:"schema_types,omitempty"`

	OGTitle       string `json:"og_title"`
	OGDescription string `json:"og_description"`
	OGImage       string `json:"og_image"`

	HealthScore int `json:"health_score"`
}

// PageRecord is the persisted form of PageMeta, keyed on (site id, path).
// FirstSeen is set on the first upsert and never changes after that.
type PageRecord struct {
	SiteID string `json:"site_id"`
	Path   string `json:"path"`
	URL    string `json:"url"`

	Title                 string `json:"title"`
	TitleLength           int    `json:"title_length"`
	MetaDescription       string `json:"meta_description"`
	MetaDescriptionLength int    `json:"meta_description_length"`
	H1                    string `json:"h1"`
	H1Count               int    `json:"h1_count"`
	CanonicalURL          string `json:"canonical_url"`
	Robots                string `json:"robots"`

	WordCount        int  `json:"word_count"`
	InternalLinks    int  `json:"internal_links"`
	ExternalLinks    int  `json:"external_links"`
	ImageCount       int  `json:"image_count"`
	ImagesMissingAlt int  `json:"images_missing_alt"`
	HasSchema        bool `json:"has_schema"`

	SchemaTypes []string `json:"schema_types,omitempty"`

	OGTitle       string `json:"og_title"`
	OGDescription string `json:"og_description"`
	OGImage       string `json:"og_image"`

	HealthScore int       `json:"health_score"`
	FirstSeen   time.Time `json:"first_seen"`
	LastCrawled time.Time `json:"last_crawled"`
}

// TrackedKeyword is a keyword a site owner monitors ranking position for.
type TrackedKeyword struct {
	ID       string   `json:"id"`
	SiteID   string   `json:"site_id"`
	Keyword  string   `json:"keyword"`
	Position *float64 `json:"position,omitempty"`
	URL      string   `json:"url,omitempty"`
}

// QueryPerformanceRow is one day of search-console performance data for a
// single query.
type QueryPerformanceRow struct {
	SiteID      string    `json:"site_id"`
	Query       string    `json:"query"`
	Clicks      int       `json:"clicks"`
	Impressions int       `json:"impressions"`
	CTR         float64   `json:"ctr"`
	Position    float64   `json:"position"`
	Page        string    `json:"page,omitempty"`
	Date        time.Time `json:"date"`
}

// Snapshot sources.
const (
	SourceGSC         = "gsc"
	SourceGSCBackfill = "gsc-backfill"
	SourceImport      = "import"
)

// RankingSnapshot is one dated ranking row, keyed on (site id, keyword,
// date). Position is null when the source had no rank for that day.
type RankingSnapshot struct {
	SiteID      string    `json:"site_id"`
	KeywordID   *string   `json:"keyword_id,omitempty"`
	Keyword     string    `json:"keyword"`
	Date        time.Time `json:"date"`
	URL         string    `json:"url,omitempty"`
	Position    *float64  `json:"position,omitempty"`
	Clicks      int       `json:"clicks"`
	Impressions int       `json:"impressions"`
	CTR         float64   `json:"ctr"`
	Source      string    `json:"source"`
}

// TrendSummary holds summary statistics over a window of ranking snapshots
// for one keyword. All fields except DataPoints are nil when the window has
// fewer than two rows with a position.
type TrendSummary struct {
	Current    *float64 `json:"current,omitempty"`
	Start      *float64 `json:"start,omitempty"`
	Average    *float64 `json:"average,omitempty"`
	Best       *float64 `json:"best,omitempty"`
	Worst      *float64 `json:"worst,omitempty"`
	Change     *float64 `json:"change,omitempty"`
	DataPoints int      `json:"data_points"`
}
