// Package orchestrator drives a crawl job end-to-end: sitemap resolution,
// per-page metadata extraction, page upserts, and job bookkeeping.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agencykit/seo-pipeline/internal/metrics"
	"github.com/agencykit/seo-pipeline/internal/seo"
)

// SitemapResolver flattens a sitemap or sitemap index into page entries.
type SitemapResolver interface {
	Resolve(ctx context.Context, sitemapURL string) ([]seo.SitemapEntry, error)
}

// MetadataExtractor fetches one page and extracts its SEO signals.
type MetadataExtractor interface {
	Extract(ctx context.Context, siteDomain, pageURL string) (seo.PageMeta, error)
}

// Options tunes the crawl loop. Zero values fall back to the defaults
// below.
type Options struct {
	// Pause is the polite delay inserted every PauseEvery URLs.
	Pause      time.Duration
	PauseEvery int
	// ProgressEvery is how many URLs pass between job progress updates.
	ProgressEvery int
	// ArchiveRawPages stores each fetched document in the blob store.
	ArchiveRawPages bool
	ArchivePrefix   string
}

const (
	defaultPause         = 200 * time.Millisecond
	defaultPauseEvery    = 5
	defaultProgressEvery = 10
)

// Orchestrator owns one crawl job at a time. The blob store and publisher
// are optional; a nil value disables that step.
type Orchestrator struct {
	sites     seo.SiteStore
	jobs      seo.JobStore
	pages     seo.PageStore
	resolver  SitemapResolver
	extractor MetadataExtractor
	blobs     seo.BlobStore
	publisher seo.Publisher
	opts      Options
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	sites seo.SiteStore,
	jobs seo.JobStore,
	pages seo.PageStore,
	resolver SitemapResolver,
	extractor MetadataExtractor,
	blobs seo.BlobStore,
	publisher seo.Publisher,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	if opts.Pause <= 0 {
		opts.Pause = defaultPause
	}
	if opts.PauseEvery <= 0 {
		opts.PauseEvery = defaultPauseEvery
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	return &Orchestrator{
		sites:     sites,
		jobs:      jobs,
		pages:     pages,
		resolver:  resolver,
		extractor: extractor,
		blobs:     blobs,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

// Run executes the crawl for one job. Per-page failures are tallied and the
// job completes; only a missing site, a sitemap failure, or a panic marks
// the job failed. The returned error reports infrastructure problems
// (store writes), not crawl outcomes.
func (o *Orchestrator) Run(ctx context.Context, jobID, siteID string) (err error) {
	logger := o.logger.With(zap.String("job_id", jobID), zap.String("site_id", siteID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("crawl panicked", zap.Any("panic", r))
			o.fail(ctx, jobID, fmt.Sprintf("crawl panicked: %v", r))
			metrics.ObserveJob(string(seo.JobStatusFailed))
			err = fmt.Errorf("crawl panicked: %v", r)
		}
	}()

	if err := o.mark(ctx, jobID, seo.JobStatusProcessing, progress(5)); err != nil {
		return err
	}

	site, err := o.sites.GetSite(ctx, siteID)
	if err != nil {
		logger.Warn("site lookup failed", zap.Error(err))
		o.fail(ctx, jobID, fmt.Sprintf("site not found: %s", siteID))
		metrics.ObserveJob(string(seo.JobStatusFailed))
		return nil
	}

	if err := o.mark(ctx, jobID, seo.JobStatusProcessing, progress(10)); err != nil {
		return err
	}
	entries, err := o.resolver.Resolve(ctx, site.SitemapURL)
	if err != nil {
		logger.Warn("sitemap resolution failed", zap.Error(err))
		o.fail(ctx, jobID, fmt.Sprintf("sitemap resolution failed: %v", err))
		metrics.ObserveJob(string(seo.JobStatusFailed))
		return nil
	}
	if err := o.mark(ctx, jobID, seo.JobStatusProcessing, progress(20)); err != nil {
		return err
	}

	result := o.crawl(ctx, jobID, site, entries, logger)

	if err := o.mark(ctx, jobID, seo.JobStatusCompleted, seo.MarkOptions{
		Progress: intp(100),
		Result:   &result,
	}); err != nil {
		return err
	}
	metrics.ObserveJob(string(seo.JobStatusCompleted))
	logger.Info("crawl completed",
		zap.Int("total_urls", result.TotalURLs),
		zap.Int("extracted", result.Extracted),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.Errors),
	)

	o.publishCompletion(ctx, jobID, site, result, logger)
	return nil
}

func (o *Orchestrator) crawl(
	ctx context.Context,
	jobID string,
	site seo.Site,
	entries []seo.SitemapEntry,
	logger *zap.Logger,
) seo.CrawlResult {
	result := seo.CrawlResult{TotalURLs: len(entries)}

	for i, entry := range entries {
		meta, err := o.extractor.Extract(ctx, site.Domain, entry.URL)
		if err != nil {
			result.Errors++
			result.Details = append(result.Details, seo.URLDetail{
				URL:    entry.URL,
				Status: seo.URLStatusError,
				Error:  err.Error(),
			})
			metrics.ObservePage(site.Domain, seo.URLStatusError, 0)
			logger.Debug("page extraction failed", zap.String("url", entry.URL), zap.Error(err))
		} else {
			result.Extracted++
			created, upsertErr := o.pages.UpsertPage(ctx, recordOf(site.ID, meta))
			if upsertErr != nil {
				result.Errors++
				result.Extracted--
				result.Details = append(result.Details, seo.URLDetail{
					URL:    entry.URL,
					Status: seo.URLStatusError,
					Error:  upsertErr.Error(),
				})
				metrics.ObservePage(site.Domain, seo.URLStatusError, 0)
				logger.Warn("page upsert failed", zap.String("url", entry.URL), zap.Error(upsertErr))
			} else {
				if created {
					result.Created++
				} else {
					result.Updated++
				}
				result.Details = append(result.Details, seo.URLDetail{
					URL:         entry.URL,
					Status:      seo.URLStatusOK,
					Title:       meta.Title,
					HealthScore: meta.HealthScore,
				})
				metrics.ObservePage(site.Domain, seo.URLStatusOK, meta.HealthScore)
				o.archiveRaw(ctx, jobID, meta, logger)
			}
		}

		done := i + 1
		if done%o.opts.ProgressEvery == 0 && done < len(entries) {
			pct := 20 + (done*70)/len(entries)
			if err := o.mark(ctx, jobID, seo.JobStatusProcessing, progress(pct)); err != nil {
				logger.Warn("progress update failed", zap.Error(err))
			}
		}
		if done%o.opts.PauseEvery == 0 && done < len(entries) {
			select {
			case <-time.After(o.opts.Pause):
			case <-ctx.Done():
			}
		}
	}
	return result
}

// archiveRaw stores the fetched document when archival is configured. A
// failed write is logged and never fails the page.
func (o *Orchestrator) archiveRaw(ctx context.Context, jobID string, meta seo.PageMeta, logger *zap.Logger) {
	if !o.opts.ArchiveRawPages || o.blobs == nil || len(meta.Raw) == 0 {
		return
	}
	path := archivePath(o.opts.ArchivePrefix, jobID, meta.Path)
	uri, err := o.blobs.PutObject(ctx, path, "text/html", meta.Raw)
	if err != nil {
		logger.Warn("raw page archive failed", zap.String("url", meta.URL), zap.Error(err))
		return
	}
	logger.Debug("raw page archived", zap.String("uri", uri))
}

func (o *Orchestrator) publishCompletion(
	ctx context.Context,
	jobID string,
	site seo.Site,
	result seo.CrawlResult,
	logger *zap.Logger,
) {
	if o.publisher == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"job_id":    jobID,
		"site_id":   site.ID,
		"domain":    site.Domain,
		"extracted": result.Extracted,
		"errors":    result.Errors,
	})
	if err != nil {
		logger.Warn("completion payload encoding failed", zap.Error(err))
		return
	}
	id, err := o.publisher.Publish(ctx, payload, map[string]string{
		"event":  "crawl.completed",
		"job_id": jobID,
	})
	if err != nil {
		logger.Warn("completion publish failed", zap.Error(err))
		return
	}
	logger.Debug("completion event published", zap.String("message_id", id))
}

// mark wraps JobStore.Mark, tolerating a terminal job.
func (o *Orchestrator) mark(ctx context.Context, jobID string, status seo.JobStatus, opts seo.MarkOptions) error {
	err := o.jobs.Mark(ctx, jobID, status, opts)
	if errors.Is(err, seo.ErrTerminal) {
		o.logger.Warn("job already terminal", zap.String("job_id", jobID))
		return nil
	}
	return err
}

func (o *Orchestrator) fail(ctx context.Context, jobID, message string) {
	if err := o.mark(ctx, jobID, seo.JobStatusFailed, seo.MarkOptions{Error: &message}); err != nil {
		o.logger.Error("failed to mark job failed",
			zap.String("job_id", jobID), zap.Error(err))
	}
}

func recordOf(siteID string, meta seo.PageMeta) seo.PageRecord {
	return seo.PageRecord{
		SiteID:                siteID,
		Path:                  meta.Path,
		URL:                   meta.URL,
		Title:                 meta.Title,
		TitleLength:           meta.TitleLength,
		MetaDescription:       meta.MetaDescription,
		MetaDescriptionLength: meta.MetaDescriptionLength,
		H1:                    meta.H1,
		H1Count:               meta.H1Count,
		CanonicalURL:          meta.CanonicalURL,
		Robots:                meta.Robots,
		WordCount:             meta.WordCount,
		InternalLinks:         meta.InternalLinks,
		ExternalLinks:         meta.ExternalLinks,
		ImageCount:            meta.ImageCount,
		ImagesMissingAlt:      meta.ImagesMissingAlt,
		HasSchema:             meta.HasSchema,
		SchemaTypes:           meta.SchemaTypes,
		OGTitle:               meta.OGTitle,
		OGDescription:         meta.OGDescription,
		OGImage:               meta.OGImage,
		HealthScore:           meta.HealthScore,
	}
}

// archivePath builds a blob path like prefix/jobID/about.html from the
// page path.
func archivePath(prefix, jobID, pagePath string) string {
	slug := strings.Trim(pagePath, "/")
	if slug == "" {
		slug = "index"
	}
	slug = strings.ReplaceAll(slug, "/", "-")
	slug = url.PathEscape(slug)
	parts := []string{jobID, slug + ".html"}
	if prefix != "" {
		parts = append([]string{strings.Trim(prefix, "/")}, parts...)
	}
	return strings.Join(parts, "/")
}

func progress(pct int) seo.MarkOptions {
	return seo.MarkOptions{Progress: &pct}
}

func intp(v int) *int { return &v }

