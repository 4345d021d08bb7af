package orchestrator

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agencykit/seo-pipeline/internal/metrics"
	"github.com/agencykit/seo-pipeline/internal/seo"
	"github.com/agencykit/seo-pipeline/internal/storage/memory"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

type fakeResolver struct {
	entries []seo.SitemapEntry
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, _ string) ([]seo.SitemapEntry, error) {
	return f.entries, f.err
}

type fakeExtractor struct {
	pages map[string]seo.PageMeta
	fail  map[string]error
	panic map[string]bool
}

func (f *fakeExtractor) Extract(_ context.Context, _ string, pageURL string) (seo.PageMeta, error) {
	if f.panic[pageURL] {
		panic("extractor blew up")
	}
	if err, ok := f.fail[pageURL]; ok {
		return seo.PageMeta{URL: pageURL}, err
	}
	meta, ok := f.pages[pageURL]
	if !ok {
		return seo.PageMeta{URL: pageURL}, fmt.Errorf("unexpected url %s", pageURL)
	}
	return meta, nil
}

type env struct {
	sites     *memory.SiteStore
	jobs      *memory.JobStore
	pages     *memory.PageStore
	blobs     *memory.BlobStore
	resolver  *fakeResolver
	extractor *fakeExtractor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		sites:     memory.NewSiteStore(),
		jobs:      memory.NewJobStore(),
		pages:     memory.NewPageStore(),
		blobs:     memory.NewBlobStore(),
		resolver:  &fakeResolver{},
		extractor: &fakeExtractor{pages: map[string]seo.PageMeta{}, fail: map[string]error{}, panic: map[string]bool{}},
	}
	e.sites.PutSite(seo.Site{ID: "s1", Domain: "example.com", SitemapURL: "https://example.com/sitemap.xml"})
	require.NoError(t, e.jobs.CreateJob(context.Background(), seo.CrawlJob{ID: "j1", SiteID: "s1"}))
	return e
}

func (e *env) orchestrator(opts Options) *Orchestrator {
	if opts.Pause == 0 {
		opts.Pause = time.Millisecond
	}
	return New(e.sites, e.jobs, e.pages, e.resolver, e.extractor, e.blobs, nil, opts, zap.NewNop())
}

func pageMeta(pageURL, path, title string) seo.PageMeta {
	return seo.PageMeta{URL: pageURL, Path: path, Title: title, TitleLength: len(title), HealthScore: 60}
}

func TestRunCompletesWithPartialFailures(t *testing.T) {
	e := newEnv(t)
	e.resolver.entries = []seo.SitemapEntry{
		{URL: "https://example.com/"},
		{URL: "https://example.com/broken"},
		{URL: "https://example.com/about"},
	}
	e.extractor.pages["https://example.com/"] = pageMeta("https://example.com/", "/", "Home")
	e.extractor.pages["https://example.com/about"] = pageMeta("https://example.com/about", "/about", "About")
	e.extractor.fail["https://example.com/broken"] = fmt.Errorf("status 500")

	require.NoError(t, e.orchestrator(Options{}).Run(context.Background(), "j1", "s1"))

	job, err := e.jobs.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, seo.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.Result)
	assert.Equal(t, 3, job.Result.TotalURLs)
	assert.Equal(t, 2, job.Result.Extracted)
	assert.Equal(t, 1, job.Result.Errors)
	assert.Equal(t, 2, job.Result.Created+job.Result.Updated)
	require.Len(t, job.Result.Details, 3)
	assert.Equal(t, seo.URLStatusError, job.Result.Details[1].Status)
	assert.Contains(t, job.Result.Details[1].Error, "status 500")

	assert.Equal(t, 2, e.pages.Count())
}

func TestRunMissingSiteFailsJob(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.orchestrator(Options{}).Run(context.Background(), "j1", "ghost"))

	job, err := e.jobs.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, seo.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorText, "site not found")
}

func TestRunSitemapFailureFailsJob(t *testing.T) {
	e := newEnv(t)
	e.resolver.err = fmt.Errorf("fetch sitemap: connection refused")

	require.NoError(t, e.orchestrator(Options{}).Run(context.Background(), "j1", "s1"))

	job, err := e.jobs.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, seo.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorText, "sitemap resolution failed")
	assert.Contains(t, job.ErrorText, "connection refused")
}

func TestRunRecoversFromPanic(t *testing.T) {
	e := newEnv(t)
	e.resolver.entries = []seo.SitemapEntry{{URL: "https://example.com/boom"}}
	e.extractor.panic["https://example.com/boom"] = true

	err := e.orchestrator(Options{}).Run(context.Background(), "j1", "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extractor blew up")

	job, getErr := e.jobs.GetJob(context.Background(), "j1")
	require.NoError(t, getErr)
	assert.Equal(t, seo.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorText, "extractor blew up")
}

func TestRunSecondCrawlUpdatesExistingPages(t *testing.T) {
	e := newEnv(t)
	e.resolver.entries = []seo.SitemapEntry{{URL: "https://example.com/about"}}
	e.extractor.pages["https://example.com/about"] = pageMeta("https://example.com/about", "/about", "About")

	require.NoError(t, e.orchestrator(Options{}).Run(context.Background(), "j1", "s1"))
	require.NoError(t, e.jobs.CreateJob(context.Background(), seo.CrawlJob{ID: "j2", SiteID: "s1"}))
	require.NoError(t, e.orchestrator(Options{}).Run(context.Background(), "j2", "s1"))

	job, err := e.jobs.GetJob(context.Background(), "j2")
	require.NoError(t, err)
	require.NotNil(t, job.Result)
	assert.Equal(t, 0, job.Result.Created)
	assert.Equal(t, 1, job.Result.Updated)
	assert.Equal(t, 1, e.pages.Count())
}

func TestRunArchivesRawPages(t *testing.T) {
	e := newEnv(t)
	e.resolver.entries = []seo.SitemapEntry{{URL: "https://example.com/"}}
	meta := pageMeta("https://example.com/", "/", "Home")
	meta.Raw = []byte("<html><title>Home</title></html>")
	e.extractor.pages["https://example.com/"] = meta

	o := e.orchestrator(Options{ArchiveRawPages: true, ArchivePrefix: "raw"})
	require.NoError(t, o.Run(context.Background(), "j1", "s1"))

	data, ok := e.blobs.Get("raw/j1/index.html")
	require.True(t, ok)
	assert.Contains(t, string(data), "<title>Home</title>")
}

func TestArchivePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "j1/index.html", archivePath("", "j1", "/"))
	assert.Equal(t, "raw/j1/about.html", archivePath("raw", "j1", "/about"))
	assert.Equal(t, "raw/j1/blog-post.html", archivePath("raw/", "j1", "/blog/post/"))
}
