package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

func TestJobStore_StateMachine(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewJobStore()
	require.NoError(t, store.CreateJob(ctx, seo.CrawlJob{ID: "j1", SiteID: "s1"}))

	ten := 10
	require.NoError(t, store.Mark(ctx, "j1", seo.JobStatusProcessing, seo.MarkOptions{Progress: &ten}))

	job, err := store.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, seo.JobStatusProcessing, job.Status)
	assert.Equal(t, 10, job.Progress)
	assert.Nil(t, job.CompletedAt)

	// Progress never moves backwards.
	five := 5
	require.NoError(t, store.Mark(ctx, "j1", seo.JobStatusProcessing, seo.MarkOptions{Progress: &five}))
	job, _ = store.GetJob(ctx, "j1")
	assert.Equal(t, 10, job.Progress)

	hundred := 100
	result := &seo.CrawlResult{TotalURLs: 3, Extracted: 3}
	require.NoError(t, store.Mark(ctx, "j1", seo.JobStatusCompleted, seo.MarkOptions{
		Progress: &hundred,
		Result:   result,
	}))
	job, _ = store.GetJob(ctx, "j1")
	assert.Equal(t, seo.JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)
	require.NotNil(t, job.Result)
	assert.Equal(t, 3, job.Result.TotalURLs)

	// Terminal states absorb further transitions.
	err = store.Mark(ctx, "j1", seo.JobStatusFailed, seo.MarkOptions{})
	assert.ErrorIs(t, err, seo.ErrTerminal)
	job, _ = store.GetJob(ctx, "j1")
	assert.Equal(t, seo.JobStatusCompleted, job.Status)
}

func TestJobStore_MarkUnknownJob(t *testing.T) {
	t.Parallel()

	err := NewJobStore().Mark(context.Background(), "missing", seo.JobStatusProcessing, seo.MarkOptions{})
	assert.ErrorIs(t, err, seo.ErrNotFound)
}

func TestPageStore_UpsertPreservesFirstSeen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewPageStore()

	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.SetNow(func() time.Time { return t0 })

	created, err := store.UpsertPage(ctx, seo.PageRecord{SiteID: "s1", Path: "/about", Title: "About v1"})
	require.NoError(t, err)
	assert.True(t, created)

	t1 := t0.Add(48 * time.Hour)
	store.SetNow(func() time.Time { return t1 })

	created, err = store.UpsertPage(ctx, seo.PageRecord{SiteID: "s1", Path: "/about", Title: "About v2"})
	require.NoError(t, err)
	assert.False(t, created)

	rec, err := store.GetPage(ctx, "s1", "/about")
	require.NoError(t, err)
	assert.Equal(t, "About v2", rec.Title)
	assert.Equal(t, t0, rec.FirstSeen)
	assert.Equal(t, t1, rec.LastCrawled)
	assert.Equal(t, 1, store.Count())
}

func TestRankingStore_OverwriteVersusIgnore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRankingStore()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	pos5, pos7 := 5.0, 7.0

	first := seo.RankingSnapshot{SiteID: "s1", Keyword: "shoes", Date: day, Position: &pos5, Source: seo.SourceGSC}
	stored, err := store.UpsertSnapshot(ctx, first, true)
	require.NoError(t, err)
	assert.True(t, stored)

	// Overwrite: the second call's values win, still one row.
	second := first
	second.Position = &pos7
	stored, err = store.UpsertSnapshot(ctx, second, true)
	require.NoError(t, err)
	assert.True(t, stored)

	rows, err := store.ListSnapshots(ctx, seo.SnapshotQuery{SiteID: "s1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 7.0, *rows[0].Position)

	// Ignore: the first row stays untouched on a duplicate key.
	third := first
	stored, err = store.UpsertSnapshot(ctx, third, false)
	require.NoError(t, err)
	assert.False(t, stored)

	rows, _ = store.ListSnapshots(ctx, seo.SnapshotQuery{SiteID: "s1"})
	require.Len(t, rows, 1)
	assert.Equal(t, 7.0, *rows[0].Position)
}

func TestRankingStore_QueryFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewRankingStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		pos := float64(i + 1)
		_, err := store.UpsertSnapshot(ctx, seo.RankingSnapshot{
			SiteID:   "s1",
			Keyword:  "running shoes",
			Date:     base.AddDate(0, 0, i),
			Position: &pos,
			Source:   seo.SourceGSC,
		}, true)
		require.NoError(t, err)
	}

	start := base.AddDate(0, 0, 1)
	end := base.AddDate(0, 0, 3)
	rows, err := store.ListSnapshots(ctx, seo.SnapshotQuery{
		SiteID:    "s1",
		Keyword:   "shoes",
		StartDate: &start,
		EndDate:   &end,
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Date descending.
	assert.True(t, rows[0].Date.After(rows[1].Date))
	assert.True(t, rows[1].Date.After(rows[2].Date))

	rows, err = store.ListSnapshots(ctx, seo.SnapshotQuery{SiteID: "s1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = store.ListSnapshots(ctx, seo.SnapshotQuery{SiteID: "s1", Keyword: "boots"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestBlobStore_PutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "pages/j1/about.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	assert.Equal(t, "mem://pages/j1/about.html", uri)

	data, ok := store.Get("pages/j1/about.html")
	require.True(t, ok)
	assert.Equal(t, []byte("<html/>"), data)
}
