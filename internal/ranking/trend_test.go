package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

func snapAt(daysAgo int, position *float64) seo.RankingSnapshot {
	return seo.RankingSnapshot{
		SiteID:   "s1",
		Keyword:  "shoes",
		Date:     day.AddDate(0, 0, -daysAgo),
		Position: position,
	}
}

func TestTrendTwoPointWindow(t *testing.T) {
	t.Parallel()

	summary := Trend([]seo.RankingSnapshot{
		snapAt(0, ptr(10)),
		snapAt(7, ptr(20)),
	})

	assert.Equal(t, 10.0, *summary.Current)
	assert.Equal(t, 20.0, *summary.Start)
	assert.Equal(t, 10.0, *summary.Best)
	assert.Equal(t, 20.0, *summary.Worst)
	assert.Equal(t, 15.0, *summary.Average)
	assert.Equal(t, 10.0, *summary.Change)
	assert.Equal(t, 2, summary.DataPoints)
}

func TestTrendExcludesRowsWithoutPosition(t *testing.T) {
	t.Parallel()

	summary := Trend([]seo.RankingSnapshot{
		snapAt(0, ptr(4)),
		snapAt(1, nil),
		snapAt(2, ptr(6)),
		snapAt(3, nil),
		snapAt(4, ptr(8)),
	})

	assert.Equal(t, 3, summary.DataPoints)
	assert.Equal(t, 4.0, *summary.Current)
	assert.Equal(t, 8.0, *summary.Start)
	assert.Equal(t, 4.0, *summary.Best)
	assert.Equal(t, 8.0, *summary.Worst)
	assert.Equal(t, 6.0, *summary.Average)
	assert.Equal(t, 4.0, *summary.Change)
}

func TestTrendTooFewPoints(t *testing.T) {
	t.Parallel()

	for _, window := range [][]seo.RankingSnapshot{
		nil,
		{snapAt(0, ptr(3))},
		{snapAt(0, nil), snapAt(1, nil)},
	} {
		summary := Trend(window)
		assert.Nil(t, summary.Current)
		assert.Nil(t, summary.Start)
		assert.Nil(t, summary.Average)
		assert.Nil(t, summary.Best)
		assert.Nil(t, summary.Worst)
		assert.Nil(t, summary.Change)
	}
}

func TestTrendDecliningKeyword(t *testing.T) {
	t.Parallel()

	summary := Trend([]seo.RankingSnapshot{
		snapAt(0, ptr(18)),
		snapAt(7, ptr(5)),
	})

	assert.Equal(t, -13.0, *summary.Change)
}

func TestTrendWindowOrderIsDateDescending(t *testing.T) {
	t.Parallel()

	// Current comes from the newest row, start from the oldest.
	oldest := snapAt(30, ptr(25))
	newest := snapAt(0, ptr(2))
	summary := Trend([]seo.RankingSnapshot{newest, snapAt(15, ptr(12)), oldest})

	assert.Equal(t, 2.0, *summary.Current)
	assert.Equal(t, 25.0, *summary.Start)
}
