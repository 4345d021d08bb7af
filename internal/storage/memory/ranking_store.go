package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

type snapshotKey struct {
	siteID  string
	keyword string
	date    string
}

// RankingStore implements seo.RankingStore in memory.
type RankingStore struct {
	mu   sync.RWMutex
	rows map[snapshotKey]seo.RankingSnapshot
}

// NewRankingStore constructs a RankingStore.
func NewRankingStore() *RankingStore {
	return &RankingStore{rows: make(map[snapshotKey]seo.RankingSnapshot)}
}

func keyOf(snap seo.RankingSnapshot) snapshotKey {
	return snapshotKey{
		siteID:  snap.SiteID,
		keyword: strings.ToLower(snap.Keyword),
		date:    snap.Date.Format("2006-01-02"),
	}
}

// UpsertSnapshot stores one row keyed on (site id, keyword, date).
func (s *RankingStore) UpsertSnapshot(_ context.Context, snap seo.RankingSnapshot, overwrite bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyOf(snap)
	if _, exists := s.rows[key]; exists && !overwrite {
		return false, nil
	}
	s.rows[key] = snap
	return true, nil
}

// ListSnapshots returns rows matching the query, ordered by date descending.
func (s *RankingStore) ListSnapshots(_ context.Context, q seo.SnapshotQuery) ([]seo.RankingSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []seo.RankingSnapshot
	for _, row := range s.rows {
		if row.SiteID != q.SiteID {
			continue
		}
		if q.Keyword != "" && !strings.Contains(strings.ToLower(row.Keyword), strings.ToLower(q.Keyword)) {
			continue
		}
		if q.StartDate != nil && row.Date.Before(dateOnly(*q.StartDate)) {
			continue
		}
		if q.EndDate != nil && row.Date.After(endOfDay(*q.EndDate)) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Keyword < out[j].Keyword
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return dateOnly(t).Add(24*time.Hour - time.Nanosecond)
}
