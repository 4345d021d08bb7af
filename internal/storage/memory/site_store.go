package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// SiteStore implements seo.SiteStore in memory.
type SiteStore struct {
	mu    sync.RWMutex
	sites map[string]seo.Site
}

// NewSiteStore constructs a SiteStore.
func NewSiteStore() *SiteStore {
	return &SiteStore{sites: make(map[string]seo.Site)}
}

// PutSite stores a site record, for seeding.
func (s *SiteStore) PutSite(site seo.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.ID] = site
}

// GetSite fetches a site by ID.
func (s *SiteStore) GetSite(_ context.Context, siteID string) (seo.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[siteID]
	if !ok {
		return seo.Site{}, seo.ErrNotFound
	}
	return site, nil
}

// KeywordStore implements seo.KeywordStore in memory.
type KeywordStore struct {
	mu          sync.RWMutex
	keywords    map[string][]seo.TrackedKeyword
	performance map[string][]seo.QueryPerformanceRow
}

// NewKeywordStore constructs a KeywordStore.
func NewKeywordStore() *KeywordStore {
	return &KeywordStore{
		keywords:    make(map[string][]seo.TrackedKeyword),
		performance: make(map[string][]seo.QueryPerformanceRow),
	}
}

// PutKeyword stores a tracked keyword, for seeding.
func (s *KeywordStore) PutKeyword(kw seo.TrackedKeyword) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords[kw.SiteID] = append(s.keywords[kw.SiteID], kw)
}

// PutPerformance stores a query-performance row, for seeding.
func (s *KeywordStore) PutPerformance(row seo.QueryPerformanceRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performance[row.SiteID] = append(s.performance[row.SiteID], row)
}

// ListTrackedKeywords returns the tracked keywords for a site.
func (s *KeywordStore) ListTrackedKeywords(_ context.Context, siteID string) ([]seo.TrackedKeyword, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]seo.TrackedKeyword, len(s.keywords[siteID]))
	copy(out, s.keywords[siteID])
	return out, nil
}

// ListQueryPerformance returns the performance rows for a site on a day.
func (s *KeywordStore) ListQueryPerformance(
	_ context.Context,
	siteID string,
	day time.Time,
) ([]seo.QueryPerformanceRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := day.Format("2006-01-02")
	var out []seo.QueryPerformanceRow
	for _, row := range s.performance[siteID] {
		if row.Date.Format("2006-01-02") == want {
			out = append(out, row)
		}
	}
	return out, nil
}
