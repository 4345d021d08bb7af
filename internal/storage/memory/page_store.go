package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

type pageKey struct {
	siteID string
	path   string
}

// PageStore implements seo.PageStore in memory.
type PageStore struct {
	mu    sync.RWMutex
	pages map[pageKey]seo.PageRecord
	now   func() time.Time
}

// NewPageStore constructs a PageStore.
func NewPageStore() *PageStore {
	return &PageStore{
		pages: make(map[pageKey]seo.PageRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the store's clock, for tests.
func (s *PageStore) SetNow(now func() time.Time) {
	s.now = now
}

// UpsertPage creates or updates the row keyed on (site id, path).
// FirstSeen is set once on creation and never overwritten.
func (s *PageStore) UpsertPage(_ context.Context, rec seo.PageRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pageKey{siteID: rec.SiteID, path: rec.Path}
	now := s.now()
	rec.LastCrawled = now

	existing, ok := s.pages[key]
	if ok {
		rec.FirstSeen = existing.FirstSeen
		s.pages[key] = rec
		return false, nil
	}
	rec.FirstSeen = now
	s.pages[key] = rec
	return true, nil
}

// GetPage fetches a page record by (site id, path).
func (s *PageStore) GetPage(_ context.Context, siteID, path string) (seo.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.pages[pageKey{siteID: siteID, path: path}]
	if !ok {
		return seo.PageRecord{}, seo.ErrNotFound
	}
	return rec, nil
}

// Count reports the number of stored pages, for tests.
func (s *PageStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pages)
}
