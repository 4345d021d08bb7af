// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// JobStore implements seo.JobStore in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]seo.CrawlJob
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]seo.CrawlJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the store's clock, for tests.
func (s *JobStore) SetNow(now func() time.Time) {
	s.now = now
}

// CreateJob stores a new job record.
func (s *JobStore) CreateJob(_ context.Context, job seo.CrawlJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if job.Status == "" {
		job.Status = seo.JobStatusQueued
	}
	job.UpdatedAt = s.now()
	s.jobs[job.ID] = job
	return nil
}

// Mark performs a partial update of a job's status and optional fields.
// Terminal states are absorbing.
func (s *JobStore) Mark(_ context.Context, jobID string, status seo.JobStatus, opts seo.MarkOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return seo.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return seo.ErrTerminal
	}

	job.Status = status
	if opts.Progress != nil && *opts.Progress > job.Progress {
		job.Progress = *opts.Progress
	}
	if opts.Result != nil {
		job.Result = opts.Result
	}
	if opts.Error != nil {
		job.ErrorText = *opts.Error
	}
	now := s.now()
	job.UpdatedAt = now
	if status.IsTerminal() && job.CompletedAt == nil {
		job.CompletedAt = &now
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (seo.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return seo.CrawlJob{}, seo.ErrNotFound
	}
	return job, nil
}
