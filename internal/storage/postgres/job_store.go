package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/agencykit/seo-pipeline/internal/seo"
)

// JobStore implements seo.JobStore using Postgres.
type JobStore struct {
	db    Querier
	clock seo.Clock
}

// NewJobStore creates a JobStore on an existing pool.
func NewJobStore(db Querier, clock seo.Clock) *JobStore {
	return &JobStore{db: db, clock: clock}
}

// CreateJob inserts a new job record.
func (s *JobStore) CreateJob(ctx context.Context, job seo.CrawlJob) error {
	status := job.Status
	if status == "" {
		status = seo.JobStatusQueued
	}
	query := `
		INSERT INTO crawl_jobs (id, site_id, status, progress, updated_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := s.db.Exec(ctx, query, job.ID, job.SiteID, status, job.Progress, s.clock.Now())
	if err != nil {
		return fmt.Errorf("insert crawl job: %w", err)
	}
	return nil
}

// Mark performs a partial update of a job's status and optional fields.
// The guarded UPDATE matches nothing once the job is terminal, keeping
// terminal states absorbing without a read-modify-write cycle.
func (s *JobStore) Mark(ctx context.Context, jobID string, status seo.JobStatus, opts seo.MarkOptions) error {
	var resultJSON []byte
	if opts.Result != nil {
		data, err := json.Marshal(opts.Result)
		if err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
		resultJSON = data
	}

	now := s.clock.Now()
	query := `
		UPDATE crawl_jobs
		SET status = $2,
			progress = GREATEST(progress, COALESCE($3, progress)),
			result = COALESCE($4, result),
			error_text = COALESCE($5, error_text),
			updated_at = $6,
			completed_at = CASE
				WHEN $2 IN ('completed', 'failed') AND completed_at IS NULL THEN $6
				ELSE completed_at
			END
		WHERE id = $1
		  AND status NOT IN ('completed', 'failed');
	`
	tag, err := s.db.Exec(ctx, query, jobID, status, opts.Progress, resultJSON, opts.Error, now)
	if err != nil {
		return fmt.Errorf("mark job %s: %w", jobID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current seo.JobStatus
	err = s.db.QueryRow(ctx, `SELECT status FROM crawl_jobs WHERE id = $1;`, jobID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check job %s: %w", jobID, err)
	}
	return seo.ErrTerminal
}

// GetJob retrieves a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (seo.CrawlJob, error) {
	query := `
		SELECT id, site_id, status, progress, result, error_text, updated_at, completed_at
		FROM crawl_jobs
		WHERE id = $1;
	`
	var (
		job        seo.CrawlJob
		resultJSON []byte
		errText    *string
	)
	err := s.db.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.SiteID,
		&job.Status,
		&job.Progress,
		&resultJSON,
		&errText,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.CrawlJob{}, seo.ErrNotFound
	}
	if err != nil {
		return seo.CrawlJob{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if errText != nil {
		job.ErrorText = *errText
	}
	if len(resultJSON) > 0 {
		var result seo.CrawlResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return seo.CrawlJob{}, fmt.Errorf("decode job result: %w", err)
		}
		job.Result = &result
	}
	return job, nil
}
