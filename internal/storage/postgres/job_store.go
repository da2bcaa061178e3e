package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

const jobColumns = `id, owner_id, template_id, csv_filename, total_rows, processed_rows,
failed_rows, status, result_urls, errors, row_outcomes, attempts, created_at, updated_at`

// JobStore implements pagegen.JobStore on Postgres.
type JobStore struct {
	pool querier
	now  func() time.Time
}

func (s *JobStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// CreateJob inserts a new job.
func (s *JobStore) CreateJob(ctx context.Context, job pagegen.BulkJob) error {
	results, errs, outcomes, err := marshalProgress(job.ResultURLs, job.Errors, job.RowOutcomes)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO bulk_jobs (
	id, owner_id, template_id, csv_filename, total_rows, processed_rows, failed_rows,
	status, result_urls, errors, row_outcomes, attempts, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID, job.OwnerID, job.TemplateID, job.Filename, job.TotalRows, job.ProcessedRows,
		job.FailedRows, string(job.Status), results, errs, outcomes, job.Attempts,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert bulk job: %w", err)
	}
	return nil
}

// GetJob fetches a job by ID regardless of owner.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (pagegen.BulkJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM bulk_jobs WHERE id = $1`, jobID)
	return s.oneJob(row)
}

// GetOwnedJob fetches a job only if ownerID owns it.
func (s *JobStore) GetOwnedJob(ctx context.Context, ownerID, jobID string) (pagegen.BulkJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM bulk_jobs WHERE id = $1 AND owner_id = $2`, jobID, ownerID)
	return s.oneJob(row)
}

func (s *JobStore) oneJob(row pgx.Row) (pagegen.BulkJob, error) {
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return pagegen.BulkJob{}, pagegen.ErrJobNotFound
	}
	if err != nil {
		return pagegen.BulkJob{}, fmt.Errorf("get bulk job: %w", err)
	}
	return job, nil
}

// UpdateJobProgress overwrites the mutable fields of a job.
func (s *JobStore) UpdateJobProgress(ctx context.Context, jobID string, progress pagegen.JobProgress) error {
	results, errs, outcomes, err := marshalProgress(progress.ResultURLs, progress.Errors, progress.RowOutcomes)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE bulk_jobs
SET status = $2, total_rows = $3, processed_rows = $4, failed_rows = $5,
	result_urls = $6, errors = $7, row_outcomes = $8, updated_at = $9
WHERE id = $1`,
		jobID, string(progress.Status), progress.TotalRows, progress.ProcessedRows,
		progress.FailedRows, results, errs, outcomes, s.clock())
	if err != nil {
		return fmt.Errorf("update bulk job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pagegen.ErrJobNotFound
	}
	return nil
}

// IncrementAttempts bumps the delivery counter and returns the new value.
func (s *JobStore) IncrementAttempts(ctx context.Context, jobID string) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx, `
UPDATE bulk_jobs SET attempts = attempts + 1, updated_at = $2
WHERE id = $1 RETURNING attempts`, jobID, s.clock()).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, pagegen.ErrJobNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	return attempts, nil
}

// ListJobs returns the owner's jobs newest first, capped at limit when positive.
func (s *JobStore) ListJobs(ctx context.Context, ownerID string, limit int) ([]pagegen.BulkJob, error) {
	query := `SELECT ` + jobColumns + ` FROM bulk_jobs WHERE owner_id = $1 ORDER BY created_at DESC`
	args := []any{ownerID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bulk jobs: %w", err)
	}
	defer rows.Close()
	out := make([]pagegen.BulkJob, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bulk job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list bulk jobs: %w", err)
	}
	return out, nil
}

// DeleteJob removes the owner's job. Pages it created are kept.
func (s *JobStore) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bulk_jobs WHERE id = $1 AND owner_id = $2`, jobID, ownerID)
	if err != nil {
		return fmt.Errorf("delete bulk job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pagegen.ErrJobNotFound
	}
	return nil
}

// JobStats counts the owner's jobs by status. completed_with_errors counts as
// completed.
func (s *JobStore) JobStats(ctx context.Context, ownerID string) (pagegen.JobStats, error) {
	var stats pagegen.JobStats
	err := s.pool.QueryRow(ctx, `
SELECT
	count(*),
	count(*) FILTER (WHERE status = 'queued'),
	count(*) FILTER (WHERE status = 'processing'),
	count(*) FILTER (WHERE status IN ('completed', 'completed_with_errors')),
	count(*) FILTER (WHERE status = 'failed')
FROM bulk_jobs WHERE owner_id = $1`, ownerID).
		Scan(&stats.Total, &stats.Queued, &stats.Processing, &stats.Completed, &stats.Failed)
	if err != nil {
		return pagegen.JobStats{}, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

func marshalProgress(
	results []pagegen.ResultDescriptor,
	errs []pagegen.ErrorDescriptor,
	outcomes map[int]pagegen.RowOutcome,
) ([]byte, []byte, []byte, error) {
	if results == nil {
		results = []pagegen.ResultDescriptor{}
	}
	if errs == nil {
		errs = []pagegen.ErrorDescriptor{}
	}
	if outcomes == nil {
		outcomes = map[int]pagegen.RowOutcome{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal result urls: %w", err)
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal errors: %w", err)
	}
	outcomesJSON, err := json.Marshal(outcomes)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal row outcomes: %w", err)
	}
	return resultsJSON, errsJSON, outcomesJSON, nil
}

func scanJob(row pgx.Row) (pagegen.BulkJob, error) {
	var (
		job      pagegen.BulkJob
		status   string
		results  []byte
		errs     []byte
		outcomes []byte
	)
	err := row.Scan(&job.ID, &job.OwnerID, &job.TemplateID, &job.Filename, &job.TotalRows,
		&job.ProcessedRows, &job.FailedRows, &status, &results, &errs, &outcomes,
		&job.Attempts, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return pagegen.BulkJob{}, err
	}
	job.Status = pagegen.JobStatus(status)
	job.ResultURLs = []pagegen.ResultDescriptor{}
	job.Errors = []pagegen.ErrorDescriptor{}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &job.ResultURLs); err != nil {
			return pagegen.BulkJob{}, fmt.Errorf("decode result urls: %w", err)
		}
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &job.Errors); err != nil {
			return pagegen.BulkJob{}, fmt.Errorf("decode errors: %w", err)
		}
	}
	if len(outcomes) > 0 {
		if err := json.Unmarshal(outcomes, &job.RowOutcomes); err != nil {
			return pagegen.BulkJob{}, fmt.Errorf("decode row outcomes: %w", err)
		}
	}
	return job, nil
}
