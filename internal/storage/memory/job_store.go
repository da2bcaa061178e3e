package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/clock/system"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

// JobStore provides an in-memory bulk job catalog for development/testing.
type JobStore struct {
	mu    sync.RWMutex
	jobs  map[string]pagegen.BulkJob
	clock pagegen.Clock
}

// NewJobStore constructs a JobStore. A nil clock uses the system clock.
func NewJobStore(clock pagegen.Clock) *JobStore {
	if clock == nil {
		clock = system.New()
	}
	return &JobStore{
		jobs:  make(map[string]pagegen.BulkJob),
		clock: clock,
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job pagegen.BulkJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob fetches a job by ID regardless of owner.
func (s *JobStore) GetJob(_ context.Context, jobID string) (pagegen.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pagegen.BulkJob{}, pagegen.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// GetOwnedJob fetches a job only if ownerID owns it.
func (s *JobStore) GetOwnedJob(ctx context.Context, ownerID, jobID string) (pagegen.BulkJob, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return pagegen.BulkJob{}, err
	}
	if job.OwnerID != ownerID {
		return pagegen.BulkJob{}, pagegen.ErrJobNotFound
	}
	return job, nil
}

// UpdateJobProgress overwrites the mutable fields of a job.
func (s *JobStore) UpdateJobProgress(_ context.Context, jobID string, progress pagegen.JobProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return pagegen.ErrJobNotFound
	}
	job.Status = progress.Status
	job.TotalRows = progress.TotalRows
	job.ProcessedRows = progress.ProcessedRows
	job.FailedRows = progress.FailedRows
	job.ResultURLs = progress.ResultURLs
	job.Errors = progress.Errors
	job.RowOutcomes = progress.RowOutcomes
	job.UpdatedAt = s.clock.Now()
	s.jobs[jobID] = cloneJob(job)
	return nil
}

// IncrementAttempts bumps the delivery counter and returns the new value.
func (s *JobStore) IncrementAttempts(_ context.Context, jobID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return 0, pagegen.ErrJobNotFound
	}
	job.Attempts++
	job.UpdatedAt = s.clock.Now()
	s.jobs[jobID] = job
	return job.Attempts, nil
}

// ListJobs returns the owner's jobs newest first, capped at limit when positive.
func (s *JobStore) ListJobs(_ context.Context, ownerID string, limit int) ([]pagegen.BulkJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pagegen.BulkJob, 0)
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteJob removes the owner's job. Pages it created are kept.
func (s *JobStore) DeleteJob(_ context.Context, ownerID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return pagegen.ErrJobNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

// JobStats counts the owner's jobs by status.
func (s *JobStore) JobStats(_ context.Context, ownerID string) (pagegen.JobStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats pagegen.JobStats
	for _, job := range s.jobs {
		if job.OwnerID != ownerID {
			continue
		}
		stats.Total++
		switch job.Status {
		case pagegen.JobStatusQueued:
			stats.Queued++
		case pagegen.JobStatusProcessing:
			stats.Processing++
		case pagegen.JobStatusCompleted, pagegen.JobStatusCompletedWithErrors:
			stats.Completed++
		case pagegen.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func cloneJob(job pagegen.BulkJob) pagegen.BulkJob {
	job.ResultURLs = append([]pagegen.ResultDescriptor{}, job.ResultURLs...)
	errs := make([]pagegen.ErrorDescriptor, len(job.Errors))
	for i, e := range job.Errors {
		if e.Data != nil {
			data := make(map[string]string, len(e.Data))
			for k, v := range e.Data {
				data[k] = v
			}
			e.Data = data
		}
		errs[i] = e
	}
	job.Errors = errs
	if job.RowOutcomes != nil {
		outcomes := make(map[int]pagegen.RowOutcome, len(job.RowOutcomes))
		for k, v := range job.RowOutcomes {
			outcomes[k] = v
		}
		job.RowOutcomes = outcomes
	}
	return job
}
