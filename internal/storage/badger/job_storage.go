package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements batch job persistence for Badger. State
// transitions and counter updates serialize through a mutex so
// concurrent workers observe consistent counters.
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// CreateJob stores a new batch job
func (s *JobStorage) CreateJob(ctx context.Context, job *models.BatchJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if err := s.db.Store().Insert(job.JobID, job); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("job already exists: %s", job.JobID)
		}
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves one job by id
func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.BatchJob, error) {
	var job models.BatchJob
	err := s.db.Store().Get(jobID, &job)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// UpdateJob overwrites a stored job
func (s *JobStorage) UpdateJob(ctx context.Context, job *models.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Store().Upsert(job.JobID, job); err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// ListJobs returns jobs for a tenant, newest first
func (s *JobStorage) ListJobs(ctx context.Context, tenantID string, limit, offset int) ([]*models.BatchJob, error) {
	var jobs []models.BatchJob
	query := badgerhold.Where("TenantID").Eq(tenantID).SortBy("CreatedAt").Reverse()
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	result := make([]*models.BatchJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// ListJobsByState returns all jobs in one state
func (s *JobStorage) ListJobsByState(ctx context.Context, state models.JobState) ([]*models.BatchJob, error) {
	var jobs []models.BatchJob
	if err := s.db.Store().Find(&jobs, badgerhold.Where("State").Eq(state).Index("State")); err != nil {
		return nil, fmt.Errorf("failed to list jobs by state: %w", err)
	}

	result := make([]*models.BatchJob, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

// TransitionState performs a conditional state update. The write applies
// only when the stored state equals fromState, so racing transitions
// (cancel vs complete) resolve to a single winner.
func (s *JobStorage) TransitionState(ctx context.Context, jobID string, fromState, toState models.JobState, mutate func(*models.BatchJob)) (*models.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.BatchJob
	err := s.db.Store().Get(jobID, &job)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if job.State != fromState {
		return nil, fmt.Errorf("job %s is %s, expected %s", jobID, job.State, fromState)
	}

	job.State = toState
	if mutate != nil {
		mutate(&job)
	}

	if err := s.db.Store().Upsert(jobID, &job); err != nil {
		return nil, fmt.Errorf("failed to transition job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("from", string(fromState)).
		Str("to", string(toState)).
		Msg("Job state transition")
	return &job, nil
}

// ApplyCounters adds a delta to the job's counters under the lock so the
// identity submitted = succeeded + failed + skipped + in_flight holds on
// every stored snapshot.
func (s *JobStorage) ApplyCounters(ctx context.Context, jobID string, delta models.CounterDelta) (*models.BatchJob, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var job models.BatchJob
	err := s.db.Store().Get(jobID, &job)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Counters.Submitted += delta.Submitted
	job.Counters.Succeeded += delta.Succeeded
	job.Counters.Failed += delta.Failed
	job.Counters.Skipped += delta.Skipped
	job.Counters.InFlight += delta.InFlight

	if !job.Counters.Consistent() {
		return nil, fmt.Errorf("counter delta breaks accounting for job %s: %+v", jobID, job.Counters)
	}

	now := time.Now().UTC()
	job.Heartbeat = &now

	if err := s.db.Store().Upsert(jobID, &job); err != nil {
		return nil, fmt.Errorf("failed to apply counters: %w", err)
	}
	return &job, nil
}

// GetStaleJobs returns RUNNING jobs whose heartbeat is older than the threshold
func (s *JobStorage) GetStaleJobs(ctx context.Context, threshold time.Duration) ([]*models.BatchJob, error) {
	running, err := s.ListJobsByState(ctx, models.JobStateRunning)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*models.BatchJob
	for _, job := range running {
		last := job.CreatedAt
		if job.StartedAt != nil {
			last = *job.StartedAt
		}
		if job.Heartbeat != nil {
			last = *job.Heartbeat
		}
		if last.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	return stale, nil
}

// DeleteJob removes one job record
func (s *JobStorage) DeleteJob(ctx context.Context, jobID string) error {
	err := s.db.Store().Delete(jobID, &models.BatchJob{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
