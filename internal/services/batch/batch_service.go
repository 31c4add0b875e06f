// Package batch coordinates batch scoring jobs: candidate resolution,
// partitioning into work units, enqueueing with back-pressure, per-item
// scoring with retries, and completion accounting.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// staleHeartbeat is how long a RUNNING job may go without a heartbeat
// before startup recovery considers it orphaned
const staleHeartbeat = 5 * time.Minute

// Service implements BatchService
type Service struct {
	config        common.BatchConfig
	jobs          interfaces.JobStorage
	opportunities interfaces.OpportunityStorage
	companies     interfaces.CompanyStorage
	matches       interfaces.MatchStorage
	matcher       interfaces.MatcherService
	queue         interfaces.QueueManager
	tracker       interfaces.TrackerService
	optimizer     interfaces.OptimizerService
	events        interfaces.EventService
	logger        arbor.ILogger

	retryBase time.Duration
	retryCap  time.Duration
}

// NewService creates a batch coordinator
func NewService(
	config common.BatchConfig,
	jobs interfaces.JobStorage,
	opportunities interfaces.OpportunityStorage,
	companies interfaces.CompanyStorage,
	matches interfaces.MatchStorage,
	matcher interfaces.MatcherService,
	queueManager interfaces.QueueManager,
	tracker interfaces.TrackerService,
	optimizer interfaces.OptimizerService,
	events interfaces.EventService,
	logger arbor.ILogger,
) interfaces.BatchService {
	return &Service{
		config:        config,
		jobs:          jobs,
		opportunities: opportunities,
		companies:     companies,
		matches:       matches,
		matcher:       matcher,
		queue:         queueManager,
		tracker:       tracker,
		optimizer:     optimizer,
		events:        events,
		logger:        logger,
		retryBase:     time.Duration(config.RetryBaseMs) * time.Millisecond,
		retryCap:      time.Duration(config.RetryCapMs) * time.Millisecond,
	}
}

// Submit validates the request, snapshots the optimizer's tuning, creates a
// PENDING job, and dispatches in the background. Returns the job id.
func (s *Service) Submit(ctx context.Context, tenantID string, req *models.BatchRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("batch request is required")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	profile, err := s.companies.GetCompany(ctx, req.CompanyID)
	if err != nil {
		return "", fmt.Errorf("failed to load company %s: %w", req.CompanyID, err)
	}
	if tenantID == "" {
		tenantID = profile.TenantID
	}

	proposal := s.optimizer.Propose(ctx, tenantID)
	batchSize := proposal.BatchSize
	if req.BatchSize > 0 {
		batchSize = req.BatchSize
	}
	batchSize = clamp(batchSize, s.config.SizeMin, s.config.SizeMax)
	concurrency := clamp(proposal.Concurrency, s.config.ConcurrencyMin, s.config.ConcurrencyMax)

	job := models.NewBatchJob(common.NewBatchID(), tenantID, req, batchSize, concurrency)
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create batch job: %w", err)
	}
	s.tracker.Register(job)

	s.logger.Info().
		Str("job_id", job.JobID).
		Str("company_id", job.CompanyID).
		Int("batch_size", batchSize).
		Int("concurrency", concurrency).
		Bool("force_refresh", req.ForceRefresh).
		Msg("Batch job submitted")
	_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventBatchSubmitted, Payload: job})

	go s.dispatch(job)

	return job.JobID, nil
}

// Cancel marks a job CANCELLED. Queued units are dropped as skipped when
// dequeued; in-flight units complete and report.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	for _, from := range []models.JobState{models.JobStatePending, models.JobStateRunning} {
		job, err := s.jobs.TransitionState(ctx, jobID, from, models.JobStateCancelled, func(j *models.BatchJob) {
			now := time.Now().UTC()
			j.CompletedAt = &now
		})
		if err == nil {
			s.logger.Info().Str("job_id", jobID).Str("from", string(from)).Msg("Batch job cancelled")
			_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventBatchCancelled, Payload: job})
			return nil
		}
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is already %s", jobID, job.State)
}

// GetJob returns the persisted job record
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.BatchJob, error) {
	return s.jobs.GetJob(ctx, jobID)
}

// ListJobs returns a tenant's jobs, newest first
func (s *Service) ListJobs(ctx context.Context, tenantID string, limit, offset int) ([]*models.BatchJob, error) {
	return s.jobs.ListJobs(ctx, tenantID, limit, offset)
}

// dispatch resolves candidates, transitions the job to RUNNING, and
// enqueues work units under the in-flight ceiling. Runs detached from the
// submitting request.
func (s *Service) dispatch(job *models.BatchJob) {
	ctx := context.Background()

	if job.ForceRefresh {
		removed, err := s.matches.DeleteMatches(ctx, job.CompanyID)
		if err != nil {
			s.failPending(ctx, job.JobID, fmt.Sprintf("force refresh delete failed: %v", err))
			return
		}
		s.logger.Info().
			Str("job_id", job.JobID).
			Int("removed", removed).
			Msg("Prior match results cleared for force refresh")
	}

	var candidateIDs []string
	err := s.opportunities.Scan(ctx, job.Filters, func(opp *models.Opportunity) bool {
		candidateIDs = append(candidateIDs, opp.NoticeID)
		return true
	})
	if err != nil {
		s.failPending(ctx, job.JobID, fmt.Sprintf("candidate scan failed: %v", err))
		return
	}

	if len(candidateIDs) == 0 {
		completed, err := s.jobs.TransitionState(ctx, job.JobID, models.JobStatePending, models.JobStateCompleted, func(j *models.BatchJob) {
			now := time.Now().UTC()
			j.CompletedAt = &now
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Empty job could not complete")
			return
		}
		s.logger.Info().Str("job_id", job.JobID).Msg("Batch job completed with no candidates")
		_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventBatchCompleted, Payload: completed})
		s.tracker.Forget(job.JobID)
		return
	}

	running, err := s.jobs.TransitionState(ctx, job.JobID, models.JobStatePending, models.JobStateRunning, func(j *models.BatchJob) {
		j.Counters.Total = int64(len(candidateIDs))
		now := time.Now().UTC()
		j.StartedAt = &now
		j.Heartbeat = &now
	})
	if err != nil {
		// Cancelled before dispatch could start
		s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Job not dispatchable")
		return
	}
	s.tracker.Register(running)

	ceiling := int64(s.config.InflightCeilingFactor * running.Concurrency)
	s.logger.Info().
		Str("job_id", job.JobID).
		Int("candidates", len(candidateIDs)).
		Int64("inflight_ceiling", ceiling).
		Msg("Dispatching batch job")

	for start := 0; start < len(candidateIDs); start += running.BatchSize {
		end := min(start+running.BatchSize, len(candidateIDs))
		ids := candidateIDs[start:end]

		if err := s.tracker.WaitForCapacity(ctx, job.JobID, ceiling); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Capacity wait aborted")
			return
		}

		current, err := s.jobs.GetJob(ctx, job.JobID)
		if err == nil && current.IsTerminal() {
			s.logger.Info().
				Str("job_id", job.JobID).
				Int("unsubmitted", len(candidateIDs)-start).
				Msg("Dispatch stopped for terminal job")
			return
		}

		unit := &models.WorkUnit{
			UnitID:         common.NewUnitID(),
			JobID:          job.JobID,
			TenantID:       job.TenantID,
			CompanyID:      job.CompanyID,
			OpportunityIDs: ids,
			ForceRefresh:   job.ForceRefresh,
			EnqueuedAt:     time.Now().UTC(),
		}

		// Counters move before the enqueue: a worker may dequeue the unit
		// immediately, and its settle deltas must find the submissions.
		n := int64(len(ids))
		if err := s.tracker.Update(ctx, job.JobID, models.CounterDelta{Submitted: n, InFlight: n}); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to account submitted unit")
			return
		}
		if err := s.queue.Enqueue(ctx, unit); err != nil {
			// The items never reached the queue; settle them as failed
			_ = s.tracker.Update(ctx, job.JobID, models.CounterDelta{Failed: n, InFlight: -n})
			for range ids {
				s.tracker.RecordOutcome(job.JobID, false)
			}
			s.recordItemError(ctx, job.JobID, fmt.Sprintf("enqueue failed: %v", err))
			s.logger.Error().Err(err).Str("job_id", job.JobID).Str("unit_id", unit.UnitID).Msg("Failed to enqueue work unit")
		}
	}

	s.checkCompletion(ctx, job.JobID)
}

// ProcessUnit scores one dequeued work unit. Every item settles exactly
// once here; unhandled errors are returned only when no accounting was
// touched, so queue redelivery stays safe.
func (s *Service) ProcessUnit(ctx context.Context, unit *models.WorkUnit) error {
	job, err := s.jobs.GetJob(ctx, unit.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job for unit %s: %w", unit.UnitID, err)
	}

	n := int64(len(unit.OpportunityIDs))
	if job.IsTerminal() {
		// Cancelled while queued: the whole unit drops as skipped
		if err := s.tracker.Update(ctx, unit.JobID, models.CounterDelta{Skipped: n, InFlight: -n}); err != nil {
			s.logger.Warn().Err(err).Str("job_id", unit.JobID).Msg("Failed to account skipped unit")
		}
		s.logger.Info().
			Str("job_id", unit.JobID).
			Str("unit_id", unit.UnitID).
			Int64("skipped", n).
			Msg("Unit dropped for terminal job")
		return nil
	}

	profile, err := s.companies.GetCompany(ctx, unit.CompanyID)
	if err != nil {
		_ = s.tracker.Update(ctx, unit.JobID, models.CounterDelta{Failed: n, InFlight: -n})
		for range unit.OpportunityIDs {
			s.tracker.RecordOutcome(unit.JobID, false)
		}
		s.recordItemError(ctx, unit.JobID, fmt.Sprintf("company %s unavailable: %v", unit.CompanyID, err))
		s.checkCompletion(ctx, unit.JobID)
		return nil
	}

	for _, noticeID := range unit.OpportunityIDs {
		s.settleItem(ctx, unit, profile, noticeID)
	}

	s.checkCompletion(ctx, unit.JobID)
	return nil
}

// RequeueStaleJobs restarts orphaned RUNNING jobs after a crash. A job is
// orphaned when its heartbeat expired and no queue messages remain for it;
// re-scoring is idempotent, so the job restarts from a clean slate.
func (s *Service) RequeueStaleJobs(ctx context.Context) (int, error) {
	stale, err := s.jobs.GetStaleJobs(ctx, staleHeartbeat)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	count := 0
	for _, job := range stale {
		outstanding, err := s.queue.OutstandingForJob(ctx, job.JobID)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Could not inspect queue for stale job")
			continue
		}
		if outstanding > 0 {
			// The queue's visibility timeout will redeliver; job is slow, not lost
			continue
		}

		reset, err := s.jobs.TransitionState(ctx, job.JobID, models.JobStateRunning, models.JobStatePending, func(j *models.BatchJob) {
			j.Counters = models.BatchCounters{}
			j.StartedAt = nil
			j.CompletedAt = nil
			j.Heartbeat = nil
			j.LastError = ""
		})
		if err != nil {
			continue
		}

		s.tracker.Register(reset)
		s.logger.Info().Str("job_id", job.JobID).Msg("Requeueing stale batch job")
		go s.dispatch(reset)
		count++
	}
	return count, nil
}

// settleItem scores one opportunity with retries and applies exactly one
// terminal counter delta for it.
func (s *Service) settleItem(ctx context.Context, unit *models.WorkUnit, profile *models.CompanyProfile, noticeID string) {
	opp, err := s.opportunities.GetOpportunity(ctx, noticeID)
	if err != nil {
		// Candidate disappeared between scan and processing
		_ = s.tracker.Update(ctx, unit.JobID, models.CounterDelta{Skipped: 1, InFlight: -1})
		s.logger.Debug().
			Str("job_id", unit.JobID).
			Str("opportunity_id", noticeID).
			Msg("Candidate no longer loadable, skipping")
		return
	}

	req := &models.MatchRequest{
		Opportunity:    opp,
		CompanyProfile: profile,
		UseCache:       true,
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleepBackoff(ctx, attempt); err != nil {
				lastErr = err
				break
			}
		}

		_, err := s.matcher.MatchAndStore(ctx, req)
		if err == nil {
			_ = s.tracker.Update(ctx, unit.JobID, models.CounterDelta{Succeeded: 1, InFlight: -1})
			s.tracker.RecordOutcome(unit.JobID, true)
			return
		}

		lastErr = err
		if !isRetryable(err) {
			break
		}
		s.logger.Debug().
			Str("job_id", unit.JobID).
			Str("opportunity_id", noticeID).
			Int("attempt", attempt+1).
			Err(err).
			Msg("Match attempt failed, will retry")
	}

	_ = s.tracker.Update(ctx, unit.JobID, models.CounterDelta{Failed: 1, InFlight: -1})
	s.tracker.RecordOutcome(unit.JobID, false)
	s.recordItemError(ctx, unit.JobID, fmt.Sprintf("opportunity %s: %v", noticeID, lastErr))
}

// checkCompletion transitions the job to its terminal state once every
// candidate settled. Racing settlers resolve through the conditional
// transition; the loser's attempt is a no-op.
func (s *Service) checkCompletion(ctx context.Context, jobID string) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil || job.IsTerminal() {
		return
	}
	if job.Counters.Total == 0 || job.Counters.Settled() < job.Counters.Total {
		return
	}

	ratio := job.Counters.FailureRatio()
	failed := ratio > s.config.FailureAbortRatio
	toState := models.JobStateCompleted
	eventType := interfaces.EventBatchCompleted
	if failed {
		toState = models.JobStateFailed
		eventType = interfaces.EventBatchFailed
	}

	final, err := s.jobs.TransitionState(ctx, jobID, models.JobStateRunning, toState, func(j *models.BatchJob) {
		now := time.Now().UTC()
		j.CompletedAt = &now
		if failed {
			j.LastError = fmt.Sprintf("failure ratio %.2f exceeds %.2f (%s)", ratio, s.config.FailureAbortRatio, j.LastError)
		}
	})
	if err != nil {
		return
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("state", string(final.State)).
		Int64("succeeded", final.Counters.Succeeded).
		Int64("failed", final.Counters.Failed).
		Int64("skipped", final.Counters.Skipped).
		Msg("Batch job finished")
	_ = s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: final})

	s.observeWave(ctx, final)
	s.tracker.Forget(jobID)
}

// observeWave feeds the finished job back to the optimizer
func (s *Service) observeWave(ctx context.Context, job *models.BatchJob) {
	var duration time.Duration
	if job.StartedAt != nil && job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(*job.StartedAt)
	}

	wave := models.WaveStats{
		JobID:       job.JobID,
		TenantID:    job.TenantID,
		Items:       job.Counters.Settled(),
		Failed:      job.Counters.Failed,
		Duration:    duration,
		BatchSize:   job.BatchSize,
		Concurrency: job.Concurrency,
	}
	if _, err := s.optimizer.Observe(ctx, wave); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Optimizer observation failed")
	}
}

// failPending marks a PENDING job FAILED before any unit was enqueued
func (s *Service) failPending(ctx context.Context, jobID, message string) {
	failed, err := s.jobs.TransitionState(ctx, jobID, models.JobStatePending, models.JobStateFailed, func(j *models.BatchJob) {
		now := time.Now().UTC()
		j.CompletedAt = &now
		j.LastError = message
	})
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job failed")
		return
	}
	s.logger.Error().Str("job_id", jobID).Str("error", message).Msg("Batch job failed before dispatch")
	_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventBatchFailed, Payload: failed})
	s.tracker.Forget(jobID)
}

// recordItemError stamps the job's last error without disturbing its state
func (s *Service) recordItemError(ctx context.Context, jobID, message string) {
	_, err := s.jobs.TransitionState(ctx, jobID, models.JobStateRunning, models.JobStateRunning, func(j *models.BatchJob) {
		j.LastError = message
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("job_id", jobID).Msg("Item error not recorded")
	}
}

// sleepBackoff waits base*2^(attempt-1) capped, honoring cancellation
func (s *Service) sleepBackoff(ctx context.Context, attempt int) error {
	delay := s.retryBase << (attempt - 1)
	if delay > s.retryCap {
		delay = s.retryCap
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isRetryable treats failures as transient unless the chain carries the
// fatal class or the context ended
func isRetryable(err error) bool {
	if errors.Is(err, interfaces.ErrFatal) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
