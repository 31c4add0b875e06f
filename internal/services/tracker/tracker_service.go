// Package tracker maintains per-job progress counters and the derived
// signals the coordinator and API read: throughput, ETA, health. Counter
// writes go through JobStorage so restarts lose only the trailing windows,
// never the accounting.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

const (
	// throughputWindow bounds the completion timestamps used for items/s
	throughputWindow = 60 * time.Second

	// outcomeWindow bounds the trailing success/failure ring for health
	outcomeWindow = 100

	// stallThreshold flags a RUNNING job with no settled items for too long
	stallThreshold = 2 * time.Minute

	// failureRateLimit marks the job unhealthy above this trailing rate
	failureRateLimit = 0.25

	// publishInterval throttles metric sample publication per job
	publishInterval = time.Second

	// capacityPollInterval re-checks storage while waiting for capacity,
	// covering signals lost to races and cancellations made elsewhere
	capacityPollInterval = 250 * time.Millisecond
)

// jobState is the in-memory window state for one tracked job
type jobState struct {
	mu           sync.Mutex
	job          *models.BatchJob // latest persisted snapshot
	completions  []time.Time
	outcomes     []bool
	lastProgress time.Time
	lastPublish  time.Time
	notify       chan struct{} // closed and replaced when in-flight drops
}

// Service implements TrackerService over JobStorage plus in-memory
// trailing windows.
type Service struct {
	jobs   interfaces.JobStorage
	events interfaces.EventService
	logger arbor.ILogger

	mu    sync.RWMutex
	state map[string]*jobState
}

// NewService creates a progress tracker
func NewService(jobs interfaces.JobStorage, events interfaces.EventService, logger arbor.ILogger) interfaces.TrackerService {
	return &Service{
		jobs:   jobs,
		events: events,
		logger: logger,
		state:  make(map[string]*jobState),
	}
}

// Register initializes tracking state for a job. The stall clock starts
// here: a job that settles nothing within the threshold is already stuck.
func (s *Service) Register(job *models.BatchJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[job.JobID] = &jobState{
		job:          job,
		lastProgress: time.Now(),
		notify:       make(chan struct{}),
	}
	s.logger.Debug().Str("job_id", job.JobID).Msg("Job registered with tracker")
}

// Update applies a counter delta through storage and refreshes the
// in-memory snapshot. Negative deltas are rejected for every counter
// except in_flight; a drop in in_flight wakes capacity waiters.
func (s *Service) Update(ctx context.Context, jobID string, delta models.CounterDelta) error {
	if err := delta.Validate(); err != nil {
		return err
	}

	job, err := s.jobs.ApplyCounters(ctx, jobID, delta)
	if err != nil {
		return fmt.Errorf("failed to apply counter delta: %w", err)
	}

	state := s.lookup(jobID)
	if state == nil {
		return nil
	}

	state.mu.Lock()
	state.job = job
	if delta.Succeeded > 0 || delta.Failed > 0 || delta.Skipped > 0 {
		state.lastProgress = time.Now()
	}
	var wake chan struct{}
	if delta.InFlight < 0 {
		wake = state.notify
		state.notify = make(chan struct{})
	}
	publish := time.Since(state.lastPublish) >= publishInterval
	if publish {
		state.lastPublish = time.Now()
	}
	throughput := state.throughputLocked(time.Now())
	failureRate := state.failureRateLocked()
	state.mu.Unlock()

	if wake != nil {
		close(wake)
	}
	if publish {
		s.publishSamples(ctx, job, throughput, failureRate)
	}
	return nil
}

// RecordOutcome feeds the trailing windows with one settled item
func (s *Service) RecordOutcome(jobID string, success bool) {
	state := s.lookup(jobID)
	if state == nil {
		return
	}

	now := time.Now()
	state.mu.Lock()
	defer state.mu.Unlock()

	state.completions = append(state.completions, now)
	state.trimCompletionsLocked(now)

	state.outcomes = append(state.outcomes, success)
	if len(state.outcomes) > outcomeWindow {
		state.outcomes = state.outcomes[len(state.outcomes)-outcomeWindow:]
	}
	state.lastProgress = now
}

// Status returns the persisted counters with throughput and ETA derived
// from the trailing completion window. ETA is -1 when throughput is zero
// with work remaining.
func (s *Service) Status(ctx context.Context, jobID string) (*models.JobStatus, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var throughput float64
	if state := s.lookup(jobID); state != nil {
		state.mu.Lock()
		throughput = state.throughputLocked(now)
		state.mu.Unlock()
	}

	remaining := job.Counters.Remaining()
	eta := 0.0
	switch {
	case remaining <= 0:
		eta = 0
	case throughput > 0:
		eta = float64(remaining) / throughput
	default:
		eta = -1
	}

	return &models.JobStatus{
		JobID:      job.JobID,
		State:      job.State,
		Counters:   job.Counters,
		Throughput: throughput,
		ETASeconds: eta,
		LastError:  job.LastError,
		UpdatedAt:  now.UTC(),
	}, nil
}

// Health reports whether the job is progressing acceptably. A RUNNING job
// is unhealthy once it stalls past the threshold or the trailing failure
// rate exceeds the limit.
func (s *Service) Health(ctx context.Context, jobID string) (*models.JobHealth, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var reasons []string

	if job.State == models.JobStateRunning {
		progressAt := s.lastProgressAt(jobID, job)
		if since := time.Since(progressAt); since > stallThreshold {
			reasons = append(reasons, fmt.Sprintf("no progress for %s", since.Round(time.Second)))
		}
	}

	if state := s.lookup(jobID); state != nil {
		state.mu.Lock()
		rate := state.failureRateLocked()
		sampled := len(state.outcomes)
		state.mu.Unlock()
		if sampled > 0 && rate > failureRateLimit {
			reasons = append(reasons, fmt.Sprintf("failure rate %.2f over trailing %d items", rate, sampled))
		}
	}

	return &models.JobHealth{OK: len(reasons) == 0, Reasons: reasons}, nil
}

// WaitForCapacity blocks until the job's in-flight count drops below the
// ceiling, the job reaches a terminal state, or the context ends. The
// periodic storage re-check picks up cancellations made outside this
// process's snapshot.
func (s *Service) WaitForCapacity(ctx context.Context, jobID string, ceiling int64) error {
	if ceiling <= 0 {
		return fmt.Errorf("capacity ceiling must be positive, got %d", ceiling)
	}

	ticker := time.NewTicker(capacityPollInterval)
	defer ticker.Stop()

	for {
		state := s.lookup(jobID)
		if state == nil {
			// Untracked jobs hold no in-flight work
			return nil
		}

		state.mu.Lock()
		job := state.job
		notify := state.notify
		state.mu.Unlock()

		if job == nil || job.IsTerminal() || job.Counters.InFlight < ceiling {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-notify:
		case <-ticker.C:
			if fresh, err := s.jobs.GetJob(ctx, jobID); err == nil {
				state.mu.Lock()
				state.job = fresh
				state.mu.Unlock()
			}
		}
	}
}

// Forget drops in-memory tracking state for a finished job
func (s *Service) Forget(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state, jobID)
}

func (s *Service) lookup(jobID string) *jobState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state[jobID]
}

// lastProgressAt falls back to the persisted heartbeat when the tracker
// lost its window state to a restart
func (s *Service) lastProgressAt(jobID string, job *models.BatchJob) time.Time {
	if state := s.lookup(jobID); state != nil {
		state.mu.Lock()
		defer state.mu.Unlock()
		return state.lastProgress
	}
	if job.Heartbeat != nil {
		return *job.Heartbeat
	}
	if job.StartedAt != nil {
		return *job.StartedAt
	}
	return job.CreatedAt
}

func (s *Service) publishSamples(ctx context.Context, job *models.BatchJob, throughput, failureRate float64) {
	now := time.Now().UTC()
	samples := []models.MetricSample{
		{Name: "job_throughput", Value: throughput, JobID: job.JobID, Timestamp: now},
		{Name: "job_failure_rate", Value: failureRate, JobID: job.JobID, Timestamp: now},
		{Name: "job_in_flight", Value: float64(job.Counters.InFlight), JobID: job.JobID, Timestamp: now},
		{Name: "job_settled", Value: float64(job.Counters.Settled()), JobID: job.JobID, Timestamp: now},
	}
	for _, sample := range samples {
		_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventMetricSample, Payload: sample})
	}

	_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventBatchProgress, Payload: models.JobStatus{
		JobID:      job.JobID,
		State:      job.State,
		Counters:   job.Counters,
		Throughput: throughput,
		UpdatedAt:  now,
	}})
}

// throughputLocked computes items/s over the span covered by the trailing
// window. Spans under one second report the raw count, avoiding inflation
// from near-zero divisors. Caller holds the state lock.
func (st *jobState) throughputLocked(now time.Time) float64 {
	st.trimCompletionsLocked(now)
	n := len(st.completions)
	if n == 0 {
		return 0
	}
	span := now.Sub(st.completions[0]).Seconds()
	if span < 1 {
		span = 1
	}
	return float64(n) / span
}

// failureRateLocked returns failures over the trailing outcome window.
// Caller holds the state lock.
func (st *jobState) failureRateLocked() float64 {
	if len(st.outcomes) == 0 {
		return 0
	}
	failed := 0
	for _, ok := range st.outcomes {
		if !ok {
			failed++
		}
	}
	return float64(failed) / float64(len(st.outcomes))
}

// trimCompletionsLocked drops timestamps older than the throughput window.
// Caller holds the state lock.
func (st *jobState) trimCompletionsLocked(now time.Time) {
	cutoff := now.Add(-throughputWindow)
	idx := 0
	for idx < len(st.completions) && st.completions[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		st.completions = st.completions[idx:]
	}
}
