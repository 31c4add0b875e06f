package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/ternarybob/congruo/internal/services/events"
)

// fakeJobStorage mirrors the badger implementation's counter semantics
// without a database
type fakeJobStorage struct {
	mu   sync.Mutex
	jobs map[string]*models.BatchJob
}

func newFakeJobStorage() *fakeJobStorage {
	return &fakeJobStorage{jobs: make(map[string]*models.BatchJob)}
}

func (f *fakeJobStorage) CreateJob(_ context.Context, job *models.BatchJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.jobs[job.JobID]; exists {
		return fmt.Errorf("job already exists: %s", job.JobID)
	}
	copied := *job
	f.jobs[job.JobID] = &copied
	return nil
}

func (f *fakeJobStorage) GetJob(_ context.Context, jobID string) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStorage) UpdateJob(_ context.Context, job *models.BatchJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.JobID] = &copied
	return nil
}

func (f *fakeJobStorage) ListJobs(_ context.Context, tenantID string, limit, offset int) ([]*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.BatchJob
	for _, job := range f.jobs {
		if job.TenantID == tenantID {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeJobStorage) ListJobsByState(_ context.Context, state models.JobState) ([]*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.BatchJob
	for _, job := range f.jobs {
		if job.State == state {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeJobStorage) TransitionState(_ context.Context, jobID string, fromState, toState models.JobState, mutate func(*models.BatchJob)) (*models.BatchJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if job.State != fromState {
		return nil, fmt.Errorf("job %s is %s, expected %s", jobID, job.State, fromState)
	}
	job.State = toState
	if mutate != nil {
		mutate(job)
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStorage) ApplyCounters(_ context.Context, jobID string, delta models.CounterDelta) (*models.BatchJob, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
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
	copied := *job
	return &copied, nil
}

func (f *fakeJobStorage) GetStaleJobs(_ context.Context, _ time.Duration) ([]*models.BatchJob, error) {
	return nil, nil
}

func (f *fakeJobStorage) DeleteJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, jobID)
	return nil
}

func newTestTracker(t *testing.T) (*Service, *fakeJobStorage, interfaces.EventService) {
	t.Helper()
	logger := arbor.NewLogger()
	storage := newFakeJobStorage()
	bus := events.NewService(logger)
	svc := NewService(storage, bus, logger).(*Service)
	return svc, storage, bus
}

func registeredJob(t *testing.T, svc *Service, storage *fakeJobStorage, total int64) *models.BatchJob {
	t.Helper()
	job := &models.BatchJob{
		JobID:     "job-" + t.Name(),
		TenantID:  "tenant-1",
		CompanyID: "acme",
		State:     models.JobStatePending,
		Counters:  models.BatchCounters{Total: total},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.CreateJob(context.Background(), job))
	svc.Register(job)
	return job
}

func TestUpdatePreservesAccountingIdentity(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 5, InFlight: 5}))
	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Succeeded: 3, InFlight: -3}))
	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Failed: 1, InFlight: -1}))
	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Skipped: 1, InFlight: -1}))

	stored, err := storage.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.True(t, stored.Counters.Consistent())
	assert.Equal(t, int64(5), stored.Counters.Submitted)
	assert.Equal(t, int64(3), stored.Counters.Succeeded)
	assert.Equal(t, int64(1), stored.Counters.Failed)
	assert.Equal(t, int64(1), stored.Counters.Skipped)
	assert.Equal(t, int64(0), stored.Counters.InFlight)
	assert.Equal(t, int64(5), stored.Counters.Settled())
}

func TestUpdateRejectsNegativeMonotonicDeltas(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 2, InFlight: 2}))
	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Succeeded: 2, InFlight: -2}))

	for _, delta := range []models.CounterDelta{
		{Submitted: -1},
		{Succeeded: -1},
		{Failed: -1},
		{Skipped: -1},
	} {
		err := svc.Update(ctx, job.JobID, delta)
		assert.Error(t, err, "delta %+v must be rejected", delta)
	}

	stored, err := storage.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Counters.Succeeded, "rejected deltas must not move counters")
}

func TestUpdateAllowsNegativeInFlight(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 1, InFlight: 1}))
	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Succeeded: 1, InFlight: -1}))

	stored, err := storage.GetJob(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Counters.InFlight)
}

func TestStatusComputesThroughputAndETA(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 100)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 30, Succeeded: 30}))
	for i := 0; i < 30; i++ {
		svc.RecordOutcome(job.JobID, true)
	}

	status, err := svc.Status(ctx, job.JobID)
	require.NoError(t, err)

	// 30 completions within a sub-second span clamp to a 1s window
	assert.InDelta(t, 30.0, status.Throughput, 1.0)
	assert.InDelta(t, 70.0/status.Throughput, status.ETASeconds, 0.5)
	assert.Equal(t, int64(70), status.Counters.Remaining())
}

func TestStatusUnknownETAWithoutThroughput(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 50)

	status, err := svc.Status(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.Equal(t, 0.0, status.Throughput)
	assert.Equal(t, -1.0, status.ETASeconds)
}

func TestStatusZeroETAWhenSettled(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 2)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 2, Succeeded: 2}))

	status, err := svc.Status(ctx, job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, status.ETASeconds)
}

func TestStatusUnknownJob(t *testing.T) {
	svc, _, _ := newTestTracker(t)

	_, err := svc.Status(context.Background(), "missing")
	assert.Error(t, err)
}

func TestHealthFlagsStalledJob(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)
	ctx := context.Background()

	job.MarkRunning()
	require.NoError(t, storage.UpdateJob(ctx, job))

	// Backdate the progress clock past the stall threshold
	svc.mu.Lock()
	svc.state[job.JobID].lastProgress = time.Now().Add(-3 * time.Minute)
	svc.mu.Unlock()

	health, err := svc.Health(ctx, job.JobID)
	require.NoError(t, err)

	assert.False(t, health.OK)
	require.NotEmpty(t, health.Reasons)
	assert.Contains(t, health.Reasons[0], "no progress")
}

func TestHealthStallIgnoredWhenNotRunning(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)

	svc.mu.Lock()
	svc.state[job.JobID].lastProgress = time.Now().Add(-10 * time.Minute)
	svc.mu.Unlock()

	health, err := svc.Health(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.True(t, health.OK, "PENDING jobs do not stall")
}

func TestHealthFlagsHighFailureRate(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 200)

	for i := 0; i < 70; i++ {
		svc.RecordOutcome(job.JobID, true)
	}
	for i := 0; i < 30; i++ {
		svc.RecordOutcome(job.JobID, false)
	}

	health, err := svc.Health(context.Background(), job.JobID)
	require.NoError(t, err)

	assert.False(t, health.OK)
	require.NotEmpty(t, health.Reasons)
	assert.Contains(t, health.Reasons[0], "failure rate")
}

func TestHealthToleratesModerateFailures(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 200)

	for i := 0; i < 90; i++ {
		svc.RecordOutcome(job.JobID, true)
	}
	for i := 0; i < 10; i++ {
		svc.RecordOutcome(job.JobID, false)
	}

	health, err := svc.Health(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.True(t, health.OK)
}

func TestHealthOutcomeWindowSlides(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 400)

	// Old failures must age out of the trailing window
	for i := 0; i < 100; i++ {
		svc.RecordOutcome(job.JobID, false)
	}
	for i := 0; i < 100; i++ {
		svc.RecordOutcome(job.JobID, true)
	}

	health, err := svc.Health(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.True(t, health.OK)
}

func TestWaitForCapacityUnblocksOnDrop(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 4, InFlight: 4}))

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- svc.WaitForCapacity(ctx, job.JobID, 4)
	}()

	select {
	case err := <-waitErr:
		t.Fatalf("WaitForCapacity returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Succeeded: 1, InFlight: -1}))

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForCapacity did not unblock after in-flight drop")
	}
}

func TestWaitForCapacityImmediateWhenBelowCeiling(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 2, InFlight: 2}))
	assert.NoError(t, svc.WaitForCapacity(ctx, job.JobID, 4))
}

func TestWaitForCapacityContextCancelled(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)

	require.NoError(t, svc.Update(context.Background(), job.JobID, models.CounterDelta{Submitted: 4, InFlight: 4}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := svc.WaitForCapacity(ctx, job.JobID, 4)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForCapacityTerminalJob(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, job.JobID, models.CounterDelta{Submitted: 4, InFlight: 4}))

	// Cancel outside the tracker's snapshot; the storage re-check must see it
	job.MarkCancelled()
	require.NoError(t, storage.UpdateJob(ctx, job))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	assert.NoError(t, svc.WaitForCapacity(waitCtx, job.JobID, 4))
}

func TestWaitForCapacityRejectsNonPositiveCeiling(t *testing.T) {
	svc, _, _ := newTestTracker(t)
	assert.Error(t, svc.WaitForCapacity(context.Background(), "any", 0))
}

func TestForgetDropsState(t *testing.T) {
	svc, storage, _ := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)

	svc.Forget(job.JobID)

	// Untracked jobs hold no capacity and record no outcomes
	assert.NoError(t, svc.WaitForCapacity(context.Background(), job.JobID, 1))
	svc.RecordOutcome(job.JobID, true)

	status, err := svc.Status(context.Background(), job.JobID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, status.Throughput)
}

func TestUpdatePublishesMetricSamples(t *testing.T) {
	svc, storage, bus := newTestTracker(t)
	job := registeredJob(t, svc, storage, 10)

	received := make(chan models.MetricSample, 16)
	require.NoError(t, bus.Subscribe(interfaces.EventMetricSample, func(_ context.Context, event interfaces.Event) error {
		if sample, ok := event.Payload.(models.MetricSample); ok {
			received <- sample
		}
		return nil
	}))

	require.NoError(t, svc.Update(context.Background(), job.JobID, models.CounterDelta{Submitted: 1, InFlight: 1}))

	select {
	case sample := <-received:
		assert.Equal(t, job.JobID, sample.JobID)
		assert.NotEmpty(t, sample.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no metric sample published")
	}
}
