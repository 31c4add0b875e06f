package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// newTestDB opens a throwaway badger store for storage tests
func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store}
}

func newTestJob(jobID, tenantID string) *models.BatchJob {
	req := &models.BatchRequest{CompanyID: "comp-1", BatchSize: 50}
	job := models.NewBatchJob(jobID, tenantID, req, req.BatchSize, 4)
	return job
}

func TestJobLifecycle(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob("job-1", "tenant-1")
	require.NoError(t, storage.CreateJob(ctx, job))

	// Duplicate create must fail
	err := storage.CreateJob(ctx, newTestJob("job-1", "tenant-1"))
	assert.Error(t, err)

	loaded, err := storage.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatePending, loaded.State)
	assert.Equal(t, "tenant-1", loaded.TenantID)

	// PENDING -> RUNNING
	running, err := storage.TransitionState(ctx, "job-1", models.JobStatePending, models.JobStateRunning, func(j *models.BatchJob) {
		j.MarkRunning()
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStateRunning, running.State)
	assert.NotNil(t, running.StartedAt)

	// A second PENDING -> RUNNING transition must lose the race
	_, err = storage.TransitionState(ctx, "job-1", models.JobStatePending, models.JobStateRunning, nil)
	assert.Error(t, err)

	// RUNNING -> COMPLETED
	done, err := storage.TransitionState(ctx, "job-1", models.JobStateRunning, models.JobStateCompleted, func(j *models.BatchJob) {
		j.MarkCompleted()
	})
	require.NoError(t, err)
	assert.True(t, done.IsTerminal())
}

func TestApplyCountersKeepsAccounting(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob("job-2", "tenant-1")
	require.NoError(t, storage.CreateJob(ctx, job))

	// Submit 10 units: submitted and in_flight move together
	updated, err := storage.ApplyCounters(ctx, "job-2", models.CounterDelta{Submitted: 10, InFlight: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 10, updated.Counters.Submitted)
	assert.EqualValues(t, 10, updated.Counters.InFlight)
	assert.True(t, updated.Counters.Consistent())

	// Complete 7, fail 2, skip 1
	updated, err = storage.ApplyCounters(ctx, "job-2", models.CounterDelta{Succeeded: 7, InFlight: -7})
	require.NoError(t, err)
	updated, err = storage.ApplyCounters(ctx, "job-2", models.CounterDelta{Failed: 2, InFlight: -2})
	require.NoError(t, err)
	updated, err = storage.ApplyCounters(ctx, "job-2", models.CounterDelta{Skipped: 1, InFlight: -1})
	require.NoError(t, err)

	assert.EqualValues(t, 7, updated.Counters.Succeeded)
	assert.EqualValues(t, 2, updated.Counters.Failed)
	assert.EqualValues(t, 1, updated.Counters.Skipped)
	assert.EqualValues(t, 0, updated.Counters.InFlight)
	assert.True(t, updated.Counters.Consistent())
	assert.EqualValues(t, 10, updated.Counters.Settled())

	// Heartbeat is refreshed by counter updates
	assert.NotNil(t, updated.Heartbeat)
}

func TestApplyCountersRejectsNegativeDeltas(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.CreateJob(ctx, newTestJob("job-3", "tenant-1")))

	// Monotonic counters never decrease
	_, err := storage.ApplyCounters(ctx, "job-3", models.CounterDelta{Succeeded: -1})
	assert.Error(t, err)

	// A delta that breaks the identity is rejected
	_, err = storage.ApplyCounters(ctx, "job-3", models.CounterDelta{Succeeded: 5})
	assert.Error(t, err)
}

func TestApplyCountersConcurrent(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.CreateJob(ctx, newTestJob("job-4", "tenant-1")))
	_, err := storage.ApplyCounters(ctx, "job-4", models.CounterDelta{Submitted: 50, InFlight: 50})
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = storage.ApplyCounters(ctx, "job-4", models.CounterDelta{Succeeded: 1, InFlight: -1})
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	job, err := storage.GetJob(ctx, "job-4")
	require.NoError(t, err)
	assert.EqualValues(t, 50, job.Counters.Succeeded)
	assert.EqualValues(t, 0, job.Counters.InFlight)
	assert.True(t, job.Counters.Consistent())
}

func TestListJobsByState(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.CreateJob(ctx, newTestJob("job-a", "tenant-1")))
	require.NoError(t, storage.CreateJob(ctx, newTestJob("job-b", "tenant-1")))
	_, err := storage.TransitionState(ctx, "job-b", models.JobStatePending, models.JobStateRunning, nil)
	require.NoError(t, err)

	pending, err := storage.ListJobsByState(ctx, models.JobStatePending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, "job-a", pending[0].JobID)

	running, err := storage.ListJobsByState(ctx, models.JobStateRunning)
	require.NoError(t, err)
	assert.Len(t, running, 1)
	assert.Equal(t, "job-b", running[0].JobID)
}

func TestGetStaleJobs(t *testing.T) {
	db := newTestDB(t)
	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := newTestJob("job-stale", "tenant-1")
	require.NoError(t, storage.CreateJob(ctx, job))
	_, err := storage.TransitionState(ctx, "job-stale", models.JobStatePending, models.JobStateRunning, func(j *models.BatchJob) {
		j.MarkRunning()
		old := time.Now().UTC().Add(-10 * time.Minute)
		j.Heartbeat = &old
	})
	require.NoError(t, err)

	stale, err := storage.GetStaleJobs(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "job-stale", stale[0].JobID)

	// A fresh heartbeat clears staleness
	_, err = storage.ApplyCounters(ctx, "job-stale", models.CounterDelta{Submitted: 1, InFlight: 1})
	require.NoError(t, err)

	stale, err = storage.GetStaleJobs(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
