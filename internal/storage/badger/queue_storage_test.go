package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/models"
)

func newTestMessage(messageID, jobID string, enqueuedAt time.Time) *models.QueueMessage {
	return &models.QueueMessage{
		MessageID: messageID,
		JobID:     jobID,
		Unit: &models.WorkUnit{
			UnitID:         messageID,
			JobID:          jobID,
			CompanyID:      "comp-1",
			OpportunityIDs: []string{"opp-1", "opp-2"},
		},
		VisibleAt:  enqueuedAt,
		EnqueuedAt: enqueuedAt,
	}
}

func TestQueueLeaseSemantics(t *testing.T) {
	db := newTestDB(t)
	storage := NewQueueStorage(db, arbor.NewLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, storage.Enqueue(ctx, newTestMessage("msg-1", "job-1", now.Add(-2*time.Second))))
	require.NoError(t, storage.Enqueue(ctx, newTestMessage("msg-2", "job-1", now.Add(-1*time.Second))))

	// First dequeue leases oldest-first and stamps the attempt
	leased, err := storage.DequeueVisible(ctx, 1, now, time.Minute)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	assert.Equal(t, "msg-1", leased[0].MessageID)
	assert.Equal(t, 1, leased[0].Attempts)
	assert.True(t, leased[0].VisibleAt.After(now))

	// The leased message is invisible; only msg-2 remains eligible
	leased, err = storage.DequeueVisible(ctx, 10, now, time.Minute)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	assert.Equal(t, "msg-2", leased[0].MessageID)

	// Queue drained until a lease expires
	_, err = storage.DequeueVisible(ctx, 10, now, time.Minute)
	assert.ErrorIs(t, err, models.ErrNoMessage)

	// After the visibility window the unacked message comes back
	later := now.Add(2 * time.Minute)
	leased, err = storage.DequeueVisible(ctx, 10, later, time.Minute)
	require.NoError(t, err)
	assert.Len(t, leased, 2)
	assert.Equal(t, 2, leased[0].Attempts)
}

func TestQueueCompleteRemovesMessage(t *testing.T) {
	db := newTestDB(t)
	storage := NewQueueStorage(db, arbor.NewLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, storage.Enqueue(ctx, newTestMessage("msg-1", "job-1", now)))

	leased, err := storage.DequeueVisible(ctx, 1, now, time.Minute)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	require.NoError(t, storage.Complete(ctx, "msg-1"))

	count, err := storage.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Completing twice is harmless
	assert.NoError(t, storage.Complete(ctx, "msg-1"))
}

func TestQueueReleaseForRetry(t *testing.T) {
	db := newTestDB(t)
	storage := NewQueueStorage(db, arbor.NewLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, storage.Enqueue(ctx, newTestMessage("msg-1", "job-1", now)))

	leased, err := storage.DequeueVisible(ctx, 1, now, time.Hour)
	require.NoError(t, err)
	require.Len(t, leased, 1)

	// Release with a short delay makes it visible well before the lease expiry
	require.NoError(t, storage.Release(ctx, "msg-1", time.Second))

	leased, err = storage.DequeueVisible(ctx, 1, time.Now().UTC().Add(5*time.Second), time.Minute)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	assert.Equal(t, 2, leased[0].Attempts)
}

func TestQueuePendingCountForJob(t *testing.T) {
	db := newTestDB(t)
	storage := NewQueueStorage(db, arbor.NewLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, storage.Enqueue(ctx, newTestMessage("msg-1", "job-1", now)))
	require.NoError(t, storage.Enqueue(ctx, newTestMessage("msg-2", "job-1", now)))
	require.NoError(t, storage.Enqueue(ctx, newTestMessage("msg-3", "job-2", now)))

	count, err := storage.PendingCountForJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = storage.PendingCountForJob(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, storage.ClearAll(ctx))
	total, err := storage.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestQueueMessageRoundTripsWorkUnit(t *testing.T) {
	db := newTestDB(t)
	storage := NewQueueStorage(db, arbor.NewLogger())
	ctx := context.Background()

	now := time.Now().UTC()
	msg := newTestMessage("msg-1", "job-1", now)
	msg.Unit.ForceRefresh = true
	require.NoError(t, storage.Enqueue(ctx, msg))

	leased, err := storage.DequeueVisible(ctx, 1, now, time.Minute)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	require.NotNil(t, leased[0].Unit)
	assert.Equal(t, []string{"opp-1", "opp-2"}, leased[0].Unit.OpportunityIDs)
	assert.True(t, leased[0].Unit.ForceRefresh)
}
