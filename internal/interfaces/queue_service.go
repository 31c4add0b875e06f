package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// QueueStorage - persistence layer beneath the work queue. Messages become
// eligible for dequeue once their visibility timestamp passes; dequeue
// leases them by pushing the timestamp forward.
type QueueStorage interface {
	// Enqueue persists a message
	Enqueue(ctx context.Context, msg *models.QueueMessage) error

	// DequeueVisible atomically leases up to n visible messages: each
	// returned message has VisibleAt pushed to now+visibility and its
	// attempt count incremented. Returns models.ErrNoMessage when empty.
	DequeueVisible(ctx context.Context, n int, now time.Time, visibility time.Duration) ([]*models.QueueMessage, error)

	// Complete removes a processed message
	Complete(ctx context.Context, messageID string) error

	// Release makes a leased message visible again after the delay (retry backoff)
	Release(ctx context.Context, messageID string, delay time.Duration) error

	// PendingCount returns the number of messages not yet completed
	PendingCount(ctx context.Context) (int, error)

	// PendingCountForJob returns outstanding messages for one job
	PendingCountForJob(ctx context.Context, jobID string) (int, error)

	// ClearAll removes every message
	ClearAll(ctx context.Context) error
}

// UnitHandler processes one dequeued work unit
type UnitHandler func(ctx context.Context, unit *models.WorkUnit) error

// QueueManager manages the persistent work queue
type QueueManager interface {
	Start() error
	Stop() error
	Enqueue(ctx context.Context, unit *models.WorkUnit) error
	EnqueueWithDelay(ctx context.Context, unit *models.WorkUnit, delay time.Duration) error
	Dequeue(ctx context.Context, n int) ([]*models.QueueMessage, error)
	Complete(ctx context.Context, msg *models.QueueMessage) error
	Retry(ctx context.Context, msg *models.QueueMessage, delay time.Duration) error
	QueueLength(ctx context.Context) (int, error)
	OutstandingForJob(ctx context.Context, jobID string) (int, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// WorkerPool manages concurrent work unit processing
type WorkerPool interface {
	RegisterHandler(handler UnitHandler)
	Start() error
	Stop() error
}
