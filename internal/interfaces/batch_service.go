package interfaces

import (
	"context"

	"github.com/ternarybob/congruo/internal/models"
)

// BatchService coordinates batch scoring jobs: candidate resolution,
// partitioning, enqueueing, and completion accounting.
type BatchService interface {
	// Submit validates the request, creates a PENDING job, and starts
	// dispatch in the background. Returns the job id immediately.
	Submit(ctx context.Context, tenantID string, req *models.BatchRequest) (string, error)

	// Cancel marks a job CANCELLED. Queued units are dropped as skipped on
	// dequeue; in-flight units complete and report.
	Cancel(ctx context.Context, jobID string) error

	// GetJob returns the persisted job record
	GetJob(ctx context.Context, jobID string) (*models.BatchJob, error)

	// ListJobs returns a tenant's jobs, newest first
	ListJobs(ctx context.Context, tenantID string, limit, offset int) ([]*models.BatchJob, error)

	// ProcessUnit scores one dequeued work unit. Exposed for the worker
	// pool handler registration.
	ProcessUnit(ctx context.Context, unit *models.WorkUnit) error

	// RequeueStaleJobs transitions orphaned RUNNING jobs back to PENDING
	// dispatch after a restart
	RequeueStaleJobs(ctx context.Context) (int, error)
}
