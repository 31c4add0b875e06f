package interfaces

import (
	"context"

	"github.com/ternarybob/congruo/internal/models"
)

// TrackerService maintains per-job progress counters, derived health
// signals, and published metric samples.
type TrackerService interface {
	// Register initializes tracking state for a job
	Register(job *models.BatchJob)

	// Update atomically applies a counter delta. Negative deltas are
	// rejected for all counters except in_flight.
	Update(ctx context.Context, jobID string, delta models.CounterDelta) error

	// RecordOutcome feeds the trailing windows used for throughput and
	// failure-rate signals (success=false counts as a failure outcome)
	RecordOutcome(jobID string, success bool)

	// Status returns counters, throughput over the trailing window, and ETA
	Status(ctx context.Context, jobID string) (*models.JobStatus, error)

	// Health reports whether the job is progressing acceptably
	Health(ctx context.Context, jobID string) (*models.JobHealth, error)

	// WaitForCapacity blocks until the job's in-flight count drops below
	// the ceiling, the context is cancelled, or the job reaches a terminal
	// state. Used by the coordinator for back-pressure.
	WaitForCapacity(ctx context.Context, jobID string, ceiling int64) error

	// Forget drops in-memory tracking state for a finished job
	Forget(jobID string)
}
