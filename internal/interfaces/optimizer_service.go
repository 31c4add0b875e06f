package interfaces

import (
	"context"

	"github.com/ternarybob/congruo/internal/models"
)

// OptimizerService proposes batch size and concurrency per wave based on
// observed throughput and failure rates.
type OptimizerService interface {
	// Propose returns the tuning to use for a tenant's next wave
	Propose(ctx context.Context, tenantID string) models.TuningDecision

	// Observe records a completed wave and returns the adjusted proposal.
	// Decisions are appended to the optimization history.
	Observe(ctx context.Context, wave models.WaveStats) (models.TuningDecision, error)

	// History returns recent decisions for a tenant, newest first
	History(ctx context.Context, tenantID string, limit int) ([]*models.OptimizationRecord, error)
}
