package interfaces

import (
	"context"

	"github.com/ternarybob/congruo/internal/models"
)

// WeightService resolves scorer weight vectors per tenant. Resolution order
// is tenant override then global default; resolved vectors are normalized
// to sum to 1.0 with negative weights clamped to 0.
type WeightService interface {
	// Resolve returns the effective weights for a tenant
	Resolve(ctx context.Context, tenantID string) (models.WeightSet, error)

	// SetTenantWeights stores a tenant override and invalidates its cache entry
	SetTenantWeights(ctx context.Context, tenantID string, weights models.WeightSet) error

	// DeleteTenantWeights removes a tenant override
	DeleteTenantWeights(ctx context.Context, tenantID string) error

	// Flush clears the in-process resolution cache
	Flush()
}
