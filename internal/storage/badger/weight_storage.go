package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// WeightStorage implements per-tenant weight override persistence for Badger
type WeightStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWeightStorage creates a new WeightStorage instance
func NewWeightStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WeightStorage {
	return &WeightStorage{
		db:     db,
		logger: logger,
	}
}

// StoreWeights upserts a tenant's weight override
func (s *WeightStorage) StoreWeights(ctx context.Context, weights *models.TenantWeights) error {
	if weights.TenantID == "" {
		return fmt.Errorf("weights require a tenant_id")
	}
	if len(weights.Weights) == 0 {
		return fmt.Errorf("weights map is empty")
	}
	weights.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(weights.TenantID, weights); err != nil {
		return fmt.Errorf("failed to store weights: %w", err)
	}
	return nil
}

// GetWeights returns nil without error when no override exists
func (s *WeightStorage) GetWeights(ctx context.Context, tenantID string) (*models.TenantWeights, error) {
	var weights models.TenantWeights
	err := s.db.Store().Get(tenantID, &weights)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get weights: %w", err)
	}
	return &weights, nil
}

// DeleteWeights removes a tenant's override, reverting it to defaults
func (s *WeightStorage) DeleteWeights(ctx context.Context, tenantID string) error {
	err := s.db.Store().Delete(tenantID, &models.TenantWeights{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete weights: %w", err)
	}
	return nil
}
