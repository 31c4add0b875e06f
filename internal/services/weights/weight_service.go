package weights

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// cacheTTL bounds how long a resolved vector may be served without a
// storage read. A weight update reaches running batches within this window.
const cacheTTL = 5 * time.Minute

type cachedEntry struct {
	weights models.WeightSet
	expires time.Time
}

// Service resolves effective scorer weights per tenant. Resolutions are
// cached in process; this cache is the only mutable state the service holds.
type Service struct {
	storage  interfaces.WeightStorage
	defaults models.WeightSet
	logger   arbor.ILogger

	mu    sync.RWMutex
	cache map[string]cachedEntry
}

// NewService creates a weight resolver backed by the given storage. The
// defaults vector is used for tenants without an override.
func NewService(storage interfaces.WeightStorage, defaults models.WeightSet, logger arbor.ILogger) interfaces.WeightService {
	if len(defaults) == 0 {
		defaults = models.DefaultWeightSet()
	}
	return &Service{
		storage:  storage,
		defaults: defaults.Normalized(),
		logger:   logger,
		cache:    make(map[string]cachedEntry),
	}
}

// Resolve returns the effective, normalized weights for a tenant
func (s *Service) Resolve(ctx context.Context, tenantID string) (models.WeightSet, error) {
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.cache[tenantID]
	s.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.weights.Clone(), nil
	}

	resolved := s.defaults
	override, err := s.storage.GetWeights(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve weights for tenant %s: %w", tenantID, err)
	}
	if override != nil && len(override.Weights) > 0 {
		resolved = override.Weights.Normalized()
	}

	s.mu.Lock()
	s.cache[tenantID] = cachedEntry{weights: resolved.Clone(), expires: now.Add(cacheTTL)}
	s.mu.Unlock()

	return resolved.Clone(), nil
}

// SetTenantWeights stores an override and drops the tenant's cache entry
func (s *Service) SetTenantWeights(ctx context.Context, tenantID string, weights models.WeightSet) error {
	if tenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if len(weights) == 0 {
		return fmt.Errorf("weights map is empty")
	}

	err := s.storage.StoreWeights(ctx, &models.TenantWeights{
		TenantID: tenantID,
		Weights:  weights.Clone(),
	})
	if err != nil {
		return err
	}

	s.invalidate(tenantID)
	s.logger.Info().
		Str("tenant_id", tenantID).
		Int("scorers", len(weights)).
		Msg("Tenant weight override stored")
	return nil
}

// DeleteTenantWeights removes an override, reverting the tenant to defaults
func (s *Service) DeleteTenantWeights(ctx context.Context, tenantID string) error {
	if err := s.storage.DeleteWeights(ctx, tenantID); err != nil {
		return err
	}
	s.invalidate(tenantID)
	return nil
}

// Flush clears the in-process resolution cache
func (s *Service) Flush() {
	s.mu.Lock()
	s.cache = make(map[string]cachedEntry)
	s.mu.Unlock()
}

func (s *Service) invalidate(tenantID string) {
	s.mu.Lock()
	delete(s.cache, tenantID)
	s.mu.Unlock()
}
