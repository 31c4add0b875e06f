package embeddings

import (
	"context"
	"fmt"

	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// disabledService satisfies EmbeddingService when no provider is
// configured. Every call fails fatally so callers degrade without retry;
// the semantic scorer reports missing embeddings instead.
type disabledService struct {
	model     string
	dimension int
}

func newDisabledService(model string, dimension int) interfaces.EmbeddingService {
	return &disabledService{
		model:     model,
		dimension: dimension,
	}
}

func (s *disabledService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: embedding provider is disabled", interfaces.ErrFatal)
}

func (s *disabledService) EmbedOpportunity(ctx context.Context, opp *models.Opportunity) (*models.VectorRecord, error) {
	return nil, fmt.Errorf("%w: embedding provider is disabled", interfaces.ErrFatal)
}

func (s *disabledService) EmbedCompany(ctx context.Context, profile *models.CompanyProfile) (*models.VectorRecord, error) {
	return nil, fmt.Errorf("%w: embedding provider is disabled", interfaces.ErrFatal)
}

func (s *disabledService) ModelName() string {
	return s.model
}

func (s *disabledService) Dimension() int {
	return s.dimension
}

func (s *disabledService) IsAvailable(ctx context.Context) bool {
	return false
}
