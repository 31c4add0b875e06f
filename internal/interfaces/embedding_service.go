package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/congruo/internal/models"
)

// Embedding failure classes. Rate-limit and transient errors are retried
// by the adapter; fatal errors never are.
var (
	ErrRateLimit = errors.New("embedding service rate limited")
	ErrTransient = errors.New("embedding service transient failure")
	ErrFatal     = errors.New("embedding service fatal failure")
)

// IsRetryableEmbeddingError reports whether the adapter may retry the call
func IsRetryableEmbeddingError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTransient)
}

// EmbeddingService generates vector embeddings
type EmbeddingService interface {
	// Generate embedding for raw text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Build the full vector record for an opportunity (full + title and
	// description sections)
	EmbedOpportunity(ctx context.Context, opp *models.Opportunity) (*models.VectorRecord, error)

	// Build the vector record for a company capability statement
	EmbedCompany(ctx context.Context, profile *models.CompanyProfile) (*models.VectorRecord, error)

	// Get model information
	ModelName() string
	Dimension() int

	// Check if service is available
	IsAvailable(ctx context.Context) bool
}
