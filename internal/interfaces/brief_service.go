package interfaces

import (
	"context"

	"github.com/ternarybob/congruo/internal/models"
)

// BriefService generates LLM capture briefs for scored matches. Briefs are
// a reporting surface only; the matching pipeline never consults them.
type BriefService interface {
	// GenerateBrief produces and persists a brief for one scored match
	GenerateBrief(ctx context.Context, companyID, opportunityID string) (*models.CaptureBrief, error)

	// GetBrief returns a persisted brief by id
	GetBrief(ctx context.Context, briefID string) (*models.CaptureBrief, error)

	// ListBriefs returns a company's briefs, newest first
	ListBriefs(ctx context.Context, companyID string, limit int) ([]*models.CaptureBrief, error)

	// IsAvailable reports whether the LLM provider is configured
	IsAvailable() bool
}
