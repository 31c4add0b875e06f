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

// BriefStorage implements capture brief persistence for Badger
type BriefStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBriefStorage creates a new BriefStorage instance
func NewBriefStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BriefStorage {
	return &BriefStorage{
		db:     db,
		logger: logger,
	}
}

// StoreBrief upserts one capture brief
func (s *BriefStorage) StoreBrief(ctx context.Context, brief *models.CaptureBrief) error {
	if brief.BriefID == "" {
		return fmt.Errorf("brief requires a brief_id")
	}
	if brief.CreatedAt.IsZero() {
		brief.CreatedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(brief.BriefID, brief); err != nil {
		return fmt.Errorf("failed to store brief: %w", err)
	}
	return nil
}

// GetBrief retrieves one brief by id
func (s *BriefStorage) GetBrief(ctx context.Context, briefID string) (*models.CaptureBrief, error) {
	var brief models.CaptureBrief
	err := s.db.Store().Get(briefID, &brief)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("brief not found: %s", briefID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brief: %w", err)
	}
	return &brief, nil
}

// GetBriefForMatch returns the newest brief for a pair, nil when none exists
func (s *BriefStorage) GetBriefForMatch(ctx context.Context, companyID, opportunityID string) (*models.CaptureBrief, error) {
	var briefs []models.CaptureBrief
	query := badgerhold.Where("CompanyID").Eq(companyID).Index("CompanyID").
		And("OpportunityID").Eq(opportunityID).
		SortBy("CreatedAt").Reverse().Limit(1)
	if err := s.db.Store().Find(&briefs, query); err != nil {
		return nil, fmt.Errorf("failed to find brief: %w", err)
	}
	if len(briefs) == 0 {
		return nil, nil
	}
	return &briefs[0], nil
}

// ListBriefs returns a company's briefs newest first
func (s *BriefStorage) ListBriefs(ctx context.Context, companyID string, limit int) ([]*models.CaptureBrief, error) {
	var briefs []models.CaptureBrief
	query := badgerhold.Where("CompanyID").Eq(companyID).Index("CompanyID").SortBy("CreatedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&briefs, query); err != nil {
		return nil, fmt.Errorf("failed to list briefs: %w", err)
	}

	result := make([]*models.CaptureBrief, len(briefs))
	for i := range briefs {
		result[i] = &briefs[i]
	}
	return result, nil
}

// DeleteBriefs removes all briefs for a company
func (s *BriefStorage) DeleteBriefs(ctx context.Context, companyID string) (int, error) {
	var briefs []models.CaptureBrief
	query := badgerhold.Where("CompanyID").Eq(companyID).Index("CompanyID")
	if err := s.db.Store().Find(&briefs, query); err != nil {
		return 0, fmt.Errorf("failed to find briefs for delete: %w", err)
	}

	deleted := 0
	for i := range briefs {
		if err := s.db.Store().Delete(briefs[i].BriefID, &models.CaptureBrief{}); err != nil {
			s.logger.Warn().Err(err).Str("brief_id", briefs[i].BriefID).Msg("Failed to delete brief")
			continue
		}
		deleted++
	}
	return deleted, nil
}
