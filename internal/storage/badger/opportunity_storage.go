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

// OpportunityStorage implements the opportunity catalog for Badger
type OpportunityStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewOpportunityStorage creates a new OpportunityStorage instance
func NewOpportunityStorage(db *BadgerDB, logger arbor.ILogger) interfaces.OpportunityStorage {
	return &OpportunityStorage{
		db:     db,
		logger: logger,
	}
}

// StoreOpportunity upserts one opportunity keyed by notice id
func (s *OpportunityStorage) StoreOpportunity(ctx context.Context, opp *models.Opportunity) error {
	if err := opp.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	opp.UpdatedAt = now
	if opp.CreatedAt.IsZero() {
		opp.CreatedAt = now
	}

	if err := s.db.Store().Upsert(opp.NoticeID, opp); err != nil {
		return fmt.Errorf("failed to store opportunity: %w", err)
	}
	return nil
}

// StoreOpportunities upserts a batch of opportunities
func (s *OpportunityStorage) StoreOpportunities(ctx context.Context, opps []*models.Opportunity) error {
	for _, opp := range opps {
		if err := s.StoreOpportunity(ctx, opp); err != nil {
			return err
		}
	}
	return nil
}

// GetOpportunity retrieves one opportunity by notice id
func (s *OpportunityStorage) GetOpportunity(ctx context.Context, noticeID string) (*models.Opportunity, error) {
	var opp models.Opportunity
	err := s.db.Store().Get(noticeID, &opp)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("opportunity not found: %s", noticeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}
	return &opp, nil
}

// DeleteOpportunity removes one opportunity
func (s *OpportunityStorage) DeleteOpportunity(ctx context.Context, noticeID string) error {
	err := s.db.Store().Delete(noticeID, &models.Opportunity{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("opportunity not found: %s", noticeID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}
	return nil
}

// Scan streams the catalog with filters applied. Filtering happens in memory
// after the Find because badgerhold queries cannot express the prefix and
// date predicates; candidate sets are bounded by the daily catalog size.
func (s *OpportunityStorage) Scan(ctx context.Context, filters models.OpportunityFilters, fn func(*models.Opportunity) bool) error {
	var opps []models.Opportunity
	if err := s.db.Store().Find(&opps, nil); err != nil {
		return fmt.Errorf("failed to scan opportunities: %w", err)
	}

	now := time.Now().UTC()
	for i := range opps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		opp := &opps[i]
		if !filters.Matches(opp, now) {
			continue
		}
		if !fn(opp) {
			return nil
		}
	}
	return nil
}

// CountOpportunities returns the catalog size
func (s *OpportunityStorage) CountOpportunities(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Opportunity{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count opportunities: %w", err)
	}
	return int(count), nil
}

// ClearAll removes every opportunity
func (s *OpportunityStorage) ClearAll(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.Opportunity{}, nil); err != nil {
		return fmt.Errorf("failed to clear opportunities: %w", err)
	}
	s.logger.Info().Msg("Cleared all opportunities")
	return nil
}
