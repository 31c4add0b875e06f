package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// MatchStorage implements persisted match results for Badger
type MatchStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewMatchStorage creates a new MatchStorage instance
func NewMatchStorage(db *BadgerDB, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{
		db:     db,
		logger: logger,
	}
}

// PutMatch upserts one result keyed by (company_id, opportunity_id).
// Last writer wins on concurrent puts for the same pair.
func (s *MatchStorage) PutMatch(ctx context.Context, result *models.MatchResult) error {
	if result.CompanyID == "" || result.OpportunityID == "" {
		return fmt.Errorf("match result requires company_id and opportunity_id")
	}

	result.SetKey()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to store match result: %w", err)
	}
	return nil
}

// GetMatch retrieves one result by pair
func (s *MatchStorage) GetMatch(ctx context.Context, companyID, opportunityID string) (*models.MatchResult, error) {
	var result models.MatchResult
	err := s.db.Store().Get(models.MatchKey(companyID, opportunityID), &result)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("match not found: %s/%s", companyID, opportunityID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return &result, nil
}

// QueryMatches returns a company's results in the given order
func (s *MatchStorage) QueryMatches(ctx context.Context, companyID string, limit int, order interfaces.MatchOrder) ([]*models.MatchResult, error) {
	var results []models.MatchResult
	query := badgerhold.Where("CompanyID").Eq(companyID).Index("CompanyID")
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}

	switch order {
	case interfaces.MatchOrderCreatedDesc:
		sort.Slice(results, func(i, j int) bool {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		})
	default:
		sort.Slice(results, func(i, j int) bool {
			if results[i].TotalScore != results[j].TotalScore {
				return results[i].TotalScore > results[j].TotalScore
			}
			return results[i].OpportunityID < results[j].OpportunityID
		})
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]*models.MatchResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

// DeleteMatches bulk-deletes all results for a company
func (s *MatchStorage) DeleteMatches(ctx context.Context, companyID string) (int, error) {
	var results []models.MatchResult
	query := badgerhold.Where("CompanyID").Eq(companyID).Index("CompanyID")
	if err := s.db.Store().Find(&results, query); err != nil {
		return 0, fmt.Errorf("failed to find matches for delete: %w", err)
	}

	deleted := 0
	for i := range results {
		if err := s.db.Store().Delete(results[i].ID, &models.MatchResult{}); err != nil {
			s.logger.Warn().Err(err).Str("match_id", results[i].ID).Msg("Failed to delete match result")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// DeleteExpired purges results past their expires_at timestamp
func (s *MatchStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var results []models.MatchResult
	query := badgerhold.Where("ExpiresAt").Lt(now)
	if err := s.db.Store().Find(&results, query); err != nil {
		return 0, fmt.Errorf("failed to find expired matches: %w", err)
	}

	deleted := 0
	for i := range results {
		if results[i].ExpiresAt.IsZero() {
			continue
		}
		if err := s.db.Store().Delete(results[i].ID, &models.MatchResult{}); err != nil {
			s.logger.Warn().Err(err).Str("match_id", results[i].ID).Msg("Failed to delete expired match")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// CountMatches returns the number of stored results
func (s *MatchStorage) CountMatches(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.MatchResult{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return int(count), nil
}
