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

// CompanyStorage implements company profile persistence for Badger
type CompanyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new CompanyStorage instance
func NewCompanyStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{
		db:     db,
		logger: logger,
	}
}

// StoreCompany upserts one company profile keyed by company id
func (s *CompanyStorage) StoreCompany(ctx context.Context, profile *models.CompanyProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	profile.UpdatedAt = now

	// Preserve original creation time on update
	var existing models.CompanyProfile
	if err := s.db.Store().Get(profile.CompanyID, &existing); err == nil {
		profile.CreatedAt = existing.CreatedAt
	} else if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}

	if err := s.db.Store().Upsert(profile.CompanyID, profile); err != nil {
		return fmt.Errorf("failed to store company: %w", err)
	}
	return nil
}

// GetCompany retrieves one company profile by id
func (s *CompanyStorage) GetCompany(ctx context.Context, companyID string) (*models.CompanyProfile, error) {
	var profile models.CompanyProfile
	err := s.db.Store().Get(companyID, &profile)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("company not found: %s", companyID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &profile, nil
}

// ListCompanies returns profiles for a tenant, newest first
func (s *CompanyStorage) ListCompanies(ctx context.Context, tenantID string, limit, offset int) ([]*models.CompanyProfile, error) {
	var profiles []models.CompanyProfile
	query := badgerhold.Where("TenantID").Eq(tenantID).SortBy("UpdatedAt").Reverse()
	if offset > 0 {
		query = query.Skip(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&profiles, query); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	result := make([]*models.CompanyProfile, len(profiles))
	for i := range profiles {
		result[i] = &profiles[i]
	}
	return result, nil
}

// DeleteCompany removes one company profile
func (s *CompanyStorage) DeleteCompany(ctx context.Context, companyID string) error {
	err := s.db.Store().Delete(companyID, &models.CompanyProfile{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("company not found: %s", companyID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}

// CountCompanies returns the number of stored profiles
func (s *CompanyStorage) CountCompanies(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CompanyProfile{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return int(count), nil
}
