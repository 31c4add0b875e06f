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

// CacheStorage implements the fingerprint-keyed match cache for Badger.
// Expiry is lazy: expired entries are treated as misses on read and
// swept by DeleteExpired.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// GetEntry returns nil without error on miss or expiry
func (s *CacheStorage) GetEntry(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.Store().Get(fingerprint, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	if entry.IsExpired(time.Now().UTC()) {
		if delErr := s.db.Store().Delete(fingerprint, &models.CacheEntry{}); delErr != nil {
			s.logger.Warn().Err(delErr).Str("fingerprint", fingerprint).Msg("Failed to evict expired cache entry")
		}
		return nil, nil
	}
	return &entry, nil
}

// PutEntry upserts one cache entry keyed by fingerprint
func (s *CacheStorage) PutEntry(ctx context.Context, entry *models.CacheEntry) error {
	if entry.Fingerprint == "" {
		return fmt.Errorf("cache entry requires a fingerprint")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(entry.Fingerprint, entry); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// InvalidateCompany purges all entries involving a company
func (s *CacheStorage) InvalidateCompany(ctx context.Context, companyID string) (int, error) {
	var entries []models.CacheEntry
	query := badgerhold.Where("CompanyID").Eq(companyID).Index("CompanyID")
	if err := s.db.Store().Find(&entries, query); err != nil {
		return 0, fmt.Errorf("failed to find cache entries: %w", err)
	}

	deleted := 0
	for i := range entries {
		if err := s.db.Store().Delete(entries[i].Fingerprint, &models.CacheEntry{}); err != nil {
			s.logger.Warn().Err(err).Str("fingerprint", entries[i].Fingerprint).Msg("Failed to invalidate cache entry")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.logger.Debug().Str("company_id", companyID).Int("deleted", deleted).Msg("Invalidated cache entries")
	}
	return deleted, nil
}

// DeleteExpired sweeps entries past their TTL
func (s *CacheStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var entries []models.CacheEntry
	query := badgerhold.Where("ExpiresAt").Lt(now)
	if err := s.db.Store().Find(&entries, query); err != nil {
		return 0, fmt.Errorf("failed to find expired cache entries: %w", err)
	}

	deleted := 0
	for i := range entries {
		if err := s.db.Store().Delete(entries[i].Fingerprint, &models.CacheEntry{}); err != nil {
			s.logger.Warn().Err(err).Str("fingerprint", entries[i].Fingerprint).Msg("Failed to delete expired cache entry")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// CountEntries returns the number of cached results including expired ones
func (s *CacheStorage) CountEntries(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.CacheEntry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return int(count), nil
}
