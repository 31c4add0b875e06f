// Package cache memoizes match results keyed by content fingerprint.
// Entries are TTL-bounded and content-addressed, so concurrent overwrites
// are harmless. Cache trouble must never fail a match: errors degrade to
// misses on read and to log lines on write.
package cache

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// Service provides fingerprint-keyed match result caching.
type Service struct {
	storage interfaces.CacheStorage
	ttl     time.Duration
	logger  arbor.ILogger
}

// NewService creates a match cache with the given TTL.
func NewService(storage interfaces.CacheStorage, ttl time.Duration, logger arbor.ILogger) interfaces.MatchCacheService {
	return &Service{
		storage: storage,
		ttl:     ttl,
		logger:  logger,
	}
}

// Get returns a cached result and true only when a live entry exists.
// Storage errors and expired entries both read as a miss.
func (s *Service) Get(ctx context.Context, fingerprint string) (*models.MatchResult, bool) {
	entry, err := s.storage.GetEntry(ctx, fingerprint)
	if err != nil {
		s.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache read failed, treating as miss")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	if entry.IsExpired(time.Now()) {
		return nil, false
	}

	result := entry.Result
	result.Cached = true
	return &result, true
}

// Put memoizes a result under its fingerprint. Write errors are logged and
// swallowed; the caller already holds the result it needs.
func (s *Service) Put(ctx context.Context, fingerprint string, result *models.MatchResult) {
	now := time.Now()
	entry := &models.CacheEntry{
		Fingerprint: fingerprint,
		CompanyID:   result.CompanyID,
		Result:      *result,
		Timestamp:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	if err := s.storage.PutEntry(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("fingerprint", fingerprint).Msg("Cache write failed, proceeding without memoization")
	}
}

// InvalidateCompany purges all entries involving the company. Best-effort:
// a failed purge leaves entries to expire by TTL.
func (s *Service) InvalidateCompany(ctx context.Context, companyID string) {
	count, err := s.storage.InvalidateCompany(ctx, companyID)
	if err != nil {
		s.logger.Warn().Err(err).Str("company_id", companyID).Msg("Cache invalidation failed")
		return
	}
	if count > 0 {
		s.logger.Debug().Str("company_id", companyID).Int("entries", count).Msg("Cache entries invalidated")
	}
}

// DeleteExpired purges entries past their TTL. Called from the maintenance
// loop; expiry is enforced by scan since badgerhold values carry no native
// per-record TTL.
func (s *Service) DeleteExpired(ctx context.Context) (int, error) {
	return s.storage.DeleteExpired(ctx, time.Now())
}
