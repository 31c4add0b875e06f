// -----------------------------------------------------------------------
// Cache Entry - Fingerprint-keyed memoized match result
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// CacheEntry memoizes one MatchResult under its input fingerprint. Served
// only while younger than its TTL; expired entries are purged lazily.
type CacheEntry struct {
	Fingerprint string      `json:"fingerprint" badgerhold:"key"`
	CompanyID   string      `json:"company_id" badgerhold:"index"` // For invalidation on profile edits
	Result      MatchResult `json:"result"`
	Timestamp   time.Time   `json:"timestamp"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// IsExpired reports whether the entry has outlived its TTL
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
