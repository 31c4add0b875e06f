// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"context"

	"github.com/ternarybob/congruo/internal/models"
)

// MatchCacheService memoizes match results keyed by content fingerprint.
// Every method is best-effort: storage errors surface as misses or log
// entries, never as failures in the caller's pipeline.
type MatchCacheService interface {
	// Get returns a cached result and true only when a live (unexpired)
	// entry exists for the fingerprint. Storage errors read as a miss.
	Get(ctx context.Context, fingerprint string) (*models.MatchResult, bool)

	// Put memoizes a result under its fingerprint with the configured TTL.
	// Idempotent overwrite; errors are logged and swallowed.
	Put(ctx context.Context, fingerprint string, result *models.MatchResult)

	// InvalidateCompany best-effort purges all entries involving a company.
	// Called on profile edits, where stale entries would keep serving
	// verdicts for the old profile until TTL expiry.
	InvalidateCompany(ctx context.Context, companyID string)

	// DeleteExpired removes entries past their TTL, returning the count
	DeleteExpired(ctx context.Context) (int, error)
}
