package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// Scorer is one match scoring component. Implementations must be pure
// functions of their inputs, cap scores to [0,1], and report non-fatal
// problems through the result status instead of an error.
type Scorer interface {
	// Name returns the component name used in weights and component_scores
	Name() string

	// DefaultWeight returns the component's default aggregation weight
	DefaultWeight() float64

	// Score evaluates the pair. The context carries pre-fetched vectors and
	// tunables; scorers perform no I/O of their own.
	Score(ctx context.Context, opp *models.Opportunity, profile *models.CompanyProfile, sctx *models.ScoringContext) models.ComponentResult
}

// QuickFilterService pre-screens a pair before any scoring work
type QuickFilterService interface {
	Apply(opp *models.Opportunity, profile *models.CompanyProfile, now time.Time) *models.FilterResult
}

// MatcherService runs the full pipeline for one pair: fingerprint, cache
// lookup, quick filter, scorers, aggregation, explanation, cache write.
type MatcherService interface {
	// Match produces one MatchResult. Only input errors return an error;
	// upstream degradation surfaces through component statuses.
	Match(ctx context.Context, req *models.MatchRequest) (*models.MatchResult, error)

	// MatchAndStore runs Match and persists the result to the matches store
	MatchAndStore(ctx context.Context, req *models.MatchRequest) (*models.MatchResult, error)
}
