// Package scorers provides the match scoring components. Each scorer is a
// pure function of (opportunity, profile, context): no I/O, output capped to
// [0,1], non-fatal problems reported through the result status rather than
// an error.
package scorers

import (
	"time"

	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// Component names, also the keys of weight sets and component_scores
const (
	NameSemantic      = "semantic_similarity"
	NameKeyword       = "keyword_matching"
	NameNAICS         = "naics_alignment"
	NamePastPerf      = "past_performance"
	NameCertification = "certification_bonus"
	NameGeography     = "geographic_match"
	NameCapacity      = "capacity_fit"
	NameRecency       = "recency_factor"
)

// Default returns the stock registry of all eight scorers in stable name
// order. The orchestrator treats the slice as read-only.
func Default() []interfaces.Scorer {
	return []interfaces.Scorer{
		&CapacityScorer{},
		&CertificationScorer{},
		&GeographyScorer{},
		&KeywordScorer{},
		&NAICSScorer{},
		&PastPerformanceScorer{},
		&RecencyScorer{},
		&SemanticScorer{},
	}
}

// finish stamps elapsed time onto a result and caps the score
func finish(result models.ComponentResult, start time.Time) models.ComponentResult {
	result.Score = Clamp01(result.Score)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result
}
