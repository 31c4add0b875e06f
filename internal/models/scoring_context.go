// -----------------------------------------------------------------------
// Scoring Context - Shared read-only inputs passed to every scorer
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// ScoringContext carries the pre-fetched data and tunables scorers need
// beyond the entity pair itself. Scorers treat it as read-only; building it
// is the orchestrator's job, so scorers themselves stay free of I/O.
type ScoringContext struct {
	// Pre-fetched embedding artifacts; nil when the vector_uri did not resolve
	OpportunityVector *VectorRecord
	CompanyVector     *VectorRecord

	// Evaluation time, fixed once per orchestrator invocation
	Now time.Time

	// Capacity thresholds shared with the quick filter
	HighValueThreshold float64
	LowValueThreshold  float64
	SmallTeamMax       int
	LargeTeamMin       int

	// Industry token set for NAICS keyword fallback
	IndustryTokens []string
}
