// -----------------------------------------------------------------------
// Match Result - Scored pairing of a company profile and an opportunity
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConfidenceLevel tiers a total score into HIGH/MEDIUM/LOW
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "HIGH"
	ConfidenceMedium ConfidenceLevel = "MEDIUM"
	ConfidenceLow    ConfidenceLevel = "LOW"
)

// ConfidenceForScore derives the confidence tier from a total score. It is a
// pure function: equal scores always produce equal tiers.
func ConfidenceForScore(totalScore, highThreshold, mediumThreshold float64) ConfidenceLevel {
	switch {
	case totalScore >= highThreshold:
		return ConfidenceHigh
	case totalScore >= mediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Component status values reported by scorers
const (
	ScoreStatusOK               = "ok"
	ScoreStatusMissingEmbedding = "missing_embedding"
	ScoreStatusTimeout          = "timeout"
)

// Overall result status values
const (
	MatchStatusOK       = "ok"
	MatchStatusDegraded = "degraded" // one or more components reported a non-ok status
	MatchStatusPartial  = "partial"  // orchestrator budget expired before all scorers finished
	MatchStatusFiltered = "filtered" // quick filter rejected the pair before scoring
)

// ComponentResult is the output of a single scorer
type ComponentResult struct {
	Score            float64                `json:"score"`  // Always within [0,1]
	Status           string                 `json:"status"` // "ok", "degraded:<reason>", "missing_embedding", "timeout", "error:<class>"
	Detail           map[string]interface{} `json:"detail,omitempty"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// FilterCheck is the outcome of one quick-filter check
type FilterCheck struct {
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// FilterResult is the quick filter verdict for an (opportunity, company) pair
type FilterResult struct {
	IsPotentialMatch bool                   `json:"is_potential_match"`
	FilterScore      float64                `json:"filter_score"` // Mean of check scores, informational
	PassReasons      []string               `json:"pass_reasons"`
	FailReasons      []string               `json:"fail_reasons"`
	Checks           map[string]FilterCheck `json:"checks"`
}

// MatchResult is the scored, explained verdict for one (company, opportunity)
// pair. Keyed by CompanyID + OpportunityID; re-runs overwrite in place.
type MatchResult struct {
	// Identity. ID is CompanyID + ":" + OpportunityID.
	ID            string `json:"id" badgerhold:"key"`
	CompanyID     string `json:"company_id" badgerhold:"index"`
	OpportunityID string `json:"opportunity_id"`
	TenantID      string `json:"tenant_id,omitempty"`

	// Scores
	TotalScore      float64            `json:"total_score"` // Within [0,1]
	ConfidenceLevel ConfidenceLevel    `json:"confidence_level"`
	ComponentScores map[string]float64 `json:"component_scores"`
	ComponentStatus map[string]string  `json:"component_status,omitempty"`
	FilterScore     float64            `json:"filter_score"`

	// Explanation
	MatchReasons    []string `json:"match_reasons"`
	Recommendations []string `json:"recommendations"`
	ActionItems     []string `json:"action_items"`

	// Provenance
	Status           string    `json:"status"` // "ok", "degraded", "partial", "filtered"
	Cached           bool      `json:"cached"`
	Fingerprint      string    `json:"fingerprint,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// MatchKey builds the MatchResult primary key for a pair
func MatchKey(companyID, opportunityID string) string {
	return companyID + ":" + opportunityID
}

// SetKey populates ID from CompanyID and OpportunityID
func (m *MatchResult) SetKey() {
	m.ID = MatchKey(m.CompanyID, m.OpportunityID)
}

// IsDegraded reports whether any component carries a non-ok status
func (m *MatchResult) IsDegraded() bool {
	for _, status := range m.ComponentStatus {
		if status != ScoreStatusOK {
			return true
		}
	}
	return false
}

// ToJSON serializes the match result for cache storage
func (m *MatchResult) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match result: %w", err)
	}
	return data, nil
}

// MatchResultFromJSON deserializes a match result from cache storage
func MatchResultFromJSON(data []byte) (*MatchResult, error) {
	var result MatchResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match result: %w", err)
	}
	return &result, nil
}

// MatchRequest is the synchronous match input
type MatchRequest struct {
	Opportunity     *Opportunity       `json:"opportunity"`
	CompanyProfile  *CompanyProfile    `json:"company_profile"`
	UseCache        bool               `json:"use_cache"`
	WeightsOverride map[string]float64 `json:"weights_override,omitempty"`
}

// Validate checks that both entities are present with required ids.
// Violations are input errors: fail fast, no retry.
func (r *MatchRequest) Validate() error {
	if r.Opportunity == nil {
		return fmt.Errorf("opportunity is required")
	}
	if r.CompanyProfile == nil {
		return fmt.Errorf("company_profile is required")
	}
	if err := r.Opportunity.Validate(); err != nil {
		return err
	}
	return r.CompanyProfile.Validate()
}
