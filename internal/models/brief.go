// -----------------------------------------------------------------------
// Capture Brief - LLM-generated pursuit summary for a scored match
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// CaptureBrief is a generated narrative for one scored match. Briefs are a
// reporting artifact: the matching pipeline never reads them.
type CaptureBrief struct {
	// Identity
	BriefID       string `json:"brief_id" badgerhold:"key"`
	CompanyID     string `json:"company_id" badgerhold:"index"`
	OpportunityID string `json:"opportunity_id"`
	TenantID      string `json:"tenant_id,omitempty"`

	// Content parsed from the model response
	Summary   string   `json:"summary"`
	WinThemes []string `json:"win_themes,omitempty"`
	Risks     []string `json:"risks,omitempty"`
	NextSteps []string `json:"next_steps,omitempty"`

	// Provenance
	Model      string    `json:"model"`
	TotalScore float64   `json:"total_score"` // Score of the match the brief describes
	CreatedAt  time.Time `json:"created_at"`
}

// BriefContent is the YAML payload the model is instructed to emit
type BriefContent struct {
	Summary   string   `yaml:"summary"`
	WinThemes []string `yaml:"win_themes"`
	Risks     []string `yaml:"risks"`
	NextSteps []string `yaml:"next_steps"`
}
