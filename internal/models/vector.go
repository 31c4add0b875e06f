// -----------------------------------------------------------------------
// Vector Record - Embedding artifacts referenced by vector_uri
// -----------------------------------------------------------------------

package models

import (
	"math"
	"time"
)

// Section names used by the semantic similarity scorer
const (
	VectorSectionTitle       = "title"
	VectorSectionDescription = "description"
)

// OpportunityVectorKey builds the canonical vector_uri for an opportunity
func OpportunityVectorKey(noticeID string) string {
	return "vec/opp/" + noticeID
}

// CompanyVectorKey builds the canonical vector_uri for a company profile
func CompanyVectorKey(companyID string) string {
	return "vec/comp/" + companyID
}

// VectorRecord holds the embedding artifacts for one entity. The full
// vector is required; chunks and sections are optional refinements
// produced by the ingestion pipeline.
type VectorRecord struct {
	Key       string               `json:"key" badgerhold:"key"` // The entity's vector_uri
	Dimension int                  `json:"dimension"`
	Full      []float32            `json:"full"`
	Chunks    [][]float32          `json:"chunks,omitempty"`
	Sections  map[string][]float32 `json:"sections,omitempty"`
	Model     string               `json:"model,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// HasFull reports whether the record carries a usable full-document vector
func (v *VectorRecord) HasFull() bool {
	return v != nil && len(v.Full) > 0
}

// IsNormalized checks the full vector's L2 norm is 1.0 within tolerance
func (v *VectorRecord) IsNormalized(tolerance float64) bool {
	if !v.HasFull() {
		return false
	}
	var sum float64
	for _, x := range v.Full {
		sum += float64(x) * float64(x)
	}
	return math.Abs(math.Sqrt(sum)-1.0) <= tolerance
}
