// -----------------------------------------------------------------------
// Opportunity - Government contracting opportunity from the catalog
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
	"time"
)

// Place represents a geographic location (state + city)
type Place struct {
	State string `json:"state"` // Two-letter state code, e.g. "VA"
	City  string `json:"city,omitempty"`
}

// Opportunity represents a contracting opportunity as normalized by the
// catalog crawler. Immutable within a crawl cycle; archived once the
// archive date passes.
type Opportunity struct {
	// Identity
	NoticeID string `json:"notice_id" badgerhold:"key"`

	// Content
	Title       string `json:"title"`
	Description string `json:"description"`

	// Classification
	NAICSCode string `json:"naics_code"` // 6-digit NAICS, may be empty
	SetAside  string `json:"set_aside"`  // Normalized set-aside token, empty for open solicitations

	// Dates (UTC)
	PostedDate  time.Time `json:"posted_date"`
	ArchiveDate time.Time `json:"archive_date"` // Opportunity is inactive once now >= archive_date

	// Location and value
	PlaceOfPerformance *Place   `json:"place_of_performance,omitempty"`
	ContractValue      *float64 `json:"contract_value,omitempty"` // Estimated value in USD, nil when unknown

	// Issuing organization
	Office     string `json:"office,omitempty"`
	Department string `json:"department,omitempty"`

	// Embedding reference (external blob store owns the vector bytes)
	VectorURI string `json:"vector_uri,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsArchived returns true when the opportunity's archive date has passed
func (o *Opportunity) IsArchived(now time.Time) bool {
	if o.ArchiveDate.IsZero() {
		return false
	}
	return !now.Before(o.ArchiveDate)
}

// SearchText returns the combined text used by keyword and industry checks
func (o *Opportunity) SearchText() string {
	return strings.TrimSpace(o.Title + " " + o.Description)
}

// NAICSPrefix returns the first n digits of the NAICS code, or empty when
// the code is shorter than n
func (o *Opportunity) NAICSPrefix(n int) string {
	if len(o.NAICSCode) < n {
		return ""
	}
	return o.NAICSCode[:n]
}

// Validate checks required identity fields
func (o *Opportunity) Validate() error {
	if o.NoticeID == "" {
		return fmt.Errorf("opportunity notice_id is required")
	}
	if o.Title == "" {
		return fmt.Errorf("opportunity title is required")
	}
	return nil
}
