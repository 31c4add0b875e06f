// -----------------------------------------------------------------------
// Company Profile - Capability profile maintained per tenant
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PastPerformanceRecord is one historical contract delivered by a company
type PastPerformanceRecord struct {
	Agency      string `json:"agency"`
	Description string `json:"description"`
	Year        int    `json:"year"`
}

// CompanyProfile represents a company's capability profile. Created and
// updated through the profile API; matching treats it as read-only.
type CompanyProfile struct {
	// Identity
	CompanyID string `json:"company_id" badgerhold:"key"`
	TenantID  string `json:"tenant_id" badgerhold:"index"`

	// Content
	Name                string `json:"name"`
	CapabilityStatement string `json:"capability_statement"`

	// Classification. First code is the primary NAICS; at most 10 codes.
	NAICSCodes     []string `json:"naics_codes"`
	Certifications []string `json:"certifications"` // Normalized tokens, e.g. "SDVOSB", "8(A)"

	// Size buckets, e.g. "1-10", "11-50", "51-200", "201-500", "500+"
	EmployeeCount string `json:"employee_count,omitempty"`
	RevenueRange  string `json:"revenue_range,omitempty"`

	// Footprint
	Locations       []Place                 `json:"locations,omitempty"`
	PastPerformance []PastPerformanceRecord `json:"past_performance,omitempty"`

	// Embedding reference for the capability statement
	VectorURI string `json:"vector_uri,omitempty"`

	Active bool `json:"active"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PrimaryNAICS returns the company's primary (first) NAICS code
func (c *CompanyProfile) PrimaryNAICS() string {
	if len(c.NAICSCodes) == 0 {
		return ""
	}
	return c.NAICSCodes[0]
}

// HasCertification reports whether the company holds the given normalized
// certification token
func (c *CompanyProfile) HasCertification(token string) bool {
	token = strings.ToUpper(strings.TrimSpace(token))
	for _, cert := range c.Certifications {
		if strings.ToUpper(strings.TrimSpace(cert)) == token {
			return true
		}
	}
	return false
}

// ProfileText returns the combined text used by keyword scoring: capability
// statement plus past-performance descriptions
func (c *CompanyProfile) ProfileText() string {
	var sb strings.Builder
	sb.WriteString(c.CapabilityStatement)
	for _, pp := range c.PastPerformance {
		sb.WriteString(" ")
		sb.WriteString(pp.Description)
	}
	return strings.TrimSpace(sb.String())
}

// EmployeeBounds parses the bucketed employee count into (min, max).
// "500+" style buckets return max = -1 (unbounded). Unknown or empty
// buckets return ok = false.
func (c *CompanyProfile) EmployeeBounds() (min int, max int, ok bool) {
	bucket := strings.TrimSpace(c.EmployeeCount)
	if bucket == "" {
		return 0, 0, false
	}

	if strings.HasSuffix(bucket, "+") {
		lo, err := strconv.Atoi(strings.TrimSuffix(bucket, "+"))
		if err != nil {
			return 0, 0, false
		}
		return lo, -1, true
	}

	parts := strings.SplitN(bucket, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// MaxEmployeesAtMost reports whether the entire employee bucket sits at or
// below the threshold (e.g. "11-50" is at most 50)
func (c *CompanyProfile) MaxEmployeesAtMost(threshold int) bool {
	_, max, ok := c.EmployeeBounds()
	if !ok || max < 0 {
		return false
	}
	return max <= threshold
}

// MinEmployeesAbove reports whether the entire employee bucket sits above
// the threshold (e.g. "201-500" is above 100)
func (c *CompanyProfile) MinEmployeesAbove(threshold int) bool {
	min, _, ok := c.EmployeeBounds()
	if !ok {
		return false
	}
	return min > threshold
}

// Validate checks required identity fields and the NAICS limit
func (c *CompanyProfile) Validate() error {
	if c.CompanyID == "" {
		return fmt.Errorf("company_id is required")
	}
	if c.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if len(c.NAICSCodes) > 10 {
		return fmt.Errorf("at most 10 NAICS codes allowed, got %d", len(c.NAICSCodes))
	}
	return nil
}
