// -----------------------------------------------------------------------
// Batch Job - Batch scoring job record and counters
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobState is the lifecycle state of a batch job
type JobState string

const (
	JobStatePending   JobState = "PENDING"
	JobStateRunning   JobState = "RUNNING"
	JobStateCompleted JobState = "COMPLETED"
	JobStateFailed    JobState = "FAILED"
	JobStateCancelled JobState = "CANCELLED"
)

// IsTerminal returns true for states that accept no further transitions
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// BatchCounters tracks per-job item accounting. At all times
// Submitted = Succeeded + Failed + Skipped + InFlight.
type BatchCounters struct {
	Total     int64 `json:"total"`     // Candidate set size
	Submitted int64 `json:"submitted"` // Items enqueued so far
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
	InFlight  int64 `json:"in_flight"`
}

// Consistent verifies the accounting identity over the counters
func (c BatchCounters) Consistent() bool {
	return c.Submitted == c.Succeeded+c.Failed+c.Skipped+c.InFlight
}

// Settled returns the number of items in a terminal outcome
func (c BatchCounters) Settled() int64 {
	return c.Succeeded + c.Failed + c.Skipped
}

// Remaining returns the number of candidates not yet settled
func (c BatchCounters) Remaining() int64 {
	return c.Total - c.Settled()
}

// FailureRatio returns failed/submitted, or 0 when nothing was submitted
func (c BatchCounters) FailureRatio() float64 {
	if c.Submitted == 0 {
		return 0
	}
	return float64(c.Failed) / float64(c.Submitted)
}

// CounterDelta is an atomic adjustment applied to BatchCounters. All fields
// except InFlight must be non-negative.
type CounterDelta struct {
	Submitted int64 `json:"submitted,omitempty"`
	Succeeded int64 `json:"succeeded,omitempty"`
	Failed    int64 `json:"failed,omitempty"`
	Skipped   int64 `json:"skipped,omitempty"`
	InFlight  int64 `json:"in_flight,omitempty"`
}

// Validate rejects negative deltas on monotonic counters
func (d CounterDelta) Validate() error {
	if d.Submitted < 0 || d.Succeeded < 0 || d.Failed < 0 || d.Skipped < 0 {
		return fmt.Errorf("negative delta on monotonic counter: %+v", d)
	}
	return nil
}

// OpportunityFilters narrows the candidate set scanned from the catalog
type OpportunityFilters struct {
	NAICSPrefixes   []string   `json:"naics_prefix,omitempty"`
	PostedAfter     *time.Time `json:"posted_after,omitempty"`
	SetAsideIn      []string   `json:"set_aside_in,omitempty"`
	States          []string   `json:"states,omitempty"`
	IncludeArchived bool       `json:"include_archived,omitempty"`
}

// Matches reports whether an opportunity satisfies the filters. Archived
// opportunities are excluded unless IncludeArchived is set.
func (f OpportunityFilters) Matches(opp *Opportunity, now time.Time) bool {
	if !f.IncludeArchived && opp.IsArchived(now) {
		return false
	}

	if len(f.NAICSPrefixes) > 0 {
		matched := false
		for _, prefix := range f.NAICSPrefixes {
			if prefix != "" && len(opp.NAICSCode) >= len(prefix) && opp.NAICSCode[:len(prefix)] == prefix {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.PostedAfter != nil && opp.PostedDate.Before(*f.PostedAfter) {
		return false
	}

	if len(f.SetAsideIn) > 0 {
		matched := false
		for _, sa := range f.SetAsideIn {
			if opp.SetAside == sa {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(f.States) > 0 {
		if opp.PlaceOfPerformance == nil {
			return false
		}
		matched := false
		for _, state := range f.States {
			if opp.PlaceOfPerformance.State == state {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// BatchRequest is the asynchronous batch input
type BatchRequest struct {
	CompanyID    string             `json:"company_id"`
	Filters      OpportunityFilters `json:"opportunity_filters"`
	BatchSize    int                `json:"batch_size,omitempty"` // 0 means use the optimizer's proposal
	ForceRefresh bool               `json:"force_refresh,omitempty"`
}

// Validate checks required fields
func (r *BatchRequest) Validate() error {
	if r.CompanyID == "" {
		return fmt.Errorf("company_id is required")
	}
	return nil
}

// BatchJob is the persisted record of a batch scoring run
type BatchJob struct {
	// Identity
	JobID     string `json:"job_id" badgerhold:"key"`
	TenantID  string `json:"tenant_id" badgerhold:"index"`
	CompanyID string `json:"company_id" badgerhold:"index"`

	// Lifecycle
	State     JobState `json:"state" badgerhold:"index"`
	LastError string   `json:"last_error,omitempty"`

	// Accounting
	Counters BatchCounters `json:"counters"`

	// Configuration snapshot at submission
	Filters      OpportunityFilters `json:"filters"`
	BatchSize    int                `json:"batch_size"`
	Concurrency  int                `json:"concurrency"`
	ForceRefresh bool               `json:"force_refresh"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Heartbeat   *time.Time `json:"heartbeat,omitempty"`
}

// NewBatchJob creates a PENDING batch job for a company
func NewBatchJob(jobID, tenantID string, req *BatchRequest, batchSize, concurrency int) *BatchJob {
	return &BatchJob{
		JobID:        jobID,
		TenantID:     tenantID,
		CompanyID:    req.CompanyID,
		State:        JobStatePending,
		Filters:      req.Filters,
		BatchSize:    batchSize,
		Concurrency:  concurrency,
		ForceRefresh: req.ForceRefresh,
		CreatedAt:    time.Now().UTC(),
	}
}

// MarkRunning transitions the job to RUNNING and stamps the start time
func (j *BatchJob) MarkRunning() {
	j.State = JobStateRunning
	now := time.Now().UTC()
	j.StartedAt = &now
	j.Heartbeat = &now
}

// MarkCompleted transitions the job to COMPLETED and stamps the end time
func (j *BatchJob) MarkCompleted() {
	j.State = JobStateCompleted
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkFailed transitions the job to FAILED with the last error message
func (j *BatchJob) MarkFailed(errorMsg string) {
	j.State = JobStateFailed
	j.LastError = errorMsg
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkCancelled transitions the job to CANCELLED
func (j *BatchJob) MarkCancelled() {
	j.State = JobStateCancelled
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// UpdateHeartbeat stamps the heartbeat timestamp
func (j *BatchJob) UpdateHeartbeat() {
	now := time.Now().UTC()
	j.Heartbeat = &now
}

// IsTerminal returns true once the job reached a terminal state
func (j *BatchJob) IsTerminal() bool {
	return j.State.IsTerminal()
}

// WorkUnit is one enqueued partition of a batch job: a set of opportunity
// ids to score against the job's company.
type WorkUnit struct {
	UnitID         string    `json:"unit_id"`
	JobID          string    `json:"job_id"`
	TenantID       string    `json:"tenant_id"`
	CompanyID      string    `json:"company_id"`
	OpportunityIDs []string  `json:"opportunity_ids"`
	ForceRefresh   bool      `json:"force_refresh"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// ToJSON serializes the work unit for queue storage
func (u *WorkUnit) ToJSON() ([]byte, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal work unit: %w", err)
	}
	return data, nil
}

// WorkUnitFromJSON deserializes a work unit from queue storage
func WorkUnitFromJSON(data []byte) (*WorkUnit, error) {
	var unit WorkUnit
	if err := json.Unmarshal(data, &unit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal work unit: %w", err)
	}
	return &unit, nil
}
