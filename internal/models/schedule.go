// -----------------------------------------------------------------------
// Schedule Entry - Named recurring or one-shot batch trigger
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// ScheduleEntry links a cron expression or one-shot timestamp to a batch
// job template. Keyed by name; triggering constructs a BatchRequest from
// the template and submits it to the coordinator.
type ScheduleEntry struct {
	// Identity
	Name     string `json:"name" badgerhold:"key"`
	TenantID string `json:"tenant_id" badgerhold:"index"`

	// Trigger. Exactly one of CronExpr or RunAt must be set. One-shot
	// entries disable themselves after firing.
	CronExpr string     `json:"cron_expr,omitempty"`
	RunAt    *time.Time `json:"run_at,omitempty"`

	// Job template submitted on trigger
	Template BatchRequest `json:"template"`

	Enabled bool `json:"enabled"`

	// Run bookkeeping
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastJobID string     `json:"last_job_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int64      `json:"run_count"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOneShot reports whether the entry fires once at RunAt
func (s *ScheduleEntry) IsOneShot() bool {
	return s.RunAt != nil
}

// Validate checks the trigger shape and template
func (s *ScheduleEntry) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if s.CronExpr == "" && s.RunAt == nil {
		return fmt.Errorf("schedule requires a cron_expr or run_at")
	}
	if s.CronExpr != "" && s.RunAt != nil {
		return fmt.Errorf("schedule cannot set both cron_expr and run_at")
	}
	return s.Template.Validate()
}

// RecordRun stamps bookkeeping after a trigger attempt
func (s *ScheduleEntry) RecordRun(jobID string, runErr error) {
	now := time.Now().UTC()
	s.LastRunAt = &now
	s.LastJobID = jobID
	s.RunCount++
	if runErr != nil {
		s.LastError = runErr.Error()
	} else {
		s.LastError = ""
	}
	if s.IsOneShot() {
		s.Enabled = false
	}
	s.UpdatedAt = now
}
