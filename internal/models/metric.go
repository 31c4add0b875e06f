// -----------------------------------------------------------------------
// Metric Sample - Tracker-published observability datapoint
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// MetricSample is one datapoint published by the progress tracker for
// external observability to consume.
type MetricSample struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	JobID     string    `json:"job_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JobStatus is the tracker's point-in-time view of a batch job
type JobStatus struct {
	JobID      string        `json:"job_id"`
	State      JobState      `json:"state"`
	Counters   BatchCounters `json:"counters"`
	Throughput float64       `json:"throughput"` // items/s over the trailing window
	ETASeconds float64       `json:"eta_seconds"`
	LastError  string        `json:"last_error,omitempty"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// JobHealth is the tracker's health verdict for a running job
type JobHealth struct {
	OK      bool     `json:"ok"`
	Reasons []string `json:"reasons,omitempty"`
}
