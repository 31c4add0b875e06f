// -----------------------------------------------------------------------
// Optimizer - Wave observations and tuning decisions
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// WaveStats summarizes one completed wave of batch work
type WaveStats struct {
	JobID       string        `json:"job_id"`
	TenantID    string        `json:"tenant_id"`
	Items       int64         `json:"items"`
	Failed      int64         `json:"failed"`
	Duration    time.Duration `json:"duration"`
	BatchSize   int           `json:"batch_size"`
	Concurrency int           `json:"concurrency"`
}

// FailureRate returns failed/items for the wave, or 0 for an empty wave
func (w WaveStats) FailureRate() float64 {
	if w.Items == 0 {
		return 0
	}
	return float64(w.Failed) / float64(w.Items)
}

// Throughput returns items per second for the wave
func (w WaveStats) Throughput() float64 {
	secs := w.Duration.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(w.Items) / secs
}

// TuningAction describes the optimizer's reaction to a wave
type TuningAction string

const (
	TuningHold    TuningAction = "hold"
	TuningBackOff TuningAction = "back_off"
	TuningScaleUp TuningAction = "scale_up"
)

// TuningDecision is the optimizer's proposal for the next wave
type TuningDecision struct {
	BatchSize   int          `json:"batch_size"`
	Concurrency int          `json:"concurrency"`
	Action      TuningAction `json:"action"`
	Reason      string       `json:"reason,omitempty"`
}

// OptimizationRecord is one persisted optimizer decision, keyed by
// (tenant_id, timestamp) for auditability.
type OptimizationRecord struct {
	ID          string       `json:"id" badgerhold:"key"` // tenant_id + ":" + unix nanos
	TenantID    string       `json:"tenant_id" badgerhold:"index"`
	JobID       string       `json:"job_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Action      TuningAction `json:"action"`
	Reason      string       `json:"reason,omitempty"`
	BatchSize   int          `json:"batch_size"`
	Concurrency int          `json:"concurrency"`
	FailureRate float64      `json:"failure_rate"`
	Throughput  float64      `json:"throughput"`
}

// OptimizationKey builds the history primary key
func OptimizationKey(tenantID string, ts time.Time) string {
	return tenantID + ":" + ts.UTC().Format("20060102T150405.000000000")
}
