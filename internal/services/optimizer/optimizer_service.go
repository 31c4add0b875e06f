// Package optimizer adapts batch size and concurrency between waves from
// observed throughput and failure rates. Decisions are advisory: the
// coordinator clamps whatever the optimizer proposes.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

const (
	// backOffFailureRate triggers a back-off after two consecutive waves above it
	backOffFailureRate = 0.05

	// scaleUpFailureRate is the ceiling under which scaling up is considered
	scaleUpFailureRate = 0.01

	// plateauTolerance treats throughput within this fraction of the two
	// prior waves as plateaued
	plateauTolerance = 0.05

	// scaleStep is the fractional increase/decrease applied per adjustment
	scaleStep = 0.25
)

// tenantState carries the per-tenant tuning trajectory between waves
type tenantState struct {
	decision        models.TuningDecision
	highFailureRuns int
	throughputs     []float64 // two most recent wave throughputs
}

// Service implements OptimizerService with in-memory per-tenant state and
// a persisted decision history.
type Service struct {
	config  common.BatchConfig
	history interfaces.HistoryStorage
	logger  arbor.ILogger

	mu      sync.Mutex
	tenants map[string]*tenantState
}

// NewService creates a batch optimizer
func NewService(config common.BatchConfig, history interfaces.HistoryStorage, logger arbor.ILogger) interfaces.OptimizerService {
	return &Service{
		config:  config,
		history: history,
		logger:  logger,
		tenants: make(map[string]*tenantState),
	}
}

// Propose returns the tuning for a tenant's next wave. Cold starts resume
// from the most recent persisted decision, then fall back to configured
// defaults.
func (s *Service) Propose(ctx context.Context, tenantID string) models.TuningDecision {
	s.mu.Lock()
	if state, ok := s.tenants[tenantID]; ok {
		decision := state.decision
		s.mu.Unlock()
		return decision
	}
	s.mu.Unlock()

	if records, err := s.history.ListRecords(ctx, tenantID, 1); err == nil && len(records) > 0 {
		last := records[0]
		decision := models.TuningDecision{
			BatchSize:   last.BatchSize,
			Concurrency: last.Concurrency,
			Action:      models.TuningHold,
			Reason:      "resumed from history",
		}
		s.remember(tenantID, decision)
		return decision
	}

	decision := s.defaults()
	s.remember(tenantID, decision)
	return decision
}

// Observe folds one completed wave into the tenant's trajectory and returns
// the proposal for the next wave. History writes are best-effort; an audit
// gap must not stall batch work.
func (s *Service) Observe(ctx context.Context, wave models.WaveStats) (models.TuningDecision, error) {
	if wave.TenantID == "" {
		return models.TuningDecision{}, fmt.Errorf("wave tenant_id is required")
	}

	failureRate := wave.FailureRate()
	throughput := wave.Throughput()

	s.mu.Lock()
	state, ok := s.tenants[wave.TenantID]
	if !ok {
		state = &tenantState{decision: s.defaults()}
		s.tenants[wave.TenantID] = state
	}

	current := state.decision
	if wave.BatchSize > 0 {
		current.BatchSize = wave.BatchSize
	}
	if wave.Concurrency > 0 {
		current.Concurrency = wave.Concurrency
	}

	if failureRate > backOffFailureRate {
		state.highFailureRuns++
	} else {
		state.highFailureRuns = 0
	}

	next := current
	switch {
	case state.highFailureRuns >= 2:
		next.Concurrency = max(s.config.ConcurrencyMin, current.Concurrency/2)
		next.BatchSize = max(s.config.SizeMin, shrink(current.BatchSize))
		next.Action = models.TuningBackOff
		next.Reason = fmt.Sprintf("failure rate %.3f above %.2f for %d consecutive waves", failureRate, backOffFailureRate, state.highFailureRuns)
	case failureRate < scaleUpFailureRate && !state.plateaued(throughput):
		next.Concurrency = min(s.config.ConcurrencyMax, grow(current.Concurrency))
		next.BatchSize = min(s.config.SizeMax, grow(current.BatchSize))
		next.Action = models.TuningScaleUp
		next.Reason = fmt.Sprintf("failure rate %.3f with throughput %.1f items/s still climbing", failureRate, throughput)
	default:
		next.Action = models.TuningHold
		next.Reason = fmt.Sprintf("failure rate %.3f, throughput %.1f items/s", failureRate, throughput)
	}

	state.throughputs = append(state.throughputs, throughput)
	if len(state.throughputs) > 2 {
		state.throughputs = state.throughputs[len(state.throughputs)-2:]
	}
	state.decision = next
	s.mu.Unlock()

	now := time.Now().UTC()
	record := &models.OptimizationRecord{
		ID:          models.OptimizationKey(wave.TenantID, now),
		TenantID:    wave.TenantID,
		JobID:       wave.JobID,
		Timestamp:   now,
		Action:      next.Action,
		Reason:      next.Reason,
		BatchSize:   next.BatchSize,
		Concurrency: next.Concurrency,
		FailureRate: failureRate,
		Throughput:  throughput,
	}
	if err := s.history.AppendRecord(ctx, record); err != nil {
		s.logger.Warn().Err(err).Str("tenant_id", wave.TenantID).Msg("Failed to append optimization record")
	}

	s.logger.Debug().
		Str("tenant_id", wave.TenantID).
		Str("action", string(next.Action)).
		Int("batch_size", next.BatchSize).
		Int("concurrency", next.Concurrency).
		Msg("Wave observed")

	return next, nil
}

// History returns recent decisions for a tenant, newest first
func (s *Service) History(ctx context.Context, tenantID string, limit int) ([]*models.OptimizationRecord, error) {
	return s.history.ListRecords(ctx, tenantID, limit)
}

func (s *Service) defaults() models.TuningDecision {
	return models.TuningDecision{
		BatchSize:   s.config.SizeDefault,
		Concurrency: s.config.ConcurrencyDefault,
		Action:      models.TuningHold,
		Reason:      "configured defaults",
	}
}

func (s *Service) remember(tenantID string, decision models.TuningDecision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenantID]; !ok {
		s.tenants[tenantID] = &tenantState{decision: decision}
	}
}

// plateaued reports whether throughput sits within tolerance of both prior
// waves. Fewer than two priors never counts as a plateau.
func (st *tenantState) plateaued(throughput float64) bool {
	if len(st.throughputs) < 2 {
		return false
	}
	for _, prior := range st.throughputs[len(st.throughputs)-2:] {
		if prior <= 0 {
			return false
		}
		if math.Abs(throughput-prior)/prior > plateauTolerance {
			return false
		}
	}
	return true
}

// grow applies the scale step, always moving by at least one
func grow(v int) int {
	next := int(float64(v) * (1 + scaleStep))
	if next <= v {
		next = v + 1
	}
	return next
}

// shrink applies the scale step downward
func shrink(v int) int {
	return int(float64(v) * (1 - scaleStep))
}
