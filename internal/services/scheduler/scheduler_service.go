// Package scheduler fires batch jobs from named schedule entries: cron
// expressions for recurring runs and one-shot future timestamps. An
// advisory lock per schedule name prevents the same entry from executing
// concurrently; overlapping triggers are skipped, not queued.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// scheduleState holds the runtime trigger machinery for one entry
type scheduleState struct {
	cronID    cron.EntryID // 0 when no recurring trigger is registered
	timer     *time.Timer  // pending one-shot trigger
	isRunning bool         // advisory lock
}

// Service implements SchedulerService
type Service struct {
	schedules interfaces.ScheduleStorage
	batch     interfaces.BatchService
	events    interfaces.EventService
	cron      *cron.Cron
	logger    arbor.ILogger

	mu      sync.Mutex
	states  map[string]*scheduleState
	running bool
}

// NewService creates a scheduler backed by persisted schedule entries
func NewService(
	schedules interfaces.ScheduleStorage,
	batch interfaces.BatchService,
	events interfaces.EventService,
	logger arbor.ILogger,
) interfaces.SchedulerService {
	return &Service{
		schedules: schedules,
		batch:     batch,
		events:    events,
		cron:      cron.New(),
		logger:    logger,
		states:    make(map[string]*scheduleState),
	}
}

// Start loads persisted schedules, registers their triggers, and begins
// dispatching
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	entries, err := s.schedules.ListSchedules(context.Background())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	registered := 0
	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		if err := s.registerLocked(entry); err != nil {
			s.logger.Warn().Err(err).Str("schedule", entry.Name).Msg("Failed to register schedule")
			continue
		}
		registered++
	}

	s.cron.Start()
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Int("registered", registered).
		Int("total", len(entries)).
		Msg("Scheduler started")
	return nil
}

// Stop halts dispatching. Triggers already executing complete.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.cron.Stop()
	for _, st := range s.states {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.cronID = 0
	}
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CreateSchedule validates, persists, and registers a new entry
func (s *Service) CreateSchedule(ctx context.Context, entry *models.ScheduleEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	if _, err := s.schedules.GetSchedule(ctx, entry.Name); err == nil {
		return fmt.Errorf("schedule %s already exists", entry.Name)
	}

	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := s.schedules.StoreSchedule(ctx, entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && entry.Enabled {
		if err := s.registerLocked(entry); err != nil {
			return err
		}
	}

	s.logger.Info().
		Str("schedule", entry.Name).
		Str("cron_expr", entry.CronExpr).
		Bool("one_shot", entry.IsOneShot()).
		Msg("Schedule created")
	return nil
}

// UpdateSchedule replaces an entry's trigger and template, preserving its
// run bookkeeping
func (s *Service) UpdateSchedule(ctx context.Context, entry *models.ScheduleEntry) error {
	if err := validateEntry(entry); err != nil {
		return err
	}
	stored, err := s.schedules.GetSchedule(ctx, entry.Name)
	if err != nil {
		return err
	}

	entry.CreatedAt = stored.CreatedAt
	entry.RunCount = stored.RunCount
	entry.LastRunAt = stored.LastRunAt
	entry.LastJobID = stored.LastJobID
	entry.LastError = stored.LastError
	if err := s.schedules.StoreSchedule(ctx, entry); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.unregisterLocked(entry.Name)
	if s.running && entry.Enabled {
		if err := s.registerLocked(entry); err != nil {
			return err
		}
	}

	s.logger.Info().Str("schedule", entry.Name).Msg("Schedule updated")
	return nil
}

// DeleteSchedule removes an entry and unregisters its trigger
func (s *Service) DeleteSchedule(ctx context.Context, name string) error {
	if err := s.schedules.DeleteSchedule(ctx, name); err != nil {
		return err
	}

	s.mu.Lock()
	s.unregisterLocked(name)
	delete(s.states, name)
	s.mu.Unlock()

	s.logger.Info().Str("schedule", name).Msg("Schedule deleted")
	return nil
}

// GetSchedule returns one persisted entry
func (s *Service) GetSchedule(ctx context.Context, name string) (*models.ScheduleEntry, error) {
	return s.schedules.GetSchedule(ctx, name)
}

// ListSchedules returns all persisted entries
func (s *Service) ListSchedules(ctx context.Context) ([]*models.ScheduleEntry, error) {
	return s.schedules.ListSchedules(ctx)
}

// TriggerNow fires a schedule immediately. Fails when the entry is already
// executing rather than queueing a second run.
func (s *Service) TriggerNow(ctx context.Context, name string) (string, error) {
	entry, err := s.schedules.GetSchedule(ctx, name)
	if err != nil {
		return "", err
	}

	if !s.acquire(name) {
		return "", fmt.Errorf("schedule %s is already executing", name)
	}
	defer s.release(name)

	return s.execute(ctx, entry)
}

// GetStatus returns runtime status for one schedule
func (s *Service) GetStatus(name string) (*interfaces.ScheduleStatus, error) {
	entry, err := s.schedules.GetSchedule(context.Background(), name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	st := s.states[name]
	var isRunning bool
	var nextRun *time.Time
	if st != nil {
		isRunning = st.isRunning
		if st.cronID != 0 {
			next := s.cron.Entry(st.cronID).Next
			if !next.IsZero() {
				nextRun = &next
			}
		} else if st.timer != nil && entry.RunAt != nil {
			nextRun = entry.RunAt
		}
	}
	s.mu.Unlock()

	schedule := entry.CronExpr
	if entry.IsOneShot() {
		schedule = entry.RunAt.Format(time.RFC3339)
	}

	return &interfaces.ScheduleStatus{
		Name:      entry.Name,
		Enabled:   entry.Enabled,
		Schedule:  schedule,
		LastRun:   entry.LastRunAt,
		NextRun:   nextRun,
		IsRunning: isRunning,
		LastError: entry.LastError,
	}, nil
}

// GetAllStatuses returns runtime status for every schedule
func (s *Service) GetAllStatuses() map[string]*interfaces.ScheduleStatus {
	entries, err := s.schedules.ListSchedules(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to list schedules for status")
		return map[string]*interfaces.ScheduleStatus{}
	}

	statuses := make(map[string]*interfaces.ScheduleStatus, len(entries))
	for _, entry := range entries {
		status, err := s.GetStatus(entry.Name)
		if err == nil {
			statuses[entry.Name] = status
		}
	}
	return statuses
}

// registerLocked wires the entry's trigger. Caller holds s.mu.
func (s *Service) registerLocked(entry *models.ScheduleEntry) error {
	name := entry.Name
	st := s.stateLocked(name)

	if entry.IsOneShot() {
		// A missed one-shot fires immediately; it has not run yet, since
		// running disables the entry
		delay := time.Until(*entry.RunAt)
		st.timer = time.AfterFunc(delay, func() {
			s.fire(name)
			s.mu.Lock()
			if cur, ok := s.states[name]; ok {
				cur.timer = nil
			}
			s.mu.Unlock()
		})
		return nil
	}

	cronID, err := s.cron.AddFunc(entry.CronExpr, func() {
		s.fire(name)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", entry.CronExpr, err)
	}
	st.cronID = cronID
	return nil
}

// unregisterLocked tears down the entry's trigger. Caller holds s.mu.
func (s *Service) unregisterLocked(name string) {
	st, ok := s.states[name]
	if !ok {
		return
	}
	if st.cronID != 0 {
		s.cron.Remove(st.cronID)
		st.cronID = 0
	}
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

// fire runs one scheduled trigger under the advisory lock
func (s *Service) fire(name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("schedule", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in schedule trigger")
		}
	}()

	if !s.acquire(name) {
		s.logger.Warn().Str("schedule", name).Msg("Schedule still executing, trigger skipped")
		return
	}
	defer s.release(name)

	ctx := context.Background()
	entry, err := s.schedules.GetSchedule(ctx, name)
	if err != nil {
		s.logger.Warn().Err(err).Str("schedule", name).Msg("Schedule vanished before trigger")
		return
	}
	if !entry.Enabled {
		s.logger.Debug().Str("schedule", name).Msg("Schedule disabled, trigger skipped")
		return
	}

	_, _ = s.execute(ctx, entry)
}

// execute submits the entry's template and records the run
func (s *Service) execute(ctx context.Context, entry *models.ScheduleEntry) (string, error) {
	start := time.Now()
	s.logger.Info().
		Str("schedule", entry.Name).
		Str("company_id", entry.Template.CompanyID).
		Msg("🚀 Schedule trigger started")

	template := entry.Template
	jobID, err := s.batch.Submit(ctx, entry.TenantID, &template)

	entry.RecordRun(jobID, err)
	if storeErr := s.schedules.StoreSchedule(ctx, entry); storeErr != nil {
		s.logger.Warn().Err(storeErr).Str("schedule", entry.Name).Msg("Failed to persist run bookkeeping")
	}
	if entry.IsOneShot() {
		// One-shots disable themselves after firing
		s.mu.Lock()
		s.unregisterLocked(entry.Name)
		s.mu.Unlock()
	}

	if err != nil {
		s.logger.Error().
			Str("schedule", entry.Name).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("❌ Schedule trigger failed")
		return "", err
	}

	s.logger.Info().
		Str("schedule", entry.Name).
		Str("job_id", jobID).
		Dur("duration", time.Since(start)).
		Msg("✅ Schedule trigger completed")
	_ = s.events.Publish(ctx, interfaces.Event{Type: interfaces.EventScheduleTriggered, Payload: entry})
	return jobID, nil
}

// acquire takes the advisory lock for a schedule name
func (s *Service) acquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(name)
	if st.isRunning {
		return false
	}
	st.isRunning = true
	return true
}

// release frees the advisory lock
func (s *Service) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[name]; ok {
		st.isRunning = false
	}
}

// stateLocked returns the runtime state for a name, creating it on first
// use. Caller holds s.mu.
func (s *Service) stateLocked(name string) *scheduleState {
	st, ok := s.states[name]
	if !ok {
		st = &scheduleState{}
		s.states[name] = st
	}
	return st
}

// validateEntry checks the entry shape plus cron syntax, so malformed
// expressions are rejected before anything persists
func validateEntry(entry *models.ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.CronExpr != "" {
		return common.ValidateCronSchedule(entry.CronExpr)
	}
	return nil
}
