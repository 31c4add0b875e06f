package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// ScheduleStatus represents the runtime status of a schedule entry
type ScheduleStatus struct {
	Name      string
	Enabled   bool
	Schedule  string // Cron expression or one-shot timestamp
	LastRun   *time.Time
	NextRun   *time.Time
	IsRunning bool
	LastError string
}

// SchedulerService manages cron-based and one-shot batch triggers
type SchedulerService interface {
	// Start loads persisted schedules and begins dispatching
	Start() error

	// Stop halts dispatching; running triggers complete
	Stop() error

	// IsRunning returns true if the scheduler is active
	IsRunning() bool

	// CreateSchedule validates, persists, and registers a new entry
	CreateSchedule(ctx context.Context, entry *models.ScheduleEntry) error

	// UpdateSchedule replaces an existing entry and re-registers its trigger
	UpdateSchedule(ctx context.Context, entry *models.ScheduleEntry) error

	// DeleteSchedule removes an entry and unregisters its trigger
	DeleteSchedule(ctx context.Context, name string) error

	// GetSchedule returns one persisted entry
	GetSchedule(ctx context.Context, name string) (*models.ScheduleEntry, error)

	// ListSchedules returns all persisted entries
	ListSchedules(ctx context.Context) ([]*models.ScheduleEntry, error)

	// TriggerNow fires a schedule immediately, honoring the advisory lock
	TriggerNow(ctx context.Context, name string) (string, error)

	// GetStatus returns runtime status for one schedule
	GetStatus(name string) (*ScheduleStatus, error)

	// GetAllStatuses returns runtime status for every schedule
	GetAllStatuses() map[string]*ScheduleStatus
}
