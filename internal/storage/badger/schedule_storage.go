package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScheduleStorage implements schedule entry persistence for Badger
type ScheduleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScheduleStorage creates a new ScheduleStorage instance
func NewScheduleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScheduleStorage {
	return &ScheduleStorage{
		db:     db,
		logger: logger,
	}
}

// StoreSchedule upserts one schedule entry keyed by name
func (s *ScheduleStorage) StoreSchedule(ctx context.Context, entry *models.ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry.UpdatedAt = now

	// Preserve original creation time on update
	var existing models.ScheduleEntry
	if err := s.db.Store().Get(entry.Name, &existing); err == nil {
		entry.CreatedAt = existing.CreatedAt
	} else if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	if err := s.db.Store().Upsert(entry.Name, entry); err != nil {
		return fmt.Errorf("failed to store schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves one schedule entry by name
func (s *ScheduleStorage) GetSchedule(ctx context.Context, name string) (*models.ScheduleEntry, error) {
	var entry models.ScheduleEntry
	err := s.db.Store().Get(name, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("schedule not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &entry, nil
}

// ListSchedules returns all schedule entries sorted by name
func (s *ScheduleStorage) ListSchedules(ctx context.Context) ([]*models.ScheduleEntry, error) {
	var entries []models.ScheduleEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("Name").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	result := make([]*models.ScheduleEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

// DeleteSchedule removes one schedule entry
func (s *ScheduleStorage) DeleteSchedule(ctx context.Context, name string) error {
	err := s.db.Store().Delete(name, &models.ScheduleEntry{})
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("schedule not found: %s", name)
	}
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}
