package badger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// QueueStorage implements the visibility-timeout work queue for Badger.
// Dequeue leases messages by pushing VisibleAt forward; a crashed worker
// never acks, so its lease expires and the message becomes eligible again.
// A mutex serializes lease operations so concurrent pollers never lease
// the same message twice.
type QueueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewQueueStorage creates a new QueueStorage instance
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) interfaces.QueueStorage {
	return &QueueStorage{
		db:     db,
		logger: logger,
	}
}

// Enqueue persists a message
func (s *QueueStorage) Enqueue(ctx context.Context, msg *models.QueueMessage) error {
	if msg.MessageID == "" {
		return fmt.Errorf("queue message requires a message_id")
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(msg.MessageID, msg); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// DequeueVisible leases up to n visible messages oldest-first. Each lease
// pushes VisibleAt to now+visibility and increments the attempt count.
func (s *QueueStorage) DequeueVisible(ctx context.Context, n int, now time.Time, visibility time.Duration) ([]*models.QueueMessage, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []models.QueueMessage
	query := badgerhold.Where("VisibleAt").Le(now).SortBy("EnqueuedAt")
	if err := s.db.Store().Find(&candidates, query); err != nil {
		return nil, fmt.Errorf("failed to find visible messages: %w", err)
	}
	if len(candidates) == 0 {
		return nil, models.ErrNoMessage
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].EnqueuedAt.Before(candidates[j].EnqueuedAt)
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}

	leased := make([]*models.QueueMessage, 0, len(candidates))
	for i := range candidates {
		msg := candidates[i]
		msg.Attempts++
		msg.VisibleAt = now.Add(visibility)
		if err := s.db.Store().Upsert(msg.MessageID, &msg); err != nil {
			s.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("Failed to lease message")
			continue
		}
		leased = append(leased, &msg)
	}

	if len(leased) == 0 {
		return nil, models.ErrNoMessage
	}
	return leased, nil
}

// Complete removes a processed message
func (s *QueueStorage) Complete(ctx context.Context, messageID string) error {
	err := s.db.Store().Delete(messageID, &models.QueueMessage{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to complete message: %w", err)
	}
	return nil
}

// Release makes a leased message visible again after the delay
func (s *QueueStorage) Release(ctx context.Context, messageID string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msg models.QueueMessage
	err := s.db.Store().Get(messageID, &msg)
	if err == badgerhold.ErrNotFound {
		return fmt.Errorf("message not found: %s", messageID)
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}

	msg.VisibleAt = time.Now().UTC().Add(delay)
	if err := s.db.Store().Upsert(messageID, &msg); err != nil {
		return fmt.Errorf("failed to release message: %w", err)
	}
	return nil
}

// PendingCount returns the number of messages not yet completed
func (s *QueueStorage) PendingCount(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.QueueMessage{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return int(count), nil
}

// PendingCountForJob returns outstanding messages for one job
func (s *QueueStorage) PendingCountForJob(ctx context.Context, jobID string) (int, error) {
	count, err := s.db.Store().Count(&models.QueueMessage{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for job: %w", err)
	}
	return int(count), nil
}

// ClearAll removes every message
func (s *QueueStorage) ClearAll(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.QueueMessage{}, nil); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	s.logger.Info().Msg("Cleared all queue messages")
	return nil
}
