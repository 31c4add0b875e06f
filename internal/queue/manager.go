package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// Manager is a thin wrapper around the queue storage.
// It provides ONLY queue operations, no business logic.
type Manager struct {
	storage interfaces.QueueStorage
	config  Config
	logger  arbor.ILogger
	running bool
}

// NewManager creates a new queue manager
func NewManager(storage interfaces.QueueStorage, config Config, logger arbor.ILogger) (*Manager, error) {
	if storage == nil {
		return nil, fmt.Errorf("queue storage is required")
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = 2 * time.Minute
	}
	if config.MaxReceive <= 0 {
		config.MaxReceive = 4
	}

	return &Manager{
		storage: storage,
		config:  config,
		logger:  logger,
	}, nil
}

// Start marks the manager ready and logs the backlog carried over from a
// previous run. Messages persist across restarts.
func (m *Manager) Start() error {
	backlog, err := m.storage.PendingCount(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read queue backlog: %w", err)
	}

	m.running = true
	m.logger.Info().
		Str("queue", m.config.QueueName).
		Int("backlog", backlog).
		Msg("Queue manager started")
	return nil
}

// Stop marks the manager stopped. In-flight leases expire naturally.
func (m *Manager) Stop() error {
	m.running = false
	m.logger.Info().Str("queue", m.config.QueueName).Msg("Queue manager stopped")
	return nil
}

// Enqueue adds a work unit to the queue, immediately visible
func (m *Manager) Enqueue(ctx context.Context, unit *models.WorkUnit) error {
	return m.EnqueueWithDelay(ctx, unit, 0)
}

// EnqueueWithDelay adds a work unit that becomes visible after the delay
func (m *Manager) EnqueueWithDelay(ctx context.Context, unit *models.WorkUnit, delay time.Duration) error {
	if unit == nil {
		return fmt.Errorf("work unit is required")
	}

	now := time.Now().UTC()
	if unit.EnqueuedAt.IsZero() {
		unit.EnqueuedAt = now
	}

	msg := &models.QueueMessage{
		MessageID:  uuid.New().String(),
		JobID:      unit.JobID,
		Unit:       unit,
		VisibleAt:  now.Add(delay),
		EnqueuedAt: now,
	}

	if err := m.storage.Enqueue(ctx, msg); err != nil {
		return err
	}

	m.logger.Trace().
		Str("message_id", msg.MessageID).
		Str("unit_id", unit.UnitID).
		Str("job_id", unit.JobID).
		Int("items", len(unit.OpportunityIDs)).
		Msg("Work unit enqueued")
	return nil
}

// Dequeue leases up to n visible messages. Messages past the receive limit
// are dead-lettered (dropped with a log) rather than returned, so a poison
// unit cannot loop forever.
func (m *Manager) Dequeue(ctx context.Context, n int) ([]*models.QueueMessage, error) {
	leased, err := m.storage.DequeueVisible(ctx, n, time.Now().UTC(), m.config.VisibilityTimeout)
	if err != nil {
		return nil, err
	}

	deliverable := make([]*models.QueueMessage, 0, len(leased))
	for _, msg := range leased {
		if msg.Attempts > m.config.MaxReceive {
			m.logger.Warn().
				Str("message_id", msg.MessageID).
				Str("job_id", msg.JobID).
				Int("attempts", msg.Attempts).
				Msg("Message exceeded receive limit, dead-lettering")
			if err := m.storage.Complete(ctx, msg.MessageID); err != nil {
				m.logger.Warn().Err(err).Str("message_id", msg.MessageID).Msg("Failed to drop dead-lettered message")
			}
			continue
		}
		deliverable = append(deliverable, msg)
	}

	if len(deliverable) == 0 {
		return nil, models.ErrNoMessage
	}
	return deliverable, nil
}

// Complete acks a processed message
func (m *Manager) Complete(ctx context.Context, msg *models.QueueMessage) error {
	return m.storage.Complete(ctx, msg.MessageID)
}

// Retry releases a leased message back to the queue after the delay
func (m *Manager) Retry(ctx context.Context, msg *models.QueueMessage, delay time.Duration) error {
	return m.storage.Release(ctx, msg.MessageID, delay)
}

// QueueLength returns the total number of outstanding messages
func (m *Manager) QueueLength(ctx context.Context) (int, error) {
	return m.storage.PendingCount(ctx)
}

// OutstandingForJob returns outstanding messages for one job
func (m *Manager) OutstandingForJob(ctx context.Context, jobID string) (int, error) {
	return m.storage.PendingCountForJob(ctx, jobID)
}

// Stats returns queue statistics for the status endpoint
func (m *Manager) Stats(ctx context.Context) (map[string]interface{}, error) {
	pending, err := m.storage.PendingCount(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"queue_name":         m.config.QueueName,
		"pending":            pending,
		"running":            m.running,
		"visibility_timeout": m.config.VisibilityTimeout.String(),
		"max_receive":        m.config.MaxReceive,
	}, nil
}
