package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// WorkerPool manages a pool of pollers that process queue messages
type WorkerPool struct {
	queueMgr *Manager
	handler  interfaces.UnitHandler
	logger   arbor.ILogger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(queueMgr *Manager, logger arbor.ILogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queueMgr: queueMgr,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// RegisterHandler registers the work unit handler
func (wp *WorkerPool) RegisterHandler(handler interfaces.UnitHandler) {
	wp.handler = handler
	wp.logger.Debug().Msg("Work unit handler registered")
}

// Start starts the worker pool
func (wp *WorkerPool) Start() error {
	concurrency := wp.queueMgr.config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	wp.logger.Info().
		Int("concurrency", concurrency).
		Msg("Starting worker pool")

	for i := 0; i < concurrency; i++ {
		go wp.worker(i, concurrency)
	}

	return nil
}

// Stop gracefully stops the worker pool. In-flight units run to completion;
// their messages are acked by the worker before it observes the cancel.
func (wp *WorkerPool) Stop() error {
	wp.logger.Info().Msg("Stopping worker pool")
	wp.cancel()
	return nil
}

// worker is the main poll loop that processes messages
func (wp *WorkerPool) worker(workerID, concurrency int) {
	// Stagger worker starts so pollers spread across the poll interval
	staggerDelay := (wp.queueMgr.config.PollInterval / time.Duration(concurrency)) * time.Duration(workerID)
	if staggerDelay > 0 {
		time.Sleep(staggerDelay)
	}

	wp.logger.Debug().
		Int("worker_id", workerID).
		Dur("stagger_delay", staggerDelay).
		Msg("Worker started")

	ticker := time.NewTicker(wp.queueMgr.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wp.ctx.Done():
			wp.logger.Debug().
				Int("worker_id", workerID).
				Msg("Worker stopped")
			return

		case <-ticker.C:
			if err := wp.processMessage(workerID); err != nil {
				if err == models.ErrNoMessage {
					continue
				}
				wp.logger.Warn().
					Err(err).
					Int("worker_id", workerID).
					Msg("Error processing message")
			}
		}
	}
}

// processMessage leases and processes a single message
func (wp *WorkerPool) processMessage(workerID int) error {
	msgs, err := wp.queueMgr.Dequeue(wp.ctx, 1)
	if err != nil {
		return err
	}
	msg := msgs[0]

	if msg.Unit == nil {
		wp.logger.Error().
			Str("message_id", msg.MessageID).
			Int("worker_id", workerID).
			Msg("Message carries no work unit, dropping")
		if delErr := wp.queueMgr.Complete(wp.ctx, msg); delErr != nil {
			wp.logger.Warn().Err(delErr).Msg("Failed to drop empty message")
		}
		return nil
	}

	if wp.handler == nil {
		// No handler yet; put the message back for a later poller
		return wp.queueMgr.Retry(wp.ctx, msg, wp.queueMgr.config.PollInterval)
	}

	wp.logger.Debug().
		Str("message_id", msg.MessageID).
		Str("unit_id", msg.Unit.UnitID).
		Str("job_id", msg.Unit.JobID).
		Int("items", len(msg.Unit.OpportunityIDs)).
		Int("attempt", msg.Attempts).
		Int("worker_id", workerID).
		Msg("Processing work unit")

	startTime := time.Now()
	handlerErr := wp.runUnit(msg.Unit)
	duration := time.Since(startTime)

	if handlerErr != nil {
		wp.logger.Error().
			Err(handlerErr).
			Str("unit_id", msg.Unit.UnitID).
			Str("job_id", msg.Unit.JobID).
			Dur("duration", duration).
			Int("worker_id", workerID).
			Msg("Work unit handler failed")

		// Release for redelivery with a backoff scaled by attempts.
		// The receive limit in Dequeue stops poison units.
		backoff := time.Duration(msg.Attempts) * time.Second
		if err := wp.queueMgr.Retry(wp.ctx, msg, backoff); err != nil {
			wp.logger.Warn().
				Err(err).
				Str("message_id", msg.MessageID).
				Msg("Failed to release message after handler failure")
			return err
		}
		return handlerErr
	}

	wp.logger.Debug().
		Str("unit_id", msg.Unit.UnitID).
		Str("job_id", msg.Unit.JobID).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Work unit completed")

	if err := wp.queueMgr.Complete(wp.ctx, msg); err != nil {
		wp.logger.Warn().
			Err(err).
			Str("message_id", msg.MessageID).
			Msg("Failed to ack message after successful processing")
		return err
	}

	return nil
}

// runUnit invokes the handler, converting a panic into an error so one bad
// unit cannot take down the poller. The crash file preserves the stack; the
// receive limit in Dequeue stops a panicking unit from cycling forever.
func (wp *WorkerPool) runUnit(unit *models.WorkUnit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			crashFile := common.WriteCrashFile(r, common.GetStackTrace())
			wp.logger.Error().
				Str("unit_id", unit.UnitID).
				Str("job_id", unit.JobID).
				Str("crash_file", crashFile).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Work unit handler panicked")
			err = fmt.Errorf("work unit handler panic: %v", r)
		}
	}()
	return wp.handler(wp.ctx, unit)
}
