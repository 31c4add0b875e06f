package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"golang.org/x/time/rate"
)

// EventSubscriber bridges the event bus to the websocket broadcaster.
// High-frequency event types (batch_progress, metric_sample) are throttled
// per the configured intervals; lifecycle transitions always go through.
type EventSubscriber struct {
	handler      *WebSocketHandler
	eventService interfaces.EventService
	logger       arbor.ILogger
	throttlers   map[string]*rate.Limiter
}

// NewEventSubscriber creates and registers an event subscriber
func NewEventSubscriber(handler *WebSocketHandler, eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *EventSubscriber {
	s := &EventSubscriber{
		handler:      handler,
		eventService: eventService,
		logger:       logger,
		throttlers:   make(map[string]*rate.Limiter),
	}

	if config != nil {
		for eventType, intervalStr := range config.ThrottleIntervals {
			duration, err := time.ParseDuration(intervalStr)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("event_type", eventType).
					Str("interval", intervalStr).
					Msg("Failed to parse throttle interval - skipping throttler")
				continue
			}
			s.throttlers[eventType] = rate.NewLimiter(rate.Every(duration), 1)
			logger.Debug().
				Str("event_type", eventType).
				Str("interval", intervalStr).
				Msg("Throttler initialized for event type")
		}
	}

	if eventService == nil {
		logger.Warn().Msg("EventSubscriber created with nil eventService - subscriptions skipped")
		return s
	}

	s.SubscribeAll()

	return s
}

// SubscribeAll registers subscriptions for every broadcast-worthy event type
func (s *EventSubscriber) SubscribeAll() {
	s.eventService.Subscribe(interfaces.EventBatchSubmitted, s.handleBatchLifecycle)
	s.eventService.Subscribe(interfaces.EventBatchCompleted, s.handleBatchLifecycle)
	s.eventService.Subscribe(interfaces.EventBatchFailed, s.handleBatchLifecycle)
	s.eventService.Subscribe(interfaces.EventBatchCancelled, s.handleBatchLifecycle)
	s.eventService.Subscribe(interfaces.EventBatchProgress, s.handleBatchProgress)
	s.eventService.Subscribe(interfaces.EventMetricSample, s.handleMetricSample)
	s.eventService.Subscribe(interfaces.EventCompanyUpdated, s.handleCompanyUpdated)
	s.eventService.Subscribe(interfaces.EventScheduleTriggered, s.handleScheduleTriggered)

	s.logger.Info().Msg("EventSubscriber registered for batch, company, and schedule events")
}

// allow checks the throttler for an event type. Types without a configured
// throttler always pass.
func (s *EventSubscriber) allow(eventType string) bool {
	limiter, ok := s.throttlers[eventType]
	if !ok {
		return true
	}
	return limiter.Allow()
}

// handleBatchLifecycle forwards submit and terminal transitions unthrottled
func (s *EventSubscriber) handleBatchLifecycle(ctx context.Context, event interfaces.Event) error {
	job, ok := event.Payload.(*models.BatchJob)
	if !ok {
		s.logger.Warn().Str("event_type", string(event.Type)).Msg("Unexpected batch event payload type")
		return nil
	}

	s.handler.BroadcastJobProgress(JobProgressUpdate{
		JobID:     job.JobID,
		CompanyID: job.CompanyID,
		State:     job.State,
		Counters:  job.Counters,
		Error:     job.LastError,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// handleBatchProgress forwards tracker progress snapshots, throttled
func (s *EventSubscriber) handleBatchProgress(ctx context.Context, event interfaces.Event) error {
	if !s.allow("batch_progress") {
		return nil
	}

	status, ok := event.Payload.(models.JobStatus)
	if !ok {
		s.logger.Warn().Msg("Unexpected batch progress payload type")
		return nil
	}

	s.handler.BroadcastJobProgress(JobProgressUpdate{
		JobID:      status.JobID,
		State:      status.State,
		Counters:   status.Counters,
		Throughput: status.Throughput,
		ETASeconds: status.ETASeconds,
		Error:      status.LastError,
		Timestamp:  status.UpdatedAt,
	})
	return nil
}

// handleMetricSample forwards tracker metric datapoints, throttled
func (s *EventSubscriber) handleMetricSample(ctx context.Context, event interfaces.Event) error {
	if !s.allow("metric_sample") {
		return nil
	}

	sample, ok := event.Payload.(models.MetricSample)
	if !ok {
		return nil
	}

	s.handler.Broadcast("metric_sample", sample)
	return nil
}

// handleCompanyUpdated forwards profile change notifications
func (s *EventSubscriber) handleCompanyUpdated(ctx context.Context, event interfaces.Event) error {
	s.handler.Broadcast("company_updated", event.Payload)
	return nil
}

// handleScheduleTriggered forwards schedule firings
func (s *EventSubscriber) handleScheduleTriggered(ctx context.Context, event interfaces.Event) error {
	entry, ok := event.Payload.(*models.ScheduleEntry)
	if !ok {
		s.handler.Broadcast("schedule_triggered", event.Payload)
		return nil
	}

	s.handler.Broadcast("schedule_triggered", map[string]interface{}{
		"name":      entry.Name,
		"job_id":    entry.LastJobID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}
