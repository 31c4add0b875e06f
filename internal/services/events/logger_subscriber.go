package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs all events
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		logEvent := logger.Debug().
			Str("event_type", string(event.Type))

		switch payload := event.Payload.(type) {
		case *models.BatchJob:
			logEvent = logEvent.
				Str("job_id", payload.JobID).
				Str("state", string(payload.State))
		case models.JobStatus:
			logEvent = logEvent.
				Str("job_id", payload.JobID).
				Str("state", string(payload.State))
		case models.MetricSample:
			logEvent = logEvent.
				Str("metric", payload.Name).
				Str("job_id", payload.JobID)
		case *models.ScheduleEntry:
			logEvent = logEvent.Str("schedule", payload.Name)
		case map[string]interface{}:
			if id, ok := payload["company_id"].(string); ok {
				logEvent = logEvent.Str("company_id", id)
			}
			if id, ok := payload["job_id"].(string); ok {
				logEvent = logEvent.Str("job_id", id)
			}
		}

		logEvent.Msg("Event published")

		return nil
	}
}

// SubscribeLoggerToAllEvents subscribes the logger to all known event types
func SubscribeLoggerToAllEvents(eventService interfaces.EventService, logger arbor.ILogger) error {
	subscriber := NewLoggerSubscriber(logger)

	eventTypes := []interfaces.EventType{
		interfaces.EventBatchSubmitted,
		interfaces.EventBatchProgress,
		interfaces.EventBatchCompleted,
		interfaces.EventBatchFailed,
		interfaces.EventBatchCancelled,
		interfaces.EventCompanyUpdated,
		interfaces.EventScheduleTriggered,
		interfaces.EventMetricSample,
	}

	for _, eventType := range eventTypes {
		if err := eventService.Subscribe(eventType, subscriber); err != nil {
			return fmt.Errorf("failed to subscribe logger to event type %s: %w", eventType, err)
		}
	}

	logger.Info().
		Int("event_type_count", len(eventTypes)).
		Msg("Logger subscribed to all event types")

	return nil
}
