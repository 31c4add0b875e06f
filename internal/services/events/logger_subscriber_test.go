package events

import (
	"context"
	"testing"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// TestNewLoggerSubscriber verifies that the logger subscriber logs events
func TestNewLoggerSubscriber(t *testing.T) {
	logger := arbor.NewLogger()
	defer common.Stop()

	subscriber := NewLoggerSubscriber(logger)

	ctx := context.Background()
	event := interfaces.Event{
		Type: interfaces.EventBatchSubmitted,
		Payload: &models.BatchJob{
			JobID: "job-123",
			State: models.JobStatePending,
		},
	}

	if err := subscriber(ctx, event); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	// Event without payload
	event2 := interfaces.Event{
		Type:    interfaces.EventScheduleTriggered,
		Payload: nil,
	}

	if err := subscriber(ctx, event2); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
}

// TestSubscribeLoggerToAllEvents verifies logger is subscribed to all event types
func TestSubscribeLoggerToAllEvents(t *testing.T) {
	logger := arbor.NewLogger()
	defer common.Stop()

	eventService := NewService(logger)
	defer eventService.Close()

	if err := SubscribeLoggerToAllEvents(eventService, logger); err != nil {
		t.Fatalf("Failed to subscribe logger: %v", err)
	}

	ctx := context.Background()

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
		event := interfaces.Event{
			Type:    eventType,
			Payload: map[string]interface{}{"company_id": "acme"},
		}

		if err := eventService.Publish(ctx, event); err != nil {
			t.Errorf("Expected no error publishing %s event, got: %v", eventType, err)
		}
	}
}

// TestLoggerSubscriberDoesNotInterfere verifies logger subscriber doesn't interfere with other handlers
func TestLoggerSubscriberDoesNotInterfere(t *testing.T) {
	logger := arbor.NewLogger()
	defer common.Stop()

	eventService := NewService(logger)
	defer eventService.Close()

	if err := SubscribeLoggerToAllEvents(eventService, logger); err != nil {
		t.Fatalf("Failed to subscribe logger: %v", err)
	}

	callCount := 0
	customHandler := func(ctx context.Context, event interfaces.Event) error {
		callCount++
		return nil
	}

	if err := eventService.Subscribe(interfaces.EventBatchCompleted, customHandler); err != nil {
		t.Fatalf("Failed to subscribe custom handler: %v", err)
	}

	ctx := context.Background()
	event := interfaces.Event{
		Type: interfaces.EventBatchCompleted,
		Payload: &models.BatchJob{
			JobID: "job-456",
			State: models.JobStateCompleted,
		},
	}

	if err := eventService.PublishSync(ctx, event); err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}

	if callCount != 1 {
		t.Errorf("Expected custom handler to be called once, got: %d", callCount)
	}
}
