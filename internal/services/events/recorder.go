package events

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/congruo/internal/interfaces"
)

const defaultRecorderCapacity = 200

// RecordedEvent is one event retained by the recorder for the recent-events
// API surface.
type RecordedEvent struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Recorder retains a bounded ring of recently published events so pollers
// can inspect system activity without a websocket connection.
type Recorder struct {
	mu    sync.Mutex
	ring  []RecordedEvent
	next  int
	count int
}

// NewRecorder creates a recorder retaining up to capacity events. A
// non-positive capacity falls back to the default.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultRecorderCapacity
	}
	return &Recorder{ring: make([]RecordedEvent, capacity)}
}

// Attach subscribes the recorder to every congruo event type
func (r *Recorder) Attach(eventService interfaces.EventService) error {
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
		if err := eventService.Subscribe(eventType, r.record); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) record(ctx context.Context, event interfaces.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring[r.next] = RecordedEvent{
		Type:      string(event.Type),
		Payload:   event.Payload,
		Timestamp: time.Now().UTC(),
	}
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
	return nil
}

// Recent returns up to limit retained events, newest first
func (r *Recorder) Recent(limit int) []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}

	out := make([]RecordedEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}
