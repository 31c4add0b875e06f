package events

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
)

// subscription pairs a handler with the identity key Unsubscribe matches on
type subscription struct {
	key uintptr
	fn  interfaces.EventHandler
}

// Service is the in-process event bus. Publishers never block on slow
// subscribers: async delivery runs one goroutine per handler, and handler
// failures are logged rather than returned to the publisher.
type Service struct {
	mu     sync.RWMutex
	subs   map[interfaces.EventType][]subscription
	logger arbor.ILogger
}

// NewService creates the event bus
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subs:   make(map[interfaces.EventType][]subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for an event type
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[eventType] = append(s.subs[eventType], subscription{
		key: reflect.ValueOf(handler).Pointer(),
		fn:  handler,
	})

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("subscriber_count", len(s.subs[eventType])).
		Msg("Event handler subscribed")
	return nil
}

// Unsubscribe removes a previously subscribed handler, matched by function
// identity
func (s *Service) Unsubscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	key := reflect.ValueOf(handler).Pointer()

	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subs[eventType]
	for i, sub := range subs {
		if sub.key != key {
			continue
		}
		s.subs[eventType] = append(subs[:i], subs[i+1:]...)
		s.logger.Debug().
			Str("event_type", string(eventType)).
			Msg("Event handler unsubscribed")
		return nil
	}
	return fmt.Errorf("handler not found for event type: %s", eventType)
}

// snapshot copies the subscriber list so handlers run outside the lock
func (s *Service) snapshot(eventType interfaces.EventType) []subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.subs[eventType]) == 0 {
		return nil
	}
	out := make([]subscription, len(s.subs[eventType]))
	copy(out, s.subs[eventType])
	return out
}

// Publish delivers an event to all subscribers asynchronously. Progress
// events fire on every counter update, so delivery stays off the hot path.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	subs := s.snapshot(event.Type)
	if subs == nil {
		return nil
	}

	s.logger.Trace().
		Str("event_type", string(event.Type)).
		Int("subscriber_count", len(subs)).
		Msg("Publishing event")

	for _, sub := range subs {
		go s.deliver(ctx, sub.fn, event)
	}
	return nil
}

// PublishSync delivers an event and waits for every handler to finish
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	subs := s.snapshot(event.Type)
	if subs == nil {
		return nil
	}

	var wg sync.WaitGroup
	var failed atomic.Int32

	for _, sub := range subs {
		wg.Add(1)
		go func(fn interfaces.EventHandler) {
			defer wg.Done()
			if !s.deliver(ctx, fn, event) {
				failed.Add(1)
			}
		}(sub.fn)
	}
	wg.Wait()

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("event handlers failed: %d errors", n)
	}
	return nil
}

// deliver runs one handler and reports whether it succeeded
func (s *Service) deliver(ctx context.Context, fn interfaces.EventHandler, event interfaces.Event) bool {
	if err := fn(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Msg("Event handler failed")
		return false
	}
	return true
}

// Close drops all subscriptions; events published afterwards go nowhere
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[interfaces.EventType][]subscription)
	s.logger.Info().Msg("Event service closed")
	return nil
}
