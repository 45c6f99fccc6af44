package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by a closed event bus.
var ErrClosed = errors.New("event bus closed")

// InMemoryEventBus implements EventBus using in-process handlers. Handlers
// are called synchronously in publish order, so a subscriber sees the events
// of a run in the order they were published.
type InMemoryEventBus struct {
	subscribers map[string]map[string]ports.EventHandler
	logger      *zap.Logger
	closed      bool
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		subscribers: make(map[string]map[string]ports.EventHandler),
		logger:      logger,
	}
}

// Publish delivers an event to all subscribers of a topic
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]ports.EventHandler, 0, len(e.subscribers[topic]))
	for _, h := range e.subscribers[topic] {
		handlers = append(handlers, h)
	}
	e.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			e.logger.Warn("event handler failed",
				zap.String("topic", topic),
				zap.String("event_type", string(event.Type)),
				zap.String("run_id", event.RunID),
				zap.Error(err))
		}
	}

	return nil
}

// Subscribe registers handler on topic until ctx is done
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	id := uuid.New().String()
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[string]ports.EventHandler)
	}
	e.subscribers[topic][id] = handler

	// Clean up subscription on context cancellation
	context.AfterFunc(ctx, func() {
		e.unsubscribe(topic, id)
	})

	return nil
}

// Subscribers returns the number of handlers registered on topic
func (e *InMemoryEventBus) Subscribers(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[topic])
}

// Close closes the event bus and drops all subscribers
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.subscribers = make(map[string]map[string]ports.EventHandler)
	return nil
}

func (e *InMemoryEventBus) unsubscribe(topic, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.subscribers[topic], id)
	if len(e.subscribers[topic]) == 0 {
		delete(e.subscribers, topic)
	}
}
