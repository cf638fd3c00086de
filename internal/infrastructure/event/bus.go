// Package event delivers domain events to in-process handlers.
package event

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// InMemoryEventBus delivers events on the publishing goroutine, so a
// handler runs while the publisher still holds whatever lock it took.
// Handler errors and panics are logged and never reach the publisher.
type InMemoryEventBus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler

	inflight sync.WaitGroup
}

func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{logger: logger, byType: make(map[string][]shared.EventHandler)}
}

// Subscribe registers handler for eventTypes, falling back to the handler's
// own EventTypes. A handler with no types at all receives every event.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}

	b.mu.Lock()
	if len(eventTypes) == 0 {
		b.wildcard = append(b.wildcard, handler)
	}
	for _, t := range eventTypes {
		b.byType[t] = append(b.byType[t], handler)
	}
	b.mu.Unlock()

	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

func (b *InMemoryEventBus) handlersFor(eventType string) []shared.EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	typed := b.byType[eventType]
	out := make([]shared.EventHandler, 0, len(typed)+len(b.wildcard))
	out = append(out, typed...)
	return append(out, b.wildcard...)
}

// Publish delivers each event to its handlers in subscription order
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.inflight.Add(1)
	defer b.inflight.Done()

	for _, e := range events {
		for _, h := range b.handlersFor(e.EventType()) {
			b.deliver(ctx, h, e)
		}
	}
	return nil
}

func (b *InMemoryEventBus) deliver(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) {
	fields := []zap.Field{
		zap.String("event_type", e.EventType()),
		zap.String("event_id", e.EventID().String()),
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", append(fields, zap.Any("panic", r))...)
		}
	}()

	if err := h.Handle(ctx, e); err != nil {
		b.logger.Error("event handler failed", append(fields, zap.Error(err))...)
	}
}

func (b *InMemoryEventBus) Start(context.Context) error {
	b.logger.Info("event bus started")
	return nil
}

// Stop waits for publishes already in progress, or until ctx is done
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("event bus stopped with deliveries still running")
		return ctx.Err()
	}
}

var _ shared.EventPublisher = (*InMemoryEventBus)(nil)
