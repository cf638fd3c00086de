package event

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/schoolfees/backend/internal/domain/shared"
)

// DefaultEventClaimTTL bounds how long a delivered event ID is remembered
const DefaultEventClaimTTL = 24 * time.Hour

// IdempotentHandler wraps an EventHandler so each event ID is handled at most
// once while its claim lives. A failed delivery releases the claim so a
// redelivery can retry.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.ClaimStore
	ttl     time.Duration
	logger  *zap.Logger
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(handler shared.EventHandler, store shared.ClaimStore, ttl time.Duration, logger *zap.Logger) *IdempotentHandler {
	if ttl <= 0 {
		ttl = DefaultEventClaimTTL
	}
	return &IdempotentHandler{handler: handler, store: store, ttl: ttl, logger: logger}
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle claims the event ID and delegates to the wrapped handler
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := "event:" + event.EventID().String()

	claimed, err := h.store.Claim(ctx, key, h.ttl)
	if err != nil {
		// the store is a fast path only; an unreachable store must not drop events
		h.logger.Warn("event claim failed, handling anyway",
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	} else if !claimed {
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", event.EventID().String()),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		if claimed {
			if relErr := h.store.Release(ctx, key); relErr != nil {
				h.logger.Warn("failed to release event claim", zap.String("key", key), zap.Error(relErr))
			}
		}
		return err
	}
	return nil
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
