// Package eventhandler contains subscribers that react to domain events
// published on the event bus.
package eventhandler

import (
	"context"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON XP GAINED
// ══════════════════════════════════════════════════════════════════════════════

// OnXPGained invalidates cached leaderboard slices whenever experience
// totals move, so stale rankings never outlive their TTL by more than one
// event. Invalidation is best effort; the cache is advisory.
type OnXPGained struct {
	cache   leaderboard.Cache
	log     *logger.Logger
	timeout time.Duration
}

// NewOnXPGained creates the handler.
func NewOnXPGained(cache leaderboard.Cache, log *logger.Logger) *OnXPGained {
	if log == nil {
		log = logger.Default()
	}
	return &OnXPGained{
		cache:   cache,
		log:     log.With(logger.Component("on_xp_gained")),
		timeout: 5 * time.Second,
	}
}

// Register subscribes the handler to the relevant event types.
func (h *OnXPGained) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventXPGained, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventGrantReconciled, h.Handle)
}

// Handle implements shared.EventHandler.
func (h *OnXPGained) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.cache.InvalidateAll(ctx); err != nil {
		h.log.Warn("leaderboard invalidation failed",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return nil
	}

	h.log.Debug("leaderboard cache invalidated",
		logger.String("event_type", string(event.EventType())),
	)
	return nil
}
