// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - each represents something significant that happened
// in the achievement subsystem.
const (
	// Achievement events
	EventAchievementEarned EventType = "achievement.earned"
	EventAwardRaceLost     EventType = "achievement.race_lost"

	// Experience events
	EventXPGained EventType = "experience.xp_gained"
	EventLevelUp  EventType = "experience.level_up"

	// Reconciliation events
	EventGrantReconciled EventType = "reconciliation.grant_applied"

	// Leaderboard events
	EventLeaderboardRefreshed EventType = "leaderboard.refreshed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementEarnedEvent is emitted exactly once per newly recorded award.
type AchievementEarnedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	DisplayName   string `json:"display_name"`
	XPReward      int    `json:"xp_reward"`
}

// Payload implements Event interface.
func (e AchievementEarnedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"display_name":   e.DisplayName,
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementEarnedEvent creates a new AchievementEarnedEvent.
func NewAchievementEarnedEvent(userID, achievementID, displayName string, xpReward int) AchievementEarnedEvent {
	return AchievementEarnedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementEarned, userID),
		UserID:        userID,
		AchievementID: achievementID,
		DisplayName:   displayName,
		XPReward:      xpReward,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Experience Events
// ═══════════════════════════════════════════════════════════════════════════

// XPGainedEvent is emitted when a user gains experience.
type XPGainedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	Amount    int    `json:"amount"`
	NewTotal  int    `json:"new_total"`
	SourceRef string `json:"source_ref"`
}

// Payload implements Event interface.
func (e XPGainedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"amount":     e.Amount,
		"new_total":  e.NewTotal,
		"source_ref": e.SourceRef,
	}
}

// NewXPGainedEvent creates a new XPGainedEvent.
func NewXPGainedEvent(userID string, amount, newTotal int, sourceRef string) XPGainedEvent {
	return XPGainedEvent{
		BaseEvent: NewBaseEvent(EventXPGained, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		SourceRef: sourceRef,
	}
}

// LevelUpEvent is emitted when a grant pushes a user across a level boundary.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reconciliation Events
// ═══════════════════════════════════════════════════════════════════════════

// GrantReconciledEvent is emitted when the reconciliation sweep applies an
// experience grant that failed during the original award sequence.
type GrantReconciledEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AchievementID string `json:"achievement_id"`
	XPApplied     int    `json:"xp_applied"`
}

// Payload implements Event interface.
func (e GrantReconciledEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"xp_applied":     e.XPApplied,
	}
}

// NewGrantReconciledEvent creates a new GrantReconciledEvent.
func NewGrantReconciledEvent(userID, achievementID string, xpApplied int) GrantReconciledEvent {
	return GrantReconciledEvent{
		BaseEvent:     NewBaseEvent(EventGrantReconciled, userID),
		UserID:        userID,
		AchievementID: achievementID,
		XPApplied:     xpApplied,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// LeaderboardRefreshedEvent is emitted after the projector rebuilds the hot
// top-N slices in the cache.
type LeaderboardRefreshedEvent struct {
	BaseEvent
	SliceCount int `json:"slice_count"`
}

// Payload implements Event interface.
func (e LeaderboardRefreshedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"slice_count": e.SliceCount,
	}
}

// NewLeaderboardRefreshedEvent creates a new LeaderboardRefreshedEvent.
func NewLeaderboardRefreshedEvent(sliceCount int) LeaderboardRefreshedEvent {
	return LeaderboardRefreshedEvent{
		BaseEvent:  NewBaseEvent(EventLeaderboardRefreshed, "leaderboard"),
		SliceCount: sliceCount,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
