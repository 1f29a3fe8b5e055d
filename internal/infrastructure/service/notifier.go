// Package service contains thin infrastructure adapters that connect domain
// interfaces to concrete delivery mechanisms.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
)

// IDGeneratorImpl implements ID generation for outbound notifications.
type IDGeneratorImpl struct{}

// NewIDGenerator creates a new IDGenerator.
func NewIDGenerator() *IDGeneratorImpl {
	return &IDGeneratorImpl{}
}

// GenerateID returns a new unique identifier.
func (g *IDGeneratorImpl) GenerateID() string {
	return uuid.New().String()
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one dispatched achievement notification.
type Notification struct {
	// ID - unique notification identifier.
	ID string

	// UserID - the recipient.
	UserID string

	// AchievementID - the granted achievement.
	AchievementID string

	// DisplayName - human-readable achievement name.
	DisplayName string

	// XPReward - experience attached to the achievement.
	XPReward int

	// DispatchedAt - when the notification was handed off.
	DispatchedAt time.Time
}

// AchievementNotifier implements achievement.Notifier. Delivery is a
// structured log line plus an in-memory ring of recent notifications; real
// channels (mail, push) subscribe to the event bus instead of living here.
type AchievementNotifier struct {
	ids *IDGeneratorImpl
	log *logger.Logger

	mu     sync.Mutex
	recent []Notification
	limit  int
}

// NewAchievementNotifier creates a new AchievementNotifier.
func NewAchievementNotifier(log *logger.Logger) *AchievementNotifier {
	if log == nil {
		log = logger.Default()
	}
	return &AchievementNotifier{
		ids:   NewIDGenerator(),
		log:   log.With(logger.Component("notifier")),
		limit: 100,
	}
}

// AchievementEarned dispatches one notification per newly granted award.
func (n *AchievementNotifier) AchievementEarned(ctx context.Context, userID shared.UserID, def achievement.Definition) error {
	notif := Notification{
		ID:            n.ids.GenerateID(),
		UserID:        userID.String(),
		AchievementID: def.ID.String(),
		DisplayName:   def.DisplayName,
		XPReward:      def.XPReward,
		DispatchedAt:  time.Now().UTC(),
	}

	n.mu.Lock()
	n.recent = append(n.recent, notif)
	if len(n.recent) > n.limit {
		n.recent = n.recent[len(n.recent)-n.limit:]
	}
	n.mu.Unlock()

	n.log.Info("achievement notification dispatched",
		logger.String("notification_id", notif.ID),
		logger.UserID(notif.UserID),
		logger.AchievementID(notif.AchievementID),
		logger.XPAmount(notif.XPReward),
	)
	return nil
}

// Recent returns the most recently dispatched notifications, newest last.
func (n *AchievementNotifier) Recent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Notification, len(n.recent))
	copy(out, n.recent)
	return out
}
