package achievement

import (
	"context"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD RECORD
// ══════════════════════════════════════════════════════════════════════════════

// AwardRecord is one durable row per (user, achievement) ever granted. It is
// created exactly once by the engine's award sequence, never updated apart
// from the experience-applied flag, and never deleted. At most one record
// exists per pair for all time; the ledger's uniqueness constraint, not any
// in-process check, enforces this.
type AwardRecord struct {
	UserID        shared.UserID
	AchievementID shared.AchievementID
	GrantedAt     time.Time
	XPGranted     int

	// XPApplied - whether the experience grant for this award has been
	// applied. False means the award stands but the reward is still owed,
	// which the reconciliation sweep closes.
	XPApplied bool
}

// SourceRef returns the unique experience-grant reference for this award.
func (r AwardRecord) SourceRef() string {
	return shared.SourceRef(r.UserID, r.AchievementID)
}

// ══════════════════════════════════════════════════════════════════════════════
// AWARD LEDGER (durable store)
// ══════════════════════════════════════════════════════════════════════════════

// AwardLedger is the append-only, durable record of granted achievements and
// the single source of truth for "has this user ever received this
// achievement." Implemented in the infrastructure layer (PostgreSQL).
type AwardLedger interface {
	// HasEverBeenAwarded is the authoritative check. It must reflect all
	// past successful awards even if the cache was cleared.
	HasEverBeenAwarded(ctx context.Context, userID shared.UserID, achievementID shared.AchievementID) (bool, error)

	// RecordAward inserts the award row. Concurrent callers recording the
	// same (user, achievement) pair must see exactly one success; the
	// losers get shared.ErrAlreadyExists.
	RecordAward(ctx context.Context, record AwardRecord) (*AwardRecord, error)

	// ListAwards returns every award ever granted to the user.
	ListAwards(ctx context.Context, userID shared.UserID) ([]AwardRecord, error)

	// MarkExperienceApplied flips the experience-applied flag after the
	// grant succeeded. Idempotent.
	MarkExperienceApplied(ctx context.Context, userID shared.UserID, achievementID shared.AchievementID) error

	// ListUnapplied returns awards whose experience grant is still owed,
	// oldest first, for the reconciliation sweep.
	ListUnapplied(ctx context.Context, limit int) ([]AwardRecord, error)

	// RecentAwards returns the newest awards across all users, for the
	// activity feed.
	RecentAwards(ctx context.Context, limit int) ([]AwardRecord, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// FAST-PATH CACHE (volatile store)
// ══════════════════════════════════════════════════════════════════════════════

// FastPathCache is the advisory per-user set of known achievement ids. It is
// never authoritative: any decision that gates an irreversible action must
// fall through to the AwardLedger. Absence of a key means "unknown," never
// "empty," and loss of the cache must never cause a duplicate or missed
// award. Implemented in the infrastructure layer (Redis).
type FastPathCache interface {
	// GetKnown returns the cached set, or shared.ErrNotFound if the user's
	// set is unknown.
	GetKnown(ctx context.Context, userID shared.UserID) ([]shared.AchievementID, error)

	// SetKnown overwrites the user's set with a complete view.
	SetKnown(ctx context.Context, userID shared.UserID, ids []shared.AchievementID) error

	// AddKnown appends one id to an existing set. If the user's set is
	// unknown the call is a no-op, so a lone id never masquerades as the
	// complete set.
	AddKnown(ctx context.Context, userID shared.UserID, id shared.AchievementID) error

	// Invalidate drops the user's set.
	Invalidate(ctx context.Context, userID shared.UserID) error
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTERNAL COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotProvider reads the per-user activity counters from the relational
// store. Read-only.
type SnapshotProvider interface {
	// Snapshot returns the current counters for a user, or
	// shared.ErrNotFound for an unknown user.
	Snapshot(ctx context.Context, userID shared.UserID) (*ActivitySnapshot, error)
}

// ExperienceLedger owns the per-user experience total. The engine is its
// primary producer of increments via achievement rewards.
type ExperienceLedger interface {
	// Grant adds experience and returns the new total. The sourceRef
	// uniquely identifies the originating award; a retry with the same
	// ref returns shared.ErrAlreadyProcessed instead of double-granting.
	Grant(ctx context.Context, userID shared.UserID, amount int, sourceRef string) (int, error)

	// Total returns the user's current experience total.
	Total(ctx context.Context, userID shared.UserID) (int, error)
}

// Notifier delivers one achievement-earned event per newly granted award.
// Delivery guarantees are the notifier's concern, not the engine's.
type Notifier interface {
	AchievementEarned(ctx context.Context, userID shared.UserID, def Definition) error
}
