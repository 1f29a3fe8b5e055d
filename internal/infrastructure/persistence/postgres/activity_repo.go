// Package postgres implements the PostgreSQL persistence layer for Questlog Hub.
package postgres

import (
	"context"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActivitySnapshotRepository implements achievement.SnapshotProvider against
// the users table. Read-only: the surrounding platform owns these counters,
// the engine only consumes them.
type ActivitySnapshotRepository struct {
	conn *Connection
}

// NewActivitySnapshotRepository creates a new ActivitySnapshotRepository.
func NewActivitySnapshotRepository(conn *Connection) *ActivitySnapshotRepository {
	return &ActivitySnapshotRepository{conn: conn}
}

// Snapshot returns the current activity counters for a user.
//
// The registration rank is counted against the current population on every
// call: users who joined strictly before this user, with the id as the tie
// break for identical join times. The comparison set only grows, so a rank
// once within any threshold stays within it forever.
func (r *ActivitySnapshotRepository) Snapshot(ctx context.Context, userID shared.UserID) (*achievement.ActivitySnapshot, error) {
	var (
		snap achievement.ActivitySnapshot
		uid  string
		role string
	)

	err := r.conn.QueryRow(ctx, `
		SELECT
			u.id,
			u.role,
			u.joined_at,
			u.find_count,
			u.upvotes_given,
			u.upvotes_received,
			u.follows_given,
			u.follows_received,
			u.has_published_find,
			(
				SELECT COUNT(*) FROM users earlier
				WHERE earlier.joined_at < u.joined_at
				   OR (earlier.joined_at = u.joined_at AND earlier.id < u.id)
			) AS registration_rank
		FROM users u
		WHERE u.id = $1
	`, userID.String()).Scan(
		&uid,
		&role,
		&snap.JoinedAt,
		&snap.FindCount,
		&snap.UpvotesGiven,
		&snap.UpvotesReceived,
		&snap.FollowsGiven,
		&snap.FollowsReceived,
		&snap.HasPublishedFind,
		&snap.RegistrationRank,
	)

	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, shared.WrapError("activity", "Snapshot",
			shared.ErrStoreUnavailable, "snapshot query failed", err)
	}

	snap.UserID = shared.UserID(uid)
	snap.Role = shared.Role(role)
	return &snap, nil
}
