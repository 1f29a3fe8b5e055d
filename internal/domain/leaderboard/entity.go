// Package leaderboard contains the read-only experience ranking projection
// for Questlog Hub.
package leaderboard

import (
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry is one ranked row of the leaderboard projection.
type Entry struct {
	// UserID - the ranked user.
	UserID shared.UserID

	// Handle - the user's public handle.
	Handle string

	// DisplayName - the user's display name.
	DisplayName string

	// XP - total experience at query time.
	XP shared.XP

	// Level - level derived from XP.
	Level shared.Level

	// Rank - 1-based position. Ordering is XP descending with ties broken
	// by earlier join time, then by id, so ranks are deterministic across
	// repeated queries with unchanged data.
	Rank shared.Rank

	// JoinedAt - when the user registered (the tie-break key).
	JoinedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// ValidateLimit checks a top-N request size.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return shared.ErrInvalidLimit
	}
	return nil
}
