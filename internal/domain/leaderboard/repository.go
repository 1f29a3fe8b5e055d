package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the read side of the leaderboard. Implementations live in
// the infrastructure layer (PostgreSQL). All operations are side-effect
// free.
type Repository interface {
	// Top returns the first n ranked entries, XP descending, ties broken
	// by earlier join time then id. n must be positive.
	Top(ctx context.Context, n int) ([]*Entry, error)

	// Count returns the total number of ranked users.
	Count(ctx context.Context) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache holds a short-lived copy of hot top-N queries. Advisory only, same
// as every cache in this system: a miss or a failure falls through to the
// repository.
type Cache interface {
	// GetCachedTop returns the cached top-N, or a not-found error when
	// the cache holds nothing usable for this n.
	GetCachedTop(ctx context.Context, n int) ([]*Entry, error)

	// SetCachedTop stores a top-N result with a TTL.
	SetCachedTop(ctx context.Context, n int, entries []*Entry, ttl time.Duration) error

	// InvalidateAll drops all cached leaderboard data.
	InvalidateAll(ctx context.Context) error
}
