package redis

import (
	"context"
	"errors"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED ENTRY STRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// cachedEntry is the JSON shape of one leaderboard row in Redis.
type cachedEntry struct {
	// UserID is the unique identifier of the ranked user.
	UserID string `json:"user_id"`

	// Handle is the user's unique handle.
	Handle string `json:"handle"`

	// DisplayName is the user's display name.
	DisplayName string `json:"display_name"`

	// XP is the experience total the ranking was computed from.
	XP int `json:"xp"`

	// Level is the level derived from XP.
	Level int `json:"level"`

	// Rank is the position in the leaderboard (1-based).
	Rank int `json:"rank"`

	// JoinedAt is the registration timestamp used for tie-breaking.
	JoinedAt time.Time `json:"joined_at"`
}

// cachedTop wraps a complete top-N result with its computation time.
type cachedTop struct {
	Limit      int           `json:"limit"`
	ComputedAt time.Time     `json:"computed_at"`
	Entries    []cachedEntry `json:"entries"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache implements leaderboard.Cache by storing each top-N result
// as a single JSON value. The ranking includes tie-breaks that only the
// relational store can order (joined-at, then id), so the cache never sorts;
// it replays the exact slice the projector computed.
type LeaderboardCache struct {
	cache *Cache
}

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache) *LeaderboardCache {
	return &LeaderboardCache{cache: cache}
}

// GetCachedTop returns the cached top-N result, or shared.ErrNotFound when
// no fresh result is cached for this limit.
func (l *LeaderboardCache) GetCachedTop(ctx context.Context, limit int) ([]*leaderboard.Entry, error) {
	if err := leaderboard.ValidateLimit(limit); err != nil {
		return nil, err
	}

	var top cachedTop
	err := l.cache.Get(ctx, LeaderboardTopKey(limit), &top)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	entries := make([]*leaderboard.Entry, len(top.Entries))
	for i, e := range top.Entries {
		entries[i] = &leaderboard.Entry{
			UserID:      shared.UserID(e.UserID),
			Handle:      e.Handle,
			DisplayName: e.DisplayName,
			XP:          shared.XP(e.XP),
			Level:       shared.Level(e.Level),
			Rank:        shared.Rank(e.Rank),
			JoinedAt:    e.JoinedAt,
		}
	}
	return entries, nil
}

// SetCachedTop stores a complete top-N result.
func (l *LeaderboardCache) SetCachedTop(ctx context.Context, limit int, entries []*leaderboard.Entry, ttl time.Duration) error {
	if err := leaderboard.ValidateLimit(limit); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}

	top := cachedTop{
		Limit:      limit,
		ComputedAt: time.Now().UTC(),
		Entries:    make([]cachedEntry, len(entries)),
	}
	for i, e := range entries {
		top.Entries[i] = cachedEntry{
			UserID:      e.UserID.String(),
			Handle:      e.Handle,
			DisplayName: e.DisplayName,
			XP:          int(e.XP),
			Level:       int(e.Level),
			Rank:        int(e.Rank),
			JoinedAt:    e.JoinedAt,
		}
	}

	return l.cache.Set(ctx, LeaderboardTopKey(limit), top, ttl)
}

// InvalidateAll removes every cached leaderboard result. Called after bulk
// experience changes such as a reconciliation sweep.
func (l *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	return l.cache.DeleteByPattern(ctx, PrefixLeaderboard+"*")
}
