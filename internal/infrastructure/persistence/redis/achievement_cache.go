package redis

import (
	"context"
	"errors"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/circuitbreaker"
)

// knownSetSentinel marks a set as "known but possibly empty". Redis drops a
// set the moment its last member is removed, so without the sentinel an
// empty known set would be indistinguishable from an unknown one.
const knownSetSentinel = "__known__"

// AchievementCache implements achievement.FastPathCache using a Redis set
// per user. The set is strictly advisory: every method absorbs the
// distinction between "expired" and "never written" into shared.ErrNotFound,
// and callers fall through to the award ledger on any miss.
//
// A circuit breaker guards every call. When Redis is flapping, each cache
// touch would otherwise cost a connection timeout; an open breaker turns
// reads into immediate misses and writes into immediate no-ops.
type AchievementCache struct {
	cache   *Cache
	breaker *circuitbreaker.CircuitBreaker
}

// NewAchievementCache creates a new AchievementCache.
func NewAchievementCache(cache *Cache) *AchievementCache {
	return &AchievementCache{
		cache:   cache,
		breaker: circuitbreaker.CacheBreaker(nil),
	}
}

// GetKnown returns the cached achievement set for a user. A missing key
// means the set is unknown, not empty, and is reported as shared.ErrNotFound.
func (c *AchievementCache) GetKnown(ctx context.Context, userID shared.UserID) ([]shared.AchievementID, error) {
	key := AchievementSetKey(userID.String())

	var members []string
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		members, err = c.cache.SMembers(ctx, key)
		return err
	})
	if isBreakerOpen(err) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		// SMembers on a non-existent key returns an empty slice, not an
		// error. A known set always carries the sentinel, so empty means
		// the key is gone.
		return nil, shared.ErrNotFound
	}

	ids := make([]shared.AchievementID, 0, len(members)-1)
	complete := false
	for _, m := range members {
		if m == knownSetSentinel {
			complete = true
			continue
		}
		ids = append(ids, shared.AchievementID(m))
	}
	if !complete {
		// Sentinel-less sets are orphans from an AddKnown that raced the
		// key's expiry. They are partial views, so report unknown.
		return nil, shared.ErrNotFound
	}
	return ids, nil
}

// SetKnown overwrites the user's set with a complete view of their awards.
func (c *AchievementCache) SetKnown(ctx context.Context, userID shared.UserID, ids []shared.AchievementID) error {
	key := AchievementSetKey(userID.String())

	members := make([]interface{}, 0, len(ids)+1)
	members = append(members, knownSetSentinel)
	for _, id := range ids {
		members = append(members, id.String())
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		// Replace atomically so a concurrent reader never observes a set
		// without its sentinel.
		pipe := c.cache.Client().TxPipeline()
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, TTLAchievementSet)
		_, err := pipe.Exec(ctx)
		return err
	})
	if isBreakerOpen(err) {
		return nil
	}
	return err
}

// AddKnown appends one id to an existing set. When the user's set is unknown
// the call is a no-op: writing a lone id would masquerade as the complete
// set and hide every other award from the fast path.
func (c *AchievementCache) AddKnown(ctx context.Context, userID shared.UserID, id shared.AchievementID) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		key := AchievementSetKey(userID.String())

		exists, err := c.cache.Exists(ctx, key)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}

		// The key can expire between Exists and SAdd; the resulting orphan
		// set lacks the sentinel and reads as unknown, which is safe.
		if err := c.cache.SAdd(ctx, key, id.String()); err != nil {
			return err
		}
		return c.cache.Expire(ctx, key, TTLAchievementSet)
	})
	if isBreakerOpen(err) {
		return nil
	}
	return err
}

// Invalidate drops the user's set entirely.
func (c *AchievementCache) Invalidate(ctx context.Context, userID shared.UserID) error {
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.cache.Delete(ctx, AchievementSetKey(userID.String()))
	})
	if isBreakerOpen(err) {
		// The set cannot be dropped while Redis is unreachable, but it also
		// cannot be read; the TTL bounds how long the stale view survives.
		return nil
	}
	return err
}

func isBreakerOpen(err error) bool {
	return errors.Is(err, circuitbreaker.ErrCircuitOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests)
}
