package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeRankingRepo struct {
	mu       sync.Mutex
	entries  []*leaderboard.Entry
	topCalls []int

	failTop map[int]error // per-limit failures
}

func newFakeRankingRepo(n int) *fakeRankingRepo {
	repo := &fakeRankingRepo{failTop: make(map[int]error)}
	for i := 0; i < n; i++ {
		repo.entries = append(repo.entries, &leaderboard.Entry{
			UserID:   shared.UserID(fmt.Sprintf("6a8f2c1e-0000-4000-8000-%012d", i+1)),
			Handle:   fmt.Sprintf("player-%d", i+1),
			XP:       shared.XP(1000 - i*10),
			Rank:     shared.Rank(i + 1),
			JoinedAt: time.Now().Add(-time.Duration(i) * time.Hour),
		})
	}
	return repo
}

func (r *fakeRankingRepo) Top(_ context.Context, n int) ([]*leaderboard.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failTop[n]; err != nil {
		return nil, err
	}
	r.topCalls = append(r.topCalls, n)
	if n > len(r.entries) {
		n = len(r.entries)
	}
	return r.entries[:n], nil
}

func (r *fakeRankingRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

type fakeRankingCache struct {
	mu     sync.Mutex
	slices map[int][]*leaderboard.Entry
	ttls   map[int]time.Duration

	setErr error
}

func newFakeRankingCache() *fakeRankingCache {
	return &fakeRankingCache{
		slices: make(map[int][]*leaderboard.Entry),
		ttls:   make(map[int]time.Duration),
	}
}

func (c *fakeRankingCache) GetCachedTop(_ context.Context, n int) ([]*leaderboard.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.slices[n]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return entries, nil
}

func (c *fakeRankingCache) SetCachedTop(_ context.Context, n int, entries []*leaderboard.Entry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.slices[n] = entries
	c.ttls[n] = ttl
	return nil
}

func (c *fakeRankingCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slices = make(map[int][]*leaderboard.Entry)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

func TestRefreshLeaderboardJob_PrecomputesEverySlice(t *testing.T) {
	repo := newFakeRankingRepo(200)
	cache := newFakeRankingCache()
	events := &fakePublisher{}

	job := NewRefreshLeaderboardJob(repo, cache, events, nil, RefreshLeaderboardConfig{
		Limits:   []int{10, 25, 100},
		CacheTTL: 5 * time.Minute,
	})
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []int{10, 25, 100}, repo.topCalls)
	for _, limit := range []int{10, 25, 100} {
		entries, err := cache.GetCachedTop(context.Background(), limit)
		require.NoError(t, err)
		assert.Len(t, entries, limit)
		assert.Equal(t, 5*time.Minute, cache.ttls[limit])
	}

	refreshed := events.ofType(shared.EventLeaderboardRefreshed)
	require.Len(t, refreshed, 1)
	assert.Equal(t, 3, refreshed[0].Payload()["slice_count"])
}

func TestRefreshLeaderboardJob_ShortBoardFillsWhatExists(t *testing.T) {
	repo := newFakeRankingRepo(7)
	cache := newFakeRankingCache()

	job := NewRefreshLeaderboardJob(repo, cache, nil, nil, RefreshLeaderboardConfig{
		Limits: []int{10},
	})
	require.NoError(t, job.Run(context.Background()))

	entries, err := cache.GetCachedTop(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, entries, 7)
}

func TestRefreshLeaderboardJob_OneFailedSliceDoesNotStopTheRest(t *testing.T) {
	repo := newFakeRankingRepo(200)
	repo.failTop[25] = shared.ErrStoreUnavailable
	cache := newFakeRankingCache()
	events := &fakePublisher{}

	job := NewRefreshLeaderboardJob(repo, cache, events, nil, RefreshLeaderboardConfig{
		Limits: []int{10, 25, 100},
	})
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)

	_, err = cache.GetCachedTop(context.Background(), 10)
	assert.NoError(t, err)
	_, err = cache.GetCachedTop(context.Background(), 25)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = cache.GetCachedTop(context.Background(), 100)
	assert.NoError(t, err)

	assert.Empty(t, events.ofType(shared.EventLeaderboardRefreshed),
		"no refreshed event while any slice is stale")
}

func TestRefreshLeaderboardJob_CacheWriteFailureSurfaces(t *testing.T) {
	repo := newFakeRankingRepo(50)
	cache := newFakeRankingCache()
	cache.setErr = shared.ErrStoreUnavailable

	job := NewRefreshLeaderboardJob(repo, cache, nil, nil, RefreshLeaderboardConfig{
		Limits: []int{10},
	})
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestRefreshLeaderboardJob_DefaultsApplied(t *testing.T) {
	job := NewRefreshLeaderboardJob(newFakeRankingRepo(0), newFakeRankingCache(), nil, nil, RefreshLeaderboardConfig{})
	assert.Equal(t, "refresh_leaderboard", job.Name())
	assert.NotEmpty(t, job.Description())
	assert.Equal(t, DefaultRefreshLeaderboardConfig().Limits, job.config.Limits)
	assert.Equal(t, DefaultRefreshLeaderboardConfig().CacheTTL, job.config.CacheTTL)
}
