package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeLeaderboardRepo struct {
	entries []*leaderboard.Entry
	count   int
	topErr  error

	topCalls int
}

func (r *fakeLeaderboardRepo) Top(_ context.Context, n int) ([]*leaderboard.Entry, error) {
	r.topCalls++
	if r.topErr != nil {
		return nil, r.topErr
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	return r.entries[:n], nil
}

func (r *fakeLeaderboardRepo) Count(_ context.Context) (int, error) {
	return r.count, nil
}

type fakeLeaderboardCache struct {
	slices   map[int][]*leaderboard.Entry
	getErr   error
	setCalls int
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{slices: make(map[int][]*leaderboard.Entry)}
}

func (c *fakeLeaderboardCache) GetCachedTop(_ context.Context, n int) ([]*leaderboard.Entry, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	entries, ok := c.slices[n]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return entries, nil
}

func (c *fakeLeaderboardCache) SetCachedTop(_ context.Context, n int, entries []*leaderboard.Entry, _ time.Duration) error {
	c.setCalls++
	c.slices[n] = entries
	return nil
}

func (c *fakeLeaderboardCache) InvalidateAll(_ context.Context) error {
	c.slices = make(map[int][]*leaderboard.Entry)
	return nil
}

func rankedEntries(n int) []*leaderboard.Entry {
	joined := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*leaderboard.Entry, n)
	for i := 0; i < n; i++ {
		out[i] = &leaderboard.Entry{
			UserID:      shared.UserID("6a8f2c1e-0000-4000-8000-00000000000" + string(rune('1'+i))),
			Handle:      "curator" + string(rune('a'+i)),
			DisplayName: "Curator " + string(rune('A'+i)),
			XP:          shared.XP(1000 - 100*i),
			Level:       shared.XP(1000 - 100*i).Level(),
			Rank:        shared.Rank(i + 1),
			JoinedAt:    joined.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetLeaderboard_CacheMissReadsRepoAndWritesBack(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries(5), count: 42}
	cache := newFakeLeaderboardCache()
	h := NewGetLeaderboardHandler(repo, cache, time.Minute, nil)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 3})
	require.NoError(t, err)

	assert.False(t, result.FromCache)
	assert.Equal(t, 42, result.TotalCount)
	require.Len(t, result.Entries, 3)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, 1000, result.Entries[0].XP)
	assert.Equal(t, "curatora", result.Entries[0].Handle)
	assert.NotEmpty(t, result.Entries[0].LevelTitle)

	// The slice was written back for the next read.
	assert.Equal(t, 1, cache.setCalls)
	assert.Len(t, cache.slices[3], 3)
}

func TestGetLeaderboard_ServesFromCache(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries(5), count: 42}
	cache := newFakeLeaderboardCache()
	cache.slices[3] = rankedEntries(3)
	h := NewGetLeaderboardHandler(repo, cache, time.Minute, nil)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 3})
	require.NoError(t, err)

	assert.True(t, result.FromCache)
	require.Len(t, result.Entries, 3)
	assert.Zero(t, repo.topCalls)
}

func TestGetLeaderboard_CacheFailureFallsThrough(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries(2), count: 2}
	cache := newFakeLeaderboardCache()
	cache.getErr = errors.New("redis down")
	h := NewGetLeaderboardHandler(repo, cache, time.Minute, nil)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2})
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, repo.topCalls)
}

func TestGetLeaderboard_NilCache(t *testing.T) {
	repo := &fakeLeaderboardRepo{entries: rankedEntries(2), count: 2}
	h := NewGetLeaderboardHandler(repo, nil, time.Minute, nil)

	result, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
}

func TestGetLeaderboard_RepoFailureSurfaces(t *testing.T) {
	repo := &fakeLeaderboardRepo{topErr: errors.New("connection refused")}
	h := NewGetLeaderboardHandler(repo, newFakeLeaderboardCache(), time.Minute, nil)

	_, err := h.Handle(context.Background(), GetLeaderboardQuery{Limit: 10})
	require.Error(t, err)
	assert.True(t, shared.IsStoreUnavailable(err))
}

func TestGetLeaderboardQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		want    int
		wantErr bool
	}{
		{"zero defaults", 0, 20, false},
		{"explicit value kept", 25, 25, false},
		{"capped at maximum", 500, 100, false},
		{"negative rejected", -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := GetLeaderboardQuery{Limit: tt.limit}
			err := q.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.Limit)
		})
	}
}
