package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

func TestComputeLevelProgress_NewUser(t *testing.T) {
	p, err := ComputeLevelProgress(0)
	require.NoError(t, err)

	assert.Equal(t, shared.Level(1), p.Level)
	assert.Equal(t, 0, p.CurrentXPInLevel)
	assert.Equal(t, 100, p.RequiredXPForLevel)
	assert.Equal(t, 100, p.RemainingXPToNextLevel)
}

func TestComputeLevelProgress_LevelBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		totalXP   int
		level     int
		inLevel   int
		required  int
		remaining int
	}{
		{"just below first boundary", 99, 1, 99, 100, 1},
		{"exactly at first boundary", 100, 2, 0, 200, 200},
		{"inside level 2", 250, 2, 150, 200, 50},
		{"just below second boundary", 299, 2, 199, 200, 1},
		{"exactly at second boundary", 300, 3, 0, 300, 300},
		{"exactly at third boundary", 600, 4, 0, 400, 400},
		{"large total", 100_000, 45, 1000, 4500, 3500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ComputeLevelProgress(tt.totalXP)
			require.NoError(t, err)

			assert.Equal(t, tt.level, p.Level.Int())
			assert.Equal(t, tt.inLevel, p.CurrentXPInLevel)
			assert.Equal(t, tt.required, p.RequiredXPForLevel)
			assert.Equal(t, tt.remaining, p.RemainingXPToNextLevel)
		})
	}
}

func TestComputeLevelProgress_NegativeTotal(t *testing.T) {
	_, err := ComputeLevelProgress(-1)
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestComputeLevelProgress_Invariants(t *testing.T) {
	prevLevel := 0
	for total := 0; total <= 50_000; total++ {
		p, err := ComputeLevelProgress(total)
		require.NoError(t, err)

		// Level never decreases as the total grows.
		require.GreaterOrEqual(t, p.Level.Int(), prevLevel, "total=%d", total)
		prevLevel = p.Level.Int()

		// In-level progress stays inside [0, required).
		require.GreaterOrEqual(t, p.CurrentXPInLevel, 0, "total=%d", total)
		require.Less(t, p.CurrentXPInLevel, p.RequiredXPForLevel, "total=%d", total)

		// The pieces reassemble into the original total.
		require.Equal(t, total, p.Level.BaseXP()+p.CurrentXPInLevel, "total=%d", total)
	}
}

// The closed-form level must agree with plain iterative accumulation.
func TestLevelForTotal_MatchesIterative(t *testing.T) {
	for total := 0; total <= 2_000_000; total += 7 {
		want := shared.XP(total).Level()
		got := levelForTotal(total)
		require.Equal(t, want, got, "total=%d", total)
	}

	// Exact triangular boundaries are where float sqrt could land a hair
	// off; check every one of them directly.
	for n := 1; n <= 2000; n++ {
		boundary := cumulative(n)
		require.Equal(t, shared.Level(n+1), levelForTotal(boundary), "boundary n=%d", n)
		require.Equal(t, shared.Level(n), levelForTotal(boundary-1), "just below boundary n=%d", n)
	}
}

func TestLevelTitles(t *testing.T) {
	assert.Equal(t, "Newcomer", shared.Level(1).Title())
	assert.Equal(t, "Newcomer", shared.Level(2).Title())
	assert.Equal(t, "Explorer", shared.Level(3).Title())
	assert.Equal(t, "Curator", shared.Level(6).Title())
	assert.Equal(t, "Tastemaker", shared.Level(10).Title())
	assert.Equal(t, "Legend", shared.Level(15).Title())
}
