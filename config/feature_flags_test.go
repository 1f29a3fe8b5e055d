package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_DefaultsAllEnabled(t *testing.T) {
	ff := LoadFeatureFlags()

	for name := range ff.GetAllFeatures() {
		assert.True(t, ff.IsEnabled(name, nil), "feature %s should default to enabled", name)
	}
	assert.False(t, ff.IsEnabled("does.not.exist", nil))
}

func TestFeatureFlags_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FEATURE_ENGINE_NOTIFICATIONS", "false")
	t.Setenv("FEATURE_LEADERBOARD_CACHE", "50")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureEngineNotifications, nil))

	features := ff.GetAllFeatures()
	assert.Equal(t, 50, features[FeatureLeaderboardCache].RolloutPercent)
	assert.True(t, features[FeatureLeaderboardCache].Enabled)
	assert.True(t, ff.IsEnabled(FeatureReconcileSweep, nil), "untouched flags keep defaults")
}

func TestFeatureFlags_RolloutIsConsistentPerUser(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureLeaderboardCache, 40))

	inRollout := 0
	for i := 0; i < 1000; i++ {
		ctx := &FeatureContext{UserID: fmt.Sprintf("user-%d", i)}
		first := ff.IsEnabled(FeatureLeaderboardCache, ctx)

		// Bucket assignment must be stable across evaluations.
		for j := 0; j < 3; j++ {
			assert.Equal(t, first, ff.IsEnabled(FeatureLeaderboardCache, ctx))
		}
		if first {
			inRollout++
		}
	}

	// FNV buckets are roughly uniform; allow generous slack.
	assert.Greater(t, inRollout, 300)
	assert.Less(t, inRollout, 500)
}

func TestFeatureFlags_StaffBypassesRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureEngineFastPathCache, 1))

	staff := &FeatureContext{UserID: "staff-user", IsStaff: true}
	assert.True(t, ff.IsEnabled(FeatureEngineFastPathCache, staff))

	require.NoError(t, ff.DisableFeature(FeatureEngineFastPathCache))
	assert.False(t, ff.IsEnabled(FeatureEngineFastPathCache, staff),
		"staff bypass rollout, not the kill switch")
}

func TestFeatureFlags_UserOverrideWinsOverEverything(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{UserID: "override-user"}

	require.NoError(t, ff.DisableFeature(FeatureAPIManualEvaluate))
	ff.SetUserOverride(ctx.UserID, FeatureAPIManualEvaluate, true)
	assert.True(t, ff.IsEnabled(FeatureAPIManualEvaluate, ctx))

	ff.ClearUserOverrides(ctx.UserID)
	assert.False(t, ff.IsEnabled(FeatureAPIManualEvaluate, ctx))
}

func TestFeatureFlags_SetRolloutPercentValidation(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("does.not.exist", 50), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureReconcileSweep, 101), ErrInvalidRolloutPercent)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureReconcileSweep, -1), ErrInvalidRolloutPercent)
}

func TestFeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_ENGINE_FAST_PATH_CACHE", featureNameToEnvKey(FeatureEngineFastPathCache))
	assert.Equal(t, "FEATURE_MAINTENANCE_RECONCILE_SWEEP", featureNameToEnvKey(FeatureReconcileSweep))
}
