package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

func TestNewCatalog_RejectsDuplicates(t *testing.T) {
	defs := []Definition{
		{ID: "first_find", DisplayName: "First Find", Rule: EligibilityRule{Kind: RuleFirstPublish}},
		{ID: "first_find", DisplayName: "First Find Again", Rule: EligibilityRule{Kind: RuleFirstPublish}},
	}

	_, err := NewCatalog(defs)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
}

func TestNewCatalog_RejectsInvalidID(t *testing.T) {
	_, err := NewCatalog([]Definition{{ID: "Not Valid!", DisplayName: "Broken"}})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestNewCatalog_RejectsNegativeReward(t *testing.T) {
	_, err := NewCatalog([]Definition{{ID: "bad_reward", XPReward: -10}})
	assert.ErrorIs(t, err, shared.ErrNegativeValue)
}

func TestCatalog_PreservesOrderAndLookup(t *testing.T) {
	defs := []Definition{
		{ID: "zeta_one", DisplayName: "Zeta"},
		{ID: "alpha_one", DisplayName: "Alpha"},
		{ID: "mid_one", DisplayName: "Mid"},
	}

	c, err := NewCatalog(defs)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	got := c.Definitions()
	assert.Equal(t, shared.AchievementID("zeta_one"), got[0].ID)
	assert.Equal(t, shared.AchievementID("alpha_one"), got[1].ID)
	assert.Equal(t, shared.AchievementID("mid_one"), got[2].ID)

	def, err := c.Lookup("alpha_one")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", def.DisplayName)

	_, err = c.Lookup("missing_one")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCatalog_DefinitionsReturnsCopy(t *testing.T) {
	c, err := NewCatalog([]Definition{{ID: "first_find", DisplayName: "First Find"}})
	require.NoError(t, err)

	c.Definitions()[0].DisplayName = "mutated"

	def, err := c.Lookup("first_find")
	require.NoError(t, err)
	assert.Equal(t, "First Find", def.DisplayName)
}

func TestDefaultCatalog_IsWellFormed(t *testing.T) {
	c := DefaultCatalog()
	require.Equal(t, 8, c.Len())

	for _, def := range c.Definitions() {
		assert.True(t, def.ID.IsValid(), "id %q", def.ID)
		assert.NotEmpty(t, def.DisplayName, "id %q", def.ID)
		assert.GreaterOrEqual(t, def.XPReward, 0, "id %q", def.ID)
	}

	founding, err := c.Lookup("founding_member")
	require.NoError(t, err)
	assert.True(t, founding.Rule.IsRankBased())
}

func TestEligibilityRule_SatisfiedBy(t *testing.T) {
	snap := &ActivitySnapshot{
		UserID:           "6a8f2c1e-0000-4000-8000-000000000001",
		Role:             shared.RoleMember,
		JoinedAt:         time.Now(),
		FindCount:        10,
		UpvotesGiven:     24,
		UpvotesReceived:  100,
		FollowsGiven:     3,
		FollowsReceived:  51,
		HasPublishedFind: true,
		RegistrationRank: 99,
	}

	tests := []struct {
		name string
		rule EligibilityRule
		want bool
	}{
		{"find count at threshold", EligibilityRule{Kind: RuleFindCount, Threshold: 10}, true},
		{"find count above snapshot", EligibilityRule{Kind: RuleFindCount, Threshold: 11}, false},
		{"upvotes given one short", EligibilityRule{Kind: RuleUpvotesGiven, Threshold: 25}, false},
		{"upvotes received exact", EligibilityRule{Kind: RuleUpvotesReceived, Threshold: 100}, true},
		{"follows given short", EligibilityRule{Kind: RuleFollowsGiven, Threshold: 10}, false},
		{"follows received over", EligibilityRule{Kind: RuleFollowsReceived, Threshold: 50}, true},
		{"first publish", EligibilityRule{Kind: RuleFirstPublish}, true},
		{"registration rank inside cutoff", EligibilityRule{Kind: RuleRegistrationRank, Threshold: 100}, true},
		{"registration rank at cutoff", EligibilityRule{Kind: RuleRegistrationRank, Threshold: 99}, false},
		{"unknown kind", EligibilityRule{Kind: "mystery"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.SatisfiedBy(snap))
		})
	}
}

func TestEligibilityRule_NilSnapshot(t *testing.T) {
	rule := EligibilityRule{Kind: RuleFindCount, Threshold: 1}
	assert.False(t, rule.SatisfiedBy(nil))
}

func TestEligibilityRule_RegistrationRankIsMonotonic(t *testing.T) {
	// The rank counts users who joined strictly earlier, so it can only
	// grow as the population grows. A rule satisfied at rank 40 must stay
	// satisfied at every earlier rank too.
	rule := EligibilityRule{Kind: RuleRegistrationRank, Threshold: 100}
	for rank := 0; rank < 100; rank++ {
		assert.True(t, rule.SatisfiedBy(&ActivitySnapshot{RegistrationRank: rank}), "rank=%d", rank)
	}
	for rank := 100; rank < 110; rank++ {
		assert.False(t, rule.SatisfiedBy(&ActivitySnapshot{RegistrationRank: rank}), "rank=%d", rank)
	}
}
