// Package achievement contains the achievement and experience engine core:
// the immutable catalog of achievement definitions, the leveling calculator,
// the award ledger contracts, and the engine that evaluates and grants awards.
package achievement

import (
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ELIGIBILITY RULES
// ══════════════════════════════════════════════════════════════════════════════

// RuleKind identifies which activity counter an eligibility rule reads.
type RuleKind string

const (
	// RuleFindCount - number of game finds the user has submitted.
	RuleFindCount RuleKind = "find_count"
	// RuleUpvotesGiven - number of upvotes the user has cast.
	RuleUpvotesGiven RuleKind = "upvotes_given"
	// RuleUpvotesReceived - upvotes received on the user's own finds.
	RuleUpvotesReceived RuleKind = "upvotes_received"
	// RuleFollowsGiven - number of users this user follows.
	RuleFollowsGiven RuleKind = "follows_given"
	// RuleFollowsReceived - number of followers this user has.
	RuleFollowsReceived RuleKind = "follows_received"
	// RuleFirstPublish - the user has at least one published find.
	RuleFirstPublish RuleKind = "first_publish"
	// RuleRegistrationRank - ordinal position among all users by join time.
	RuleRegistrationRank RuleKind = "registration_rank"
)

// EligibilityRule is a tagged variant pairing a counter kind with a threshold.
// For RuleFirstPublish the threshold is ignored. For RuleRegistrationRank the
// threshold is the highest qualifying rank (1-based).
type EligibilityRule struct {
	Kind      RuleKind
	Threshold int
}

// IsRankBased reports whether the rule depends on registration order rather
// than on activity counters. Rank-based achievements are granted lazily on
// read, so they are recomputed on every lookup even when the cache is warm.
func (r EligibilityRule) IsRankBased() bool {
	return r.Kind == RuleRegistrationRank
}

// SatisfiedBy evaluates the rule against an activity snapshot.
func (r EligibilityRule) SatisfiedBy(s *ActivitySnapshot) bool {
	if s == nil {
		return false
	}
	switch r.Kind {
	case RuleFindCount:
		return s.FindCount >= r.Threshold
	case RuleUpvotesGiven:
		return s.UpvotesGiven >= r.Threshold
	case RuleUpvotesReceived:
		return s.UpvotesReceived >= r.Threshold
	case RuleFollowsGiven:
		return s.FollowsGiven >= r.Threshold
	case RuleFollowsReceived:
		return s.FollowsReceived >= r.Threshold
	case RuleFirstPublish:
		return s.HasPublishedFind
	case RuleRegistrationRank:
		// RegistrationRank counts users who joined strictly before this
		// user, so rank N means N earlier joiners. Once true this stays
		// true forever: the comparison set only grows.
		return s.RegistrationRank < r.Threshold
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// ActivitySnapshot carries the per-user counters eligibility rules read.
// It is produced by the relational store and treated as read-only here.
type ActivitySnapshot struct {
	UserID shared.UserID

	// Role - account category; staff accounts never receive achievements.
	Role shared.Role

	// JoinedAt - when the account registered.
	JoinedAt time.Time

	// FindCount - game finds submitted.
	FindCount int

	// UpvotesGiven - upvotes cast by this user.
	UpvotesGiven int

	// UpvotesReceived - upvotes received on this user's finds.
	UpvotesReceived int

	// FollowsGiven - users this user follows.
	FollowsGiven int

	// FollowsReceived - followers of this user.
	FollowsReceived int

	// HasPublishedFind - at least one find reached published state.
	HasPublishedFind bool

	// RegistrationRank - count of users who joined strictly before this
	// user, evaluated against the current population at read time.
	RegistrationRank int
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT DEFINITION
// ══════════════════════════════════════════════════════════════════════════════

// Definition describes one achievement. Definitions are immutable: once an id
// has shipped, its rule and threshold must never change retroactively, since
// that would silently alter who "should" already hold the award.
type Definition struct {
	ID          shared.AchievementID
	DisplayName string
	Emblem      string
	Description string
	Blurb       string
	Rule        EligibilityRule
	XPReward    int

	// NextHint - optional copy pointing at the next milestone.
	NextHint string
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is the process-wide registry of achievement definitions. It is
// built once at startup and never mutated afterwards; adding an achievement
// is a deployment, not a data operation.
type Catalog struct {
	ordered []Definition
	byID    map[shared.AchievementID]int
}

// NewCatalog builds a catalog from the given definitions, preserving order.
func NewCatalog(defs []Definition) (*Catalog, error) {
	c := &Catalog{
		ordered: make([]Definition, 0, len(defs)),
		byID:    make(map[shared.AchievementID]int, len(defs)),
	}
	for _, def := range defs {
		if !def.ID.IsValid() {
			return nil, shared.NewDomainError("achievement", "NewCatalog", shared.ErrInvalidID,
				"invalid achievement ID: "+def.ID.String())
		}
		if _, exists := c.byID[def.ID]; exists {
			return nil, shared.NewDomainError("achievement", "NewCatalog", shared.ErrAlreadyExists,
				"duplicate achievement ID: "+def.ID.String())
		}
		if def.XPReward < 0 {
			return nil, shared.NewDomainError("achievement", "NewCatalog", shared.ErrNegativeValue,
				"XP reward cannot be negative: "+def.ID.String())
		}
		c.byID[def.ID] = len(c.ordered)
		c.ordered = append(c.ordered, def)
	}
	return c, nil
}

// Definitions returns all definitions in insertion order. The returned slice
// is a copy; callers cannot mutate the catalog through it.
func (c *Catalog) Definitions() []Definition {
	out := make([]Definition, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Lookup returns the definition for an id.
func (c *Catalog) Lookup(id shared.AchievementID) (Definition, error) {
	idx, ok := c.byID[id]
	if !ok {
		return Definition{}, shared.ErrAchievementNotFound
	}
	return c.ordered[idx], nil
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// DefaultCatalog returns the production achievement set for Questlog Hub.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions())
	if err != nil {
		// The default set is compile-time data; a failure here is a bug.
		panic(err)
	}
	return c
}

// DefaultDefinitions returns the production definitions in display order.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			ID:          "first_find",
			DisplayName: "First Find",
			Emblem:      "emblem-first-find",
			Description: "Publish your first game find",
			Blurb:       "Every collection starts with a single discovery.",
			Rule:        EligibilityRule{Kind: RuleFirstPublish},
			XPReward:    100,
			NextHint:    "Publish 10 finds to become a Scout",
		},
		{
			ID:          "scout_10",
			DisplayName: "Scout",
			Emblem:      "emblem-scout",
			Description: "Publish 10 game finds",
			Blurb:       "You know where the hidden gems are.",
			Rule:        EligibilityRule{Kind: RuleFindCount, Threshold: 10},
			XPReward:    200,
			NextHint:    "Publish 50 finds to become a Pathfinder",
		},
		{
			ID:          "pathfinder_50",
			DisplayName: "Pathfinder",
			Emblem:      "emblem-pathfinder",
			Description: "Publish 50 game finds",
			Blurb:       "The community follows your trail.",
			Rule:        EligibilityRule{Kind: RuleFindCount, Threshold: 50},
			XPReward:    500,
		},
		{
			ID:          "cheerleader_25",
			DisplayName: "Cheerleader",
			Emblem:      "emblem-cheerleader",
			Description: "Upvote 25 finds",
			Blurb:       "Good taste deserves recognition, and you give it.",
			Rule:        EligibilityRule{Kind: RuleUpvotesGiven, Threshold: 25},
			XPReward:    100,
		},
		{
			ID:          "crowd_favorite_100",
			DisplayName: "Crowd Favorite",
			Emblem:      "emblem-crowd-favorite",
			Description: "Receive 100 upvotes on your finds",
			Blurb:       "The crowd has spoken.",
			Rule:        EligibilityRule{Kind: RuleUpvotesReceived, Threshold: 100},
			XPReward:    300,
		},
		{
			ID:          "connector_10",
			DisplayName: "Connector",
			Emblem:      "emblem-connector",
			Description: "Follow 10 curators",
			Blurb:       "You keep an eye on the best.",
			Rule:        EligibilityRule{Kind: RuleFollowsGiven, Threshold: 10},
			XPReward:    50,
		},
		{
			ID:          "trendsetter_50",
			DisplayName: "Trendsetter",
			Emblem:      "emblem-trendsetter",
			Description: "Reach 50 followers",
			Blurb:       "People want to see what you find next.",
			Rule:        EligibilityRule{Kind: RuleFollowsReceived, Threshold: 50},
			XPReward:    300,
		},
		{
			ID:          "founding_member",
			DisplayName: "Founding Member",
			Emblem:      "emblem-founding-member",
			Description: "One of the first 100 users to join",
			Blurb:       "You were here before it was cool.",
			Rule:        EligibilityRule{Kind: RuleRegistrationRank, Threshold: 100},
			XPReward:    500,
		},
	}
}
