package query

import (
	"context"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVITY FEED QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetActivityFeedQuery contains the request parameters.
type GetActivityFeedQuery struct {
	// Limit - number of feed items (default 20, maximum 100).
	Limit int
}

// Validate checks and normalizes the request parameters.
func (q *GetActivityFeedQuery) Validate() error {
	if q.Limit < 0 {
		return shared.ErrInvalidLimit
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// FeedItemDTO is one recently granted award across all users.
type FeedItemDTO struct {
	// UserID - who earned it.
	UserID string `json:"user_id"`

	// AchievementID - what was earned.
	AchievementID string `json:"achievement_id"`

	// DisplayName - human-readable achievement name.
	DisplayName string `json:"display_name"`

	// XPReward - experience attached.
	XPReward int `json:"xp_reward"`

	// GrantedAt - when it was earned.
	GrantedAt time.Time `json:"granted_at"`
}

// GetActivityFeedResult contains the response.
type GetActivityFeedResult struct {
	// Items - newest awards first.
	Items []FeedItemDTO `json:"items"`

	// GeneratedAt - when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetActivityFeedHandler serves the recent-awards feed straight from the
// award ledger.
type GetActivityFeedHandler struct {
	ledger  achievement.AwardLedger
	catalog *achievement.Catalog
}

// NewGetActivityFeedHandler creates a new handler.
func NewGetActivityFeedHandler(ledger achievement.AwardLedger, catalog *achievement.Catalog) *GetActivityFeedHandler {
	return &GetActivityFeedHandler{ledger: ledger, catalog: catalog}
}

// Handle executes the query.
func (h *GetActivityFeedHandler) Handle(ctx context.Context, query GetActivityFeedQuery) (*GetActivityFeedResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	records, err := h.ledger.RecentAwards(ctx, query.Limit)
	if err != nil {
		return nil, shared.WrapError("achievement", "GetActivityFeed", shared.ErrStoreUnavailable, "failed to read recent awards", err)
	}

	items := make([]FeedItemDTO, 0, len(records))
	for _, r := range records {
		item := FeedItemDTO{
			UserID:        r.UserID.String(),
			AchievementID: r.AchievementID.String(),
			XPReward:      r.XPGranted,
			GrantedAt:     r.GrantedAt,
		}
		if def, err := h.catalog.Lookup(r.AchievementID); err == nil {
			item.DisplayName = def.DisplayName
		}
		items = append(items, item)
	}

	return &GetActivityFeedResult{
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
