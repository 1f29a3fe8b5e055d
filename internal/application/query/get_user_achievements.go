package query

import (
	"context"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER ACHIEVEMENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetUserAchievementsQuery contains the request parameters.
type GetUserAchievementsQuery struct {
	// UserID - the user whose achievements to list.
	UserID string
}

// AchievementDTO is the transport shape of one earned achievement.
type AchievementDTO struct {
	// ID - the achievement identifier.
	ID string `json:"id"`

	// DisplayName - human-readable name.
	DisplayName string `json:"display_name"`

	// Description - what the achievement is for.
	Description string `json:"description"`

	// XPReward - experience granted on earning it.
	XPReward int `json:"xp_reward"`
}

// GetUserAchievementsResult contains the response.
type GetUserAchievementsResult struct {
	// UserID - the queried user.
	UserID string `json:"user_id"`

	// Achievements - earned achievements in catalog order.
	Achievements []AchievementDTO `json:"achievements"`

	// TotalCatalogSize - how many achievements exist overall.
	TotalCatalogSize int `json:"total_catalog_size"`

	// GeneratedAt - when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetUserAchievementsHandler serves per-user achievement reads through the
// engine, which repairs the fast-path cache and applies any newly eligible
// registration-rank awards along the way.
type GetUserAchievementsHandler struct {
	engine *achievement.Engine
}

// NewGetUserAchievementsHandler creates a new handler.
func NewGetUserAchievementsHandler(engine *achievement.Engine) *GetUserAchievementsHandler {
	return &GetUserAchievementsHandler{engine: engine}
}

// Handle executes the query.
func (h *GetUserAchievementsHandler) Handle(ctx context.Context, query GetUserAchievementsQuery) (*GetUserAchievementsResult, error) {
	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	ids, err := h.engine.CurrentAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}

	catalog := h.engine.Catalog()
	dtos := make([]AchievementDTO, 0, len(ids))
	for _, id := range ids {
		def, err := catalog.Lookup(id)
		if err != nil {
			// A ledger row for an id outside the catalog means the catalog
			// shrank, which it never should. Surface it.
			return nil, err
		}
		dtos = append(dtos, AchievementDTO{
			ID:          def.ID.String(),
			DisplayName: def.DisplayName,
			Description: def.Description,
			XPReward:    def.XPReward,
		})
	}

	return &GetUserAchievementsResult{
		UserID:           userID.String(),
		Achievements:     dtos,
		TotalCatalogSize: catalog.Len(),
		GeneratedAt:      time.Now().UTC(),
	}, nil
}
