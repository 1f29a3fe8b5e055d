package query

import (
	"context"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEVEL PROGRESS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetLevelProgressQuery contains the request parameters.
type GetLevelProgressQuery struct {
	// UserID - the user whose level to compute.
	UserID string
}

// GetLevelProgressResult contains the response.
type GetLevelProgressResult struct {
	// UserID - the queried user.
	UserID string `json:"user_id"`

	// TotalXP - the user's lifetime experience total.
	TotalXP int `json:"total_xp"`

	// Level - current level.
	Level int `json:"level"`

	// LevelTitle - human-readable level band.
	LevelTitle string `json:"level_title"`

	// CurrentXPInLevel - experience accumulated inside the current level.
	CurrentXPInLevel int `json:"current_xp_in_level"`

	// RequiredXPForLevel - experience the current level spans.
	RequiredXPForLevel int `json:"required_xp_for_level"`

	// RemainingXPToNextLevel - experience still needed to level up.
	RemainingXPToNextLevel int `json:"remaining_xp_to_next_level"`

	// GeneratedAt - when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLevelProgressHandler serves level computations.
type GetLevelProgressHandler struct {
	engine     *achievement.Engine
	experience achievement.ExperienceLedger
}

// NewGetLevelProgressHandler creates a new handler.
func NewGetLevelProgressHandler(engine *achievement.Engine, experience achievement.ExperienceLedger) *GetLevelProgressHandler {
	return &GetLevelProgressHandler{engine: engine, experience: experience}
}

// Handle executes the query.
func (h *GetLevelProgressHandler) Handle(ctx context.Context, query GetLevelProgressQuery) (*GetLevelProgressResult, error) {
	userID, err := shared.NewUserID(query.UserID)
	if err != nil {
		return nil, err
	}

	total, err := h.experience.Total(ctx, userID)
	if err != nil {
		return nil, err
	}

	progress, err := h.engine.LevelProgressFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &GetLevelProgressResult{
		UserID:                 userID.String(),
		TotalXP:                total,
		Level:                  progress.Level.Int(),
		LevelTitle:             progress.Level.Title(),
		CurrentXPInLevel:       progress.CurrentXPInLevel,
		RequiredXPForLevel:     progress.RequiredXPForLevel,
		RemainingXPToNextLevel: progress.RemainingXPToNextLevel,
		GeneratedAt:            time.Now().UTC(),
	}, nil
}
