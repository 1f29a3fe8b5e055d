// Package command contains write operations following CQRS pattern.
// Commands change state and are invoked by the interface layer whenever a
// user's activity counters move.
package command

import (
	"context"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATE ACHIEVEMENTS COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateAchievementsCommand asks the engine to re-check every achievement
// for one user. Safe to issue at any time and any number of times; awards
// are idempotent at the store level.
type EvaluateAchievementsCommand struct {
	// UserID - the user to evaluate.
	UserID string
}

// EvaluateAchievementsResult contains the outcome.
type EvaluateAchievementsResult struct {
	// UserID - the evaluated user.
	UserID string `json:"user_id"`

	// NewlyGranted - achievements granted by this evaluation, in catalog
	// order. Empty on a re-run with unchanged activity.
	NewlyGranted []string `json:"newly_granted"`

	// EvaluatedAt - when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// EvaluateAchievementsHandler executes achievement evaluation.
type EvaluateAchievementsHandler struct {
	engine *achievement.Engine
	log    *logger.Logger
}

// NewEvaluateAchievementsHandler creates a new handler.
func NewEvaluateAchievementsHandler(engine *achievement.Engine, log *logger.Logger) *EvaluateAchievementsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &EvaluateAchievementsHandler{
		engine: engine,
		log:    log.With(logger.Component("evaluate_achievements")),
	}
}

// Handle executes the command. Partially granted achievements are reported
// as granted alongside the error describing their pending experience; the
// award itself stands either way.
func (h *EvaluateAchievementsHandler) Handle(ctx context.Context, cmd EvaluateAchievementsCommand) (*EvaluateAchievementsResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	granted, err := h.engine.EvaluateAndAward(ctx, userID)

	result := &EvaluateAchievementsResult{
		UserID:       userID.String(),
		NewlyGranted: make([]string, len(granted)),
		EvaluatedAt:  time.Now().UTC(),
	}
	for i, id := range granted {
		result.NewlyGranted[i] = id.String()
	}

	if err != nil {
		// Grants that landed are still reported so callers can notify;
		// the error carries what remains outstanding.
		h.log.Warn("evaluation finished with errors",
			logger.UserID(userID.String()),
			logger.Int("granted", len(granted)),
			logger.Err(err),
		)
		return result, err
	}

	if len(granted) > 0 {
		h.log.Info("evaluation granted achievements",
			logger.UserID(userID.String()),
			logger.Int("granted", len(granted)),
		)
	}
	return result, nil
}
