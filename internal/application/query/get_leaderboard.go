// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery contains the leaderboard request parameters.
type GetLeaderboardQuery struct {
	// Limit - number of entries to return (default 20, maximum 100).
	Limit int
}

// Validate checks and normalizes the request parameters.
func (q *GetLeaderboardQuery) Validate() error {
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

// LeaderboardEntryDTO is the transport shape of one ranked row.
type LeaderboardEntryDTO struct {
	// Rank - 1-based position.
	Rank int `json:"rank"`

	// UserID - the ranked user.
	UserID string `json:"user_id"`

	// Handle - the user's unique handle.
	Handle string `json:"handle"`

	// DisplayName - display name.
	DisplayName string `json:"display_name"`

	// XP - current experience total.
	XP int `json:"xp"`

	// Level - level derived from XP.
	Level int `json:"level"`

	// LevelTitle - human-readable level band.
	LevelTitle string `json:"level_title"`
}

// GetLeaderboardResult contains the leaderboard response.
type GetLeaderboardResult struct {
	// Entries - ranked rows, best first.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - total number of ranked users.
	TotalCount int `json:"total_count"`

	// FromCache - whether the result came from the fast path.
	FromCache bool `json:"from_cache"`

	// GeneratedAt - when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetLeaderboardHandler serves leaderboard reads, cache first.
type GetLeaderboardHandler struct {
	repo     leaderboard.Repository
	cache    leaderboard.Cache
	cacheTTL time.Duration
	log      *logger.Logger
}

// NewGetLeaderboardHandler creates a new leaderboard query handler.
func NewGetLeaderboardHandler(
	repo leaderboard.Repository,
	cache leaderboard.Cache,
	cacheTTL time.Duration,
	log *logger.Logger,
) *GetLeaderboardHandler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if log == nil {
		log = logger.Default()
	}
	return &GetLeaderboardHandler{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log.With(logger.Component("get_leaderboard")),
	}
}

// Handle executes the leaderboard query.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if entries, ok := h.tryCache(ctx, query.Limit); ok {
		return h.buildResult(ctx, entries, true), nil
	}

	entries, err := h.repo.Top(ctx, query.Limit)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "GetLeaderboard", shared.ErrStoreUnavailable, "failed to query leaderboard", err)
	}

	// Write back so the next read within the TTL hits the fast path.
	if h.cache != nil {
		if err := h.cache.SetCachedTop(ctx, query.Limit, entries, h.cacheTTL); err != nil {
			h.log.Warn("leaderboard cache write failed", logger.Err(err))
		}
	}

	return h.buildResult(ctx, entries, false), nil
}

// tryCache attempts a fast-path read. Any failure falls through to the
// repository.
func (h *GetLeaderboardHandler) tryCache(ctx context.Context, limit int) ([]*leaderboard.Entry, bool) {
	if h.cache == nil {
		return nil, false
	}

	entries, err := h.cache.GetCachedTop(ctx, limit)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.log.Warn("leaderboard cache read failed", logger.Err(err))
		}
		return nil, false
	}
	return entries, true
}

// buildResult assembles the response DTO.
func (h *GetLeaderboardHandler) buildResult(ctx context.Context, entries []*leaderboard.Entry, fromCache bool) *GetLeaderboardResult {
	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LeaderboardEntryDTO{
			Rank:        e.Rank.Int(),
			UserID:      e.UserID.String(),
			Handle:      e.Handle,
			DisplayName: e.DisplayName,
			XP:          int(e.XP),
			Level:       e.Level.Int(),
			LevelTitle:  e.Level.Title(),
		}
	}

	total := len(entries)
	if count, err := h.repo.Count(ctx); err == nil {
		total = count
	}

	return &GetLeaderboardResult{
		Entries:     dtos,
		TotalCount:  total,
		FromCache:   fromCache,
		GeneratedAt: time.Now().UTC(),
	}
}
