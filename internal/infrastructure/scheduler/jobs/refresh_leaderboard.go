package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH LEADERBOARD JOB
// ══════════════════════════════════════════════════════════════════════════════

// RefreshLeaderboardJob recomputes the hot top-N leaderboard slices ahead of
// demand so most reads hit the cache. The cache stays advisory: a failed
// refresh only means readers pay the repository query themselves.
type RefreshLeaderboardJob struct {
	repo   leaderboard.Repository
	cache  leaderboard.Cache
	events shared.EventPublisher
	log    *logger.Logger

	config RefreshLeaderboardConfig
}

// RefreshLeaderboardConfig contains configuration for the refresh job.
type RefreshLeaderboardConfig struct {
	// Limits are the top-N sizes to precompute.
	Limits []int

	// CacheTTL is the TTL for refreshed slices.
	CacheTTL time.Duration

	// Timeout is the maximum duration for one refresh cycle.
	Timeout time.Duration
}

// DefaultRefreshLeaderboardConfig returns sensible defaults.
func DefaultRefreshLeaderboardConfig() RefreshLeaderboardConfig {
	return RefreshLeaderboardConfig{
		Limits:   []int{10, 25, 100},
		CacheTTL: 5 * time.Minute,
		Timeout:  time.Minute,
	}
}

// NewRefreshLeaderboardJob creates a new RefreshLeaderboardJob.
func NewRefreshLeaderboardJob(
	repo leaderboard.Repository,
	cache leaderboard.Cache,
	events shared.EventPublisher,
	log *logger.Logger,
	config RefreshLeaderboardConfig,
) *RefreshLeaderboardJob {
	if len(config.Limits) == 0 {
		config.Limits = DefaultRefreshLeaderboardConfig().Limits
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultRefreshLeaderboardConfig().CacheTTL
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshLeaderboardConfig().Timeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &RefreshLeaderboardJob{
		repo:   repo,
		cache:  cache,
		events: events,
		log:    log.With(logger.Component("refresh_leaderboard")),
		config: config,
	}
}

// Name implements scheduler.Job.
func (j *RefreshLeaderboardJob) Name() string {
	return "refresh_leaderboard"
}

// Description implements scheduler.Job.
func (j *RefreshLeaderboardJob) Description() string {
	return "precomputes hot top-N leaderboard slices into the cache"
}

// Run implements scheduler.Job.
func (j *RefreshLeaderboardJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var errs []error
	for _, limit := range j.config.Limits {
		if ctx.Err() != nil {
			break
		}

		entries, err := j.repo.Top(ctx, limit)
		if err != nil {
			errs = append(errs, fmt.Errorf("top %d: %w", limit, err))
			continue
		}

		if err := j.cache.SetCachedTop(ctx, limit, entries, j.config.CacheTTL); err != nil {
			errs = append(errs, fmt.Errorf("cache top %d: %w", limit, err))
			continue
		}

		j.log.Debug("leaderboard slice refreshed",
			logger.Int("limit", limit),
			logger.Int("entries", len(entries)),
		)
	}

	if len(errs) == 0 && j.events != nil {
		event := shared.NewLeaderboardRefreshedEvent(len(j.config.Limits))
		if err := j.events.Publish(event); err != nil {
			j.log.Warn("refresh event publish failed", logger.Err(err))
		}
	}

	return errors.Join(errs...)
}
