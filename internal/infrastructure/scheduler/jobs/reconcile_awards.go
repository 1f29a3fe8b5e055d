// Package jobs contains implementations of scheduled jobs for Questlog Hub.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
	"github.com/questlog-gg/questlog-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AWARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileAwardsJob closes the gap a partial grant leaves behind: the award
// row exists but its experience was never applied. Each cycle re-grants the
// owed experience using the award's source reference, so a sweep that races
// a concurrent retry of the same award still applies it exactly once.
type ReconcileAwardsJob struct {
	ledger     achievement.AwardLedger
	experience achievement.ExperienceLedger
	events     shared.EventPublisher
	log        *logger.Logger

	config ReconcileAwardsConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileAwardsConfig contains configuration for the reconcile job.
type ReconcileAwardsConfig struct {
	// BatchSize is the maximum number of unapplied awards per cycle.
	BatchSize int

	// Timeout is the maximum duration for one sweep cycle.
	Timeout time.Duration
}

// DefaultReconcileAwardsConfig returns sensible defaults.
func DefaultReconcileAwardsConfig() ReconcileAwardsConfig {
	return ReconcileAwardsConfig{
		BatchSize: 100,
		Timeout:   time.Minute,
	}
}

// ReconcileStats summarizes one sweep cycle.
type ReconcileStats struct {
	Scanned   int
	Applied   int
	AlreadyOK int
	Failed    int
	StartedAt time.Time
	Duration  time.Duration
}

// NewReconcileAwardsJob creates a new ReconcileAwardsJob.
func NewReconcileAwardsJob(
	ledger achievement.AwardLedger,
	experience achievement.ExperienceLedger,
	events shared.EventPublisher,
	log *logger.Logger,
	config ReconcileAwardsConfig,
) *ReconcileAwardsJob {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultReconcileAwardsConfig().BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultReconcileAwardsConfig().Timeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &ReconcileAwardsJob{
		ledger:     ledger,
		experience: experience,
		events:     events,
		log:        log.With(logger.Component("reconcile_awards")),
		config:     config,
	}
}

// Name implements scheduler.Job.
func (j *ReconcileAwardsJob) Name() string {
	return "reconcile_awards"
}

// Description implements scheduler.Job.
func (j *ReconcileAwardsJob) Description() string {
	return "applies experience grants still owed by partially completed awards"
}

// Run implements scheduler.Job.
func (j *ReconcileAwardsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	stats := ReconcileStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(&stats)
	}()

	pending, err := retry.DoWithData(ctx, func(ctx context.Context) ([]achievement.AwardRecord, error) {
		records, err := j.ledger.ListUnapplied(ctx, j.config.BatchSize)
		if err != nil {
			return nil, retry.Retryable(err)
		}
		return records, nil
	}, retry.WithMaxAttempts(2), retry.WithInitialDelay(200*time.Millisecond))
	if err != nil {
		return fmt.Errorf("list unapplied awards: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	j.log.Info("reconciliation sweep started",
		logger.Int("pending", len(pending)),
	)

	var errs []error
	for _, record := range pending {
		if ctx.Err() != nil {
			break
		}

		stats.Scanned++
		if err := j.reconcileOne(ctx, record); err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("%s/%s: %w", record.UserID, record.AchievementID, err))
			continue
		}
		stats.Applied++
	}

	j.log.Info("reconciliation sweep finished",
		logger.Int("scanned", stats.Scanned),
		logger.Int("applied", stats.Applied),
		logger.Int("failed", stats.Failed),
	)

	return errors.Join(errs...)
}

// reconcileOne re-grants experience for one award and marks it applied.
func (j *ReconcileAwardsJob) reconcileOne(ctx context.Context, record achievement.AwardRecord) error {
	if record.XPGranted > 0 {
		_, err := j.experience.Grant(ctx, record.UserID, record.XPGranted, record.SourceRef())
		switch {
		case err == nil:
			// Applied now.
		case errors.Is(err, shared.ErrAlreadyProcessed):
			// The original grant landed but the flag flip was lost.
		default:
			return fmt.Errorf("grant experience: %w", err)
		}
	}

	if err := j.ledger.MarkExperienceApplied(ctx, record.UserID, record.AchievementID); err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}

	if j.events != nil {
		event := shared.NewGrantReconciledEvent(
			record.UserID.String(),
			record.AchievementID.String(),
			record.XPGranted,
		)
		if err := j.events.Publish(event); err != nil {
			j.log.Warn("reconcile event publish failed",
				logger.UserID(record.UserID.String()),
				logger.Err(err),
			)
		}
	}

	j.log.Info("award reconciled",
		logger.UserID(record.UserID.String()),
		logger.AchievementID(record.AchievementID.String()),
		logger.XPAmount(record.XPGranted),
	)
	return nil
}

// LastStats returns stats from the most recent sweep, or nil before the
// first run.
func (j *ReconcileAwardsJob) LastStats() *ReconcileStats {
	v := j.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*ReconcileStats)
}
