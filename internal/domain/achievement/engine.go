package achievement

import (
	"context"
	"errors"
	"time"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
	"github.com/questlog-gg/questlog-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT ENGINE
// Flow per achievement: Policy Exclusion → Ledger-Authoritative Skip →
//
//	Evaluate Rule → Record Award → Grant XP → Update Cache → Notify → Publish
//
// Each achievement's sequence is independent: a store failure aborts that one
// achievement and the sweep continues. The ledger row is the durable truth;
// nothing after it is rolled back.
// ══════════════════════════════════════════════════════════════════════════════

// Engine orchestrates eligibility evaluation, idempotent awarding, experience
// granting, and cache/ledger reconciliation.
type Engine struct {
	catalog    *Catalog
	ledger     AwardLedger
	cache      FastPathCache
	snapshots  SnapshotProvider
	experience ExperienceLedger
	notifier   Notifier
	events     shared.EventPublisher
	log        *logger.Logger
}

// NewEngine creates an engine with all dependencies. The notifier and event
// publisher may be nil; everything else is required.
func NewEngine(
	catalog *Catalog,
	ledger AwardLedger,
	cache FastPathCache,
	snapshots SnapshotProvider,
	experience ExperienceLedger,
	notifier Notifier,
	events shared.EventPublisher,
	log *logger.Logger,
) *Engine {
	if log == nil {
		log = logger.Default()
	}
	return &Engine{
		catalog:    catalog,
		ledger:     ledger,
		cache:      cache,
		snapshots:  snapshots,
		experience: experience,
		notifier:   notifier,
		events:     events,
		log:        log.With(logger.Component("achievement_engine")),
	}
}

// Catalog returns the engine's achievement catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// ══════════════════════════════════════════════════════════════════════════════
// READ PATH
// ══════════════════════════════════════════════════════════════════════════════

// CurrentAchievements returns the user's achievement set. The cache's view is
// used when present; on a miss the set is rebuilt from the ledger and the
// cache repopulated (read-repair).
//
// Rank-based achievements are the one documented exception to "reads have no
// side effects": their eligibility is a fixed historical fact granted lazily
// on first observation, so they are recomputed on every call even when the
// cache is warm, and an eligible-but-unawarded one is granted right here
// through the same idempotent award sequence as EvaluateAndAward.
func (e *Engine) CurrentAchievements(ctx context.Context, userID shared.UserID) ([]shared.AchievementID, error) {
	if userID.IsEmpty() {
		return nil, shared.NewDomainError("achievement", "CurrentAchievements", shared.ErrInvalidID, "user ID is required")
	}

	known, fromCache, err := e.knownSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !fromCache {
		ids := setToOrdered(e.catalog, known)
		if cacheErr := e.cache.SetKnown(ctx, userID, ids); cacheErr != nil {
			// Advisory store only; never fail the read over it.
			e.log.Warn("cache repopulation failed",
				logger.UserID(userID.String()), logger.Err(cacheErr))
		}
	}

	if err := e.lazyRankAwards(ctx, userID, known); err != nil {
		// Lazy awards are best-effort on the read path. The next
		// evaluation or read retries them.
		e.log.Warn("lazy rank award pass failed",
			logger.UserID(userID.String()), logger.Err(err))
	}

	return setToOrdered(e.catalog, known), nil
}

// knownSet returns the user's achievement set and whether it came from the
// cache. Cache unavailability is absorbed; ledger unavailability is not.
func (e *Engine) knownSet(ctx context.Context, userID shared.UserID) (map[shared.AchievementID]bool, bool, error) {
	known := make(map[shared.AchievementID]bool)

	cached, err := e.cache.GetKnown(ctx, userID)
	if err == nil {
		for _, id := range cached {
			known[id] = true
		}
		return known, true, nil
	}
	if !shared.IsNotFound(err) {
		e.log.Warn("cache read failed, falling back to ledger",
			logger.UserID(userID.String()), logger.Err(err))
	}

	records, err := e.ledger.ListAwards(ctx, userID)
	if err != nil {
		return nil, false, shared.WrapError("achievement", "CurrentAchievements",
			shared.ErrStoreUnavailable, "award ledger read failed", err)
	}
	for _, rec := range records {
		known[rec.AchievementID] = true
	}
	return known, false, nil
}

// lazyRankAwards grants any eligible rank-based achievements the user does
// not hold yet, mutating known in place with the results.
func (e *Engine) lazyRankAwards(ctx context.Context, userID shared.UserID, known map[shared.AchievementID]bool) error {
	var pending []Definition
	for _, def := range e.catalog.Definitions() {
		if def.Rule.IsRankBased() && !known[def.ID] {
			pending = append(pending, def)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	snapshot, err := e.snapshots.Snapshot(ctx, userID)
	if err != nil {
		return err
	}
	if snapshot.Role.IsStaff() {
		return nil
	}

	var errs []error
	for _, def := range pending {
		if !def.Rule.SatisfiedBy(snapshot) {
			continue
		}
		if _, err := e.awardOne(ctx, snapshot, def); err != nil {
			errs = append(errs, err)
			if !shared.IsPartialGrant(err) {
				continue
			}
		}
		// Granted or lost a race: either way the ledger row exists now.
		known[def.ID] = true
	}
	return errors.Join(errs...)
}

// LevelProgressFor reads the user's experience total and maps it onto the
// leveling curve.
func (e *Engine) LevelProgressFor(ctx context.Context, userID shared.UserID) (LevelProgress, error) {
	if userID.IsEmpty() {
		return LevelProgress{}, shared.NewDomainError("achievement", "LevelProgressFor", shared.ErrInvalidID, "user ID is required")
	}
	total, err := e.experience.Total(ctx, userID)
	if err != nil {
		return LevelProgress{}, shared.WrapError("achievement", "LevelProgressFor",
			shared.ErrStoreUnavailable, "experience ledger read failed", err)
	}
	return ComputeLevelProgress(total)
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE PATH
// ══════════════════════════════════════════════════════════════════════════════

// EvaluateAndAward sweeps every catalog definition for the user and awards
// the newly earned ones. Returns the ids granted by THIS call: an award lost
// to a concurrent evaluation is success-but-not-new and excluded.
//
// The returned error, if any, is a joined set of per-achievement failures;
// partial failure across the sweep is expected and safe, so newly granted
// ids are returned even alongside an error.
func (e *Engine) EvaluateAndAward(ctx context.Context, userID shared.UserID) ([]shared.AchievementID, error) {
	if userID.IsEmpty() {
		return nil, shared.NewDomainError("achievement", "EvaluateAndAward", shared.ErrInvalidID, "user ID is required")
	}

	snapshot, err := e.snapshots.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Administrative accounts never receive achievements. A policy
	// exclusion, not an eligibility rule.
	if snapshot.Role.IsStaff() {
		return []shared.AchievementID{}, nil
	}

	var (
		granted []shared.AchievementID
		errs    []error
	)
	for _, def := range e.catalog.Definitions() {
		if ctx.Err() != nil {
			// Mid-sweep cancellation leaves the rest unevaluated for
			// the next trigger; nothing partial needs compensating.
			errs = append(errs, ctx.Err())
			break
		}

		// Ledger-authoritative skip, regardless of what the cache
		// claims in either direction.
		awarded, err := e.ledger.HasEverBeenAwarded(ctx, userID, def.ID)
		if err != nil {
			errs = append(errs, shared.WrapError("achievement", "EvaluateAndAward",
				shared.ErrStoreUnavailable, "ledger check failed for "+def.ID.String(), err))
			continue
		}
		if awarded {
			continue
		}

		if !def.Rule.SatisfiedBy(snapshot) {
			continue
		}

		isNew, err := e.awardOne(ctx, snapshot, def)
		if err != nil {
			errs = append(errs, err)
			if !shared.IsPartialGrant(err) {
				continue
			}
			// Partial grant: the award stands, only a follow-up step
			// failed. Still counts as newly granted.
		}
		if isNew {
			granted = append(granted, def.ID)
		}
	}

	return granted, errors.Join(errs...)
}

// awardOne runs the idempotent award sequence for a single achievement the
// user is eligible for. Returns whether this call recorded the award (false
// on a lost race) and a partial-grant error if a post-ledger step failed.
func (e *Engine) awardOne(ctx context.Context, snapshot *ActivitySnapshot, def Definition) (bool, error) {
	userID := snapshot.UserID
	record := AwardRecord{
		UserID:        userID,
		AchievementID: def.ID,
		GrantedAt:     time.Now().UTC(),
		XPGranted:     def.XPReward,
	}

	saved, err := e.ledger.RecordAward(ctx, record)
	if shared.IsAlreadyExists(err) {
		// Lost the race to a concurrent evaluation. Exactly one record
		// exists either way; no experience, no notification, not new.
		e.log.Debug("award race lost",
			logger.UserID(userID.String()), logger.AchievementID(def.ID.String()))
		return false, nil
	}
	if err != nil {
		return false, shared.WrapError("achievement", "RecordAward",
			shared.ErrStoreUnavailable, "award insert failed for "+def.ID.String(), err)
	}

	var partial []error

	if err := e.grantExperience(ctx, saved, def); err != nil {
		partial = append(partial, err)
	}

	if err := e.cache.AddKnown(ctx, userID, def.ID); err != nil {
		// Advisory only; the ledger already holds the truth.
		e.log.Warn("cache update after award failed",
			logger.UserID(userID.String()), logger.AchievementID(def.ID.String()), logger.Err(err))
	}

	if e.notifier != nil {
		if err := e.notifier.AchievementEarned(ctx, userID, def); err != nil {
			partial = append(partial, shared.WrapError("achievement", "Notify",
				shared.ErrPartialGrant, "notification failed for "+def.ID.String(), err))
		}
	}

	if e.events != nil {
		event := shared.NewAchievementEarnedEvent(userID.String(), def.ID.String(), def.DisplayName, def.XPReward)
		if err := e.events.Publish(event); err != nil {
			e.log.Warn("event publish failed",
				logger.AchievementID(def.ID.String()), logger.Err(err))
		}
	}

	e.log.Info("achievement granted",
		logger.UserID(userID.String()),
		logger.AchievementID(def.ID.String()),
		logger.XPAmount(def.XPReward))

	return true, errors.Join(partial...)
}

// grantExperience applies the award's experience reward exactly once and
// marks it applied in the ledger. A retry that finds the grant already
// applied is treated as success.
func (e *Engine) grantExperience(ctx context.Context, record *AwardRecord, def Definition) error {
	if def.XPReward == 0 {
		return e.markApplied(ctx, record)
	}

	newTotal, err := e.experience.Grant(ctx, record.UserID, def.XPReward, record.SourceRef())
	if errors.Is(err, shared.ErrAlreadyProcessed) {
		return e.markApplied(ctx, record)
	}
	if err != nil {
		// The ledger row stands; the reconciliation sweep owes the user
		// this experience.
		return shared.WrapError("achievement", "GrantExperience",
			shared.ErrPartialGrant, "experience grant failed for "+def.ID.String(), err)
	}

	if e.events != nil {
		oldTotal := newTotal - def.XPReward
		e.publishExperienceEvents(record.UserID, def.XPReward, oldTotal, newTotal, record.SourceRef())
	}

	return e.markApplied(ctx, record)
}

// markApplied flips the experience-applied flag. A failure here is reported
// as partial so reconciliation re-checks the grant, which is idempotent.
func (e *Engine) markApplied(ctx context.Context, record *AwardRecord) error {
	if err := e.ledger.MarkExperienceApplied(ctx, record.UserID, record.AchievementID); err != nil {
		return shared.WrapError("achievement", "MarkExperienceApplied",
			shared.ErrPartialGrant, "could not mark grant applied for "+record.AchievementID.String(), err)
	}
	return nil
}

// publishExperienceEvents emits the XP-gained event plus a level-up event
// when the grant crossed a level boundary.
func (e *Engine) publishExperienceEvents(userID shared.UserID, amount, oldTotal, newTotal int, sourceRef string) {
	if err := e.events.Publish(shared.NewXPGainedEvent(userID.String(), amount, newTotal, sourceRef)); err != nil {
		e.log.Warn("xp event publish failed", logger.UserID(userID.String()), logger.Err(err))
		return
	}

	oldLevel := shared.XP(oldTotal).Level()
	newLevel := shared.XP(newTotal).Level()
	if newLevel > oldLevel {
		if err := e.events.Publish(shared.NewLevelUpEvent(userID.String(), oldLevel.Int(), newLevel.Int())); err != nil {
			e.log.Warn("level-up event publish failed", logger.UserID(userID.String()), logger.Err(err))
		}
	}
}

// setToOrdered renders an id set as a slice in catalog order, so repeated
// reads with unchanged data return identical sequences.
func setToOrdered(catalog *Catalog, known map[shared.AchievementID]bool) []shared.AchievementID {
	out := make([]shared.AchievementID, 0, len(known))
	for _, def := range catalog.Definitions() {
		if known[def.ID] {
			out = append(out, def.ID)
		}
	}
	return out
}
