// Package postgres implements the PostgreSQL persistence layer for Questlog Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/questlog-gg/questlog-hub/internal/domain/achievement"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AwardLedgerRepository implements achievement.AwardLedger on the
// award_ledger table. The table's UNIQUE(user_id, achievement_id) constraint
// is the mechanism behind the at-most-once guarantee; this repository only
// translates the unique_violation into shared.ErrAlreadyExists.
type AwardLedgerRepository struct {
	conn *Connection
}

// NewAwardLedgerRepository creates a new AwardLedgerRepository.
func NewAwardLedgerRepository(conn *Connection) *AwardLedgerRepository {
	return &AwardLedgerRepository{conn: conn}
}

// HasEverBeenAwarded reports whether an award row exists for the pair.
func (r *AwardLedgerRepository) HasEverBeenAwarded(ctx context.Context, userID shared.UserID, achievementID shared.AchievementID) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM award_ledger
			WHERE user_id = $1 AND achievement_id = $2
		)
	`, userID.String(), achievementID.String()).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("ledger", "HasEverBeenAwarded",
			shared.ErrStoreUnavailable, "existence check failed", err)
	}
	return exists, nil
}

// RecordAward inserts the award row. Under concurrent inserts for the same
// pair exactly one caller succeeds; the rest get shared.ErrAlreadyExists.
func (r *AwardLedgerRepository) RecordAward(ctx context.Context, record achievement.AwardRecord) (*achievement.AwardRecord, error) {
	saved := record
	err := r.conn.QueryRow(ctx, `
		INSERT INTO award_ledger (user_id, achievement_id, xp_granted, xp_applied, granted_at)
		VALUES ($1, $2, $3, FALSE, $4)
		RETURNING granted_at
	`,
		record.UserID.String(),
		record.AchievementID.String(),
		record.XPGranted,
		record.GrantedAt,
	).Scan(&saved.GrantedAt)

	if IsUniqueViolation(err) {
		return nil, shared.ErrAwardExists
	}
	if err != nil {
		return nil, shared.WrapError("ledger", "RecordAward",
			shared.ErrStoreUnavailable, "award insert failed", err)
	}

	saved.XPApplied = false
	return &saved, nil
}

// ListAwards returns every award granted to the user, oldest first.
func (r *AwardLedgerRepository) ListAwards(ctx context.Context, userID shared.UserID) ([]achievement.AwardRecord, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, achievement_id, xp_granted, xp_applied, granted_at
		FROM award_ledger
		WHERE user_id = $1
		ORDER BY granted_at ASC, id ASC
	`, userID.String())
	if err != nil {
		return nil, shared.WrapError("ledger", "ListAwards",
			shared.ErrStoreUnavailable, "award query failed", err)
	}
	defer rows.Close()

	return scanAwardRecords(rows)
}

// MarkExperienceApplied flips the xp_applied flag. Idempotent; marking an
// already-applied award is a no-op.
func (r *AwardLedgerRepository) MarkExperienceApplied(ctx context.Context, userID shared.UserID, achievementID shared.AchievementID) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE award_ledger
		SET xp_applied = TRUE
		WHERE user_id = $1 AND achievement_id = $2
	`, userID.String(), achievementID.String())
	if err != nil {
		return shared.WrapError("ledger", "MarkExperienceApplied",
			shared.ErrStoreUnavailable, "flag update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("ledger", "MarkExperienceApplied",
			shared.ErrNotFound, fmt.Sprintf("no award for user %s achievement %s", userID, achievementID))
	}
	return nil
}

// ListUnapplied returns awards whose experience grant is still owed, oldest
// first, for the reconciliation sweep.
func (r *AwardLedgerRepository) ListUnapplied(ctx context.Context, limit int) ([]achievement.AwardRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, achievement_id, xp_granted, xp_applied, granted_at
		FROM award_ledger
		WHERE xp_applied = FALSE
		ORDER BY granted_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, shared.WrapError("ledger", "ListUnapplied",
			shared.ErrStoreUnavailable, "unapplied query failed", err)
	}
	defer rows.Close()

	return scanAwardRecords(rows)
}

// RecentAwards returns the newest awards across all users.
func (r *AwardLedgerRepository) RecentAwards(ctx context.Context, limit int) ([]achievement.AwardRecord, error) {
	if limit <= 0 {
		limit = shared.DefaultPageSize
	}
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, achievement_id, xp_granted, xp_applied, granted_at
		FROM award_ledger
		ORDER BY granted_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, shared.WrapError("ledger", "RecentAwards",
			shared.ErrStoreUnavailable, "recent awards query failed", err)
	}
	defer rows.Close()

	return scanAwardRecords(rows)
}

// scanAwardRecords reads award rows into domain records.
func scanAwardRecords(rows pgx.Rows) ([]achievement.AwardRecord, error) {
	var records []achievement.AwardRecord
	for rows.Next() {
		var (
			rec achievement.AwardRecord
			uid string
			aid string
		)
		if err := rows.Scan(&uid, &aid, &rec.XPGranted, &rec.XPApplied, &rec.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan award row: %w", err)
		}
		rec.UserID = shared.UserID(uid)
		rec.AchievementID = shared.AchievementID(aid)
		records = append(records, rec)
	}
	return records, rows.Err()
}
