// Package postgres implements the PostgreSQL persistence layer for Questlog Hub.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPERIENCE LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ExperienceLedgerRepository implements achievement.ExperienceLedger. Each
// grant bumps the user's running total and writes one xp_ledger audit row in
// a single transaction; the UNIQUE source_ref on the audit row makes the
// whole grant idempotent under retries.
type ExperienceLedgerRepository struct {
	conn *Connection
}

// NewExperienceLedgerRepository creates a new ExperienceLedgerRepository.
func NewExperienceLedgerRepository(conn *Connection) *ExperienceLedgerRepository {
	return &ExperienceLedgerRepository{conn: conn}
}

// Grant adds experience to the user's total and returns the new total. A
// repeat call with a sourceRef that was already applied rolls back and
// returns shared.ErrAlreadyProcessed, leaving the total untouched.
func (r *ExperienceLedgerRepository) Grant(ctx context.Context, userID shared.UserID, amount int, sourceRef string) (int, error) {
	if amount <= 0 {
		return 0, shared.NewDomainError("experience", "Grant",
			shared.ErrInvalidInput, "grant amount must be positive")
	}

	var newTotal int
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE users
			SET current_xp = current_xp + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING current_xp
		`, userID.String(), amount).Scan(&newTotal)
		if IsNoRows(err) {
			return shared.ErrUserNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO xp_ledger (user_id, amount, source_ref, total_after)
			VALUES ($1, $2, $3, $4)
		`, userID.String(), amount, sourceRef, newTotal)
		return err
	})

	if IsUniqueViolation(err) {
		return 0, shared.ErrGrantAlreadyApplied
	}
	if shared.IsNotFound(err) {
		return 0, err
	}
	if err != nil {
		return 0, shared.WrapError("experience", "Grant",
			shared.ErrStoreUnavailable, "grant transaction failed", err)
	}

	return newTotal, nil
}

// Total returns the user's current experience total.
func (r *ExperienceLedgerRepository) Total(ctx context.Context, userID shared.UserID) (int, error) {
	var total int
	err := r.conn.QueryRow(ctx, `
		SELECT current_xp FROM users WHERE id = $1
	`, userID.String()).Scan(&total)
	if IsNoRows(err) {
		return 0, shared.ErrUserNotFound
	}
	if err != nil {
		return 0, shared.WrapError("experience", "Total",
			shared.ErrStoreUnavailable, "total query failed", err)
	}
	return total, nil
}
