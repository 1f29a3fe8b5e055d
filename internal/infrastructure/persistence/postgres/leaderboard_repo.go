// Package postgres implements the PostgreSQL persistence layer for Questlog Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/questlog-gg/questlog-hub/internal/domain/leaderboard"
	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardRepository implements leaderboard.Repository over the users
// table. Ranks are assigned by row position in a single ordered query, so
// repeated queries with unchanged data return identical rankings.
type LeaderboardRepository struct {
	conn *Connection
}

// NewLeaderboardRepository creates a new LeaderboardRepository.
func NewLeaderboardRepository(conn *Connection) *LeaderboardRepository {
	return &LeaderboardRepository{conn: conn}
}

// Top returns the first n entries ordered by XP descending, earlier join
// time first on ties, then id as the final deterministic key.
func (r *LeaderboardRepository) Top(ctx context.Context, n int) ([]*leaderboard.Entry, error) {
	if err := leaderboard.ValidateLimit(n); err != nil {
		return nil, err
	}

	rows, err := r.conn.Query(ctx, `
		SELECT id, handle, display_name, current_xp, joined_at
		FROM users
		ORDER BY current_xp DESC, joined_at ASC, id ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, shared.WrapError("leaderboard", "Top",
			shared.ErrStoreUnavailable, "top query failed", err)
	}
	defer rows.Close()

	var entries []*leaderboard.Entry
	rank := 0
	for rows.Next() {
		var (
			entry leaderboard.Entry
			uid   string
			xp    int
		)
		if err := rows.Scan(&uid, &entry.Handle, &entry.DisplayName, &xp, &entry.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		rank++
		entry.UserID = shared.UserID(uid)
		entry.XP = shared.XP(xp)
		entry.Level = entry.XP.Level()
		entry.Rank = shared.Rank(rank)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// Count returns the total number of ranked users.
func (r *LeaderboardRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, shared.WrapError("leaderboard", "Count",
			shared.ErrStoreUnavailable, "count query failed", err)
	}
	return count, nil
}
