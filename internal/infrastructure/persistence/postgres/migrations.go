// Package postgres implements the PostgreSQL persistence layer for Questlog Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE USERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users and activity counter tables
-- Version: 001

-- Main users table. Activity counters live here so the achievement engine
-- can read one snapshot row per user.
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    handle VARCHAR(50) NOT NULL UNIQUE,
    display_name VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'member',
    find_count INTEGER NOT NULL DEFAULT 0,
    upvotes_given INTEGER NOT NULL DEFAULT 0,
    upvotes_received INTEGER NOT NULL DEFAULT 0,
    follows_given INTEGER NOT NULL DEFAULT 0,
    follows_received INTEGER NOT NULL DEFAULT 0,
    has_published_find BOOLEAN NOT NULL DEFAULT FALSE,
    current_xp INTEGER NOT NULL DEFAULT 0,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Constraints for data integrity
    CONSTRAINT valid_role CHECK (role IN ('member', 'staff')),
    CONSTRAINT valid_xp CHECK (current_xp >= 0),
    CONSTRAINT valid_counters CHECK (
        find_count >= 0 AND upvotes_given >= 0 AND upvotes_received >= 0
        AND follows_given >= 0 AND follows_received >= 0
    )
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_users_handle ON users(handle);
CREATE INDEX IF NOT EXISTS idx_users_joined_at ON users(joined_at);

-- Composite index for the leaderboard ordering: XP descending with the
-- deterministic tie-breaks (earlier join first, then id).
CREATE INDEX IF NOT EXISTS idx_users_leaderboard ON users(current_xp DESC, joined_at ASC, id ASC);
`

const migration001Down = `
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE AWARD LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create the append-only award ledger
-- Version: 002

-- One row per (user, achievement) ever granted. The UNIQUE constraint on the
-- pair is the at-most-once guarantee: concurrent inserts for the same pair
-- produce exactly one success and unique_violation for the losers. Rows are
-- never updated apart from xp_applied, and never deleted.
CREATE TABLE IF NOT EXISTS award_ledger (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id),
    achievement_id VARCHAR(50) NOT NULL,
    xp_granted INTEGER NOT NULL DEFAULT 0,
    xp_applied BOOLEAN NOT NULL DEFAULT FALSE,
    granted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp_granted CHECK (xp_granted >= 0),
    UNIQUE(user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_award_ledger_user_id ON award_ledger(user_id);
CREATE INDEX IF NOT EXISTS idx_award_ledger_granted_at ON award_ledger(granted_at DESC);

-- Partial index for the reconciliation sweep over unapplied grants.
CREATE INDEX IF NOT EXISTS idx_award_ledger_unapplied ON award_ledger(granted_at ASC) WHERE xp_applied = FALSE;
`

const migration002Down = `
DROP TABLE IF EXISTS award_ledger;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE XP LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create the experience grant audit trail
-- Version: 003

-- One row per applied experience grant. The UNIQUE source_ref makes grants
-- idempotent: a retry for the same award inserts nothing and the running
-- total is not bumped twice.
CREATE TABLE IF NOT EXISTS xp_ledger (
    id BIGSERIAL PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id),
    amount INTEGER NOT NULL,
    source_ref VARCHAR(150) NOT NULL UNIQUE,
    total_after INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_amount CHECK (amount > 0)
);

CREATE INDEX IF NOT EXISTS idx_xp_ledger_user_id ON xp_ledger(user_id);
CREATE INDEX IF NOT EXISTS idx_xp_ledger_created_at ON xp_ledger(created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS xp_ledger;
`
