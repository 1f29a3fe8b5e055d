// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique platform user identifier (UUID format).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// AchievementID represents a stable symbolic achievement key.
type AchievementID string

// Achievement ID format: lowercase words joined by underscores (e.g., "scout_10").
var achievementIDRegex = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)

// IsValid checks if the achievement ID format is valid.
func (a AchievementID) IsValid() bool {
	s := string(a)
	return len(s) >= 3 && len(s) <= 50 && achievementIDRegex.MatchString(s)
}

// String returns the string representation.
func (a AchievementID) String() string {
	return string(a)
}

// NewAchievementID creates a new AchievementID with validation.
func NewAchievementID(id string) (AchievementID, error) {
	aid := AchievementID(strings.ToLower(strings.TrimSpace(id)))
	if !aid.IsValid() {
		return "", NewDomainError("shared", "NewAchievementID", ErrInvalidID, "invalid achievement ID format")
	}
	return aid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents accumulated experience points.
type XP int

// MinXP is the floor for any experience total.
const MinXP XP = 0

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, floored at MinXP.
func (x XP) Add(amount int) XP {
	result := XP(int(x) + amount)
	if result < MinXP {
		return MinXP
	}
	return result
}

// Level calculates the level for this experience total.
// Level n requires exactly 100*n XP to complete, so the cumulative cost of
// finishing level n is the triangular number 100*n*(n+1)/2. A user with 0 XP
// is level 1, not level 0.
func (x XP) Level() Level {
	if x <= 0 {
		return 1
	}
	level := 1
	totalRequired := 0
	for totalRequired+100*level <= int(x) {
		totalRequired += 100 * level
		level++
	}
	return Level(level)
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a user's level. Levels start at 1 and are unbounded.
type Level int

// MinLevel is the level of a brand-new user.
const MinLevel Level = 1

// IsValid checks if the level is within valid range.
func (l Level) IsValid() bool {
	return l >= MinLevel
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the XP needed to complete this level.
func (l Level) RequiredXP() int {
	if l < MinLevel {
		return 0
	}
	return 100 * int(l)
}

// BaseXP returns the total XP at which this level begins.
func (l Level) BaseXP() int {
	if l <= MinLevel {
		return 0
	}
	n := int(l) - 1
	return 100 * n * (n + 1) / 2
}

// Title returns a human-readable title for the level.
func (l Level) Title() string {
	switch {
	case l < 3:
		return "Newcomer"
	case l < 6:
		return "Explorer"
	case l < 10:
		return "Curator"
	case l < 15:
		return "Tastemaker"
	default:
		return "Legend"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object (leaderboard position)
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a user's position in the leaderboard.
type Rank int

const (
	MinRank  Rank = 1
	Unranked Rank = 0 // Not yet ranked
)

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= MinRank
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked checks if the user is not yet ranked.
func (r Rank) IsUnranked() bool {
	return r == Unranked
}

// IsTop returns true if the rank is in the top N.
func (r Rank) IsTop(n int) bool {
	return r.IsValid() && int(r) <= n
}

// NewRank creates a new Rank with validation.
func NewRank(position int) (Rank, error) {
	if position < 0 {
		return Unranked, NewDomainError("shared", "NewRank", ErrNegativeValue, "rank cannot be negative")
	}
	return Rank(position), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role represents a user's account category. Staff accounts are excluded
// from achievement evaluation by policy.
type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
)

// IsStaff reports whether the role belongs to an administrative account.
func (r Role) IsStaff() bool {
	return r == RoleStaff
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// LastNDays returns a TimeRange for the last N days.
func LastNDays(n int) TimeRange {
	now := time.Now()
	return TimeRange{
		From: now.AddDate(0, 0, -n),
		To:   now,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// SourceRef builds the unique source reference for an achievement's
// experience grant, so a retried grant can detect "already applied."
func SourceRef(userID UserID, achievementID AchievementID) string {
	return fmt.Sprintf("achievement:%s:%s", userID, achievementID)
}
