package achievement

import (
	"math"

	"github.com/questlog-gg/questlog-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVELING CALCULATOR
// ══════════════════════════════════════════════════════════════════════════════

// LevelProgress is the derived view of a user's position within the leveling
// curve. It is recomputed on demand from the experience total and never
// stored, so it cannot go stale.
type LevelProgress struct {
	Level                  shared.Level
	CurrentXPInLevel       int
	RequiredXPForLevel     int
	RemainingXPToNextLevel int
}

// ComputeLevelProgress maps an experience total to a level and in-level
// progress. Level n requires exactly 100*n XP to complete, so the cumulative
// cost of finishing level n is the triangular number 100*n*(n+1)/2. A user
// with 0 XP is level 1 with 0/100 progress.
//
// The level is found in closed form from the quadratic root of the
// triangular sum, with an integer correction step so the result agrees
// exactly with iterative accumulation for every non-negative total.
func ComputeLevelProgress(totalXP int) (LevelProgress, error) {
	if totalXP < 0 {
		return LevelProgress{}, shared.ErrNegativeExperience
	}

	level := levelForTotal(totalXP)
	base := level.BaseXP()
	required := level.RequiredXP()
	inLevel := totalXP - base

	return LevelProgress{
		Level:                  level,
		CurrentXPInLevel:       inLevel,
		RequiredXPForLevel:     required,
		RemainingXPToNextLevel: required - inLevel,
	}, nil
}

// levelForTotal returns the greatest n such that the cumulative cost of
// finishing level n-1 does not exceed totalXP.
//
// 100*k*(k+1)/2 <= x solves to k <= (sqrt(25 + 2x) - 5) / 10. The float
// root is then nudged to the exact integer boundary, since sqrt can land a
// hair on either side of a perfect square.
func levelForTotal(totalXP int) shared.Level {
	if totalXP <= 0 {
		return shared.MinLevel
	}

	k := (int(math.Sqrt(float64(25+2*totalXP))) - 5) / 10
	for cumulative(k+1) <= totalXP {
		k++
	}
	for k > 0 && cumulative(k) > totalXP {
		k--
	}
	return shared.Level(k + 1)
}

// cumulative returns the total XP needed to finish level n.
func cumulative(n int) int {
	if n <= 0 {
		return 0
	}
	return 100 * n * (n + 1) / 2
}
