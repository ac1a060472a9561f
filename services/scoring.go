package services

import "math"

// BaseXPPerLevel anchors the quadratic level curve: reaching level L+1 takes
// L^2 * BaseXPPerLevel total XP.
const BaseXPPerLevel = 100

// DefaultPassThreshold is the inclusive minimum passing score.
const DefaultPassThreshold = 70.0

// XPAwarded returns the proportional reward for a score on a challenge worth
// challengeXP. Rounds to nearest, ties away from zero: XPAwarded(100, 33.333)
// is 33, XPAwarded(100, 0.5) is 1.
// Inputs are assumed validated by the caller (challengeXP >= 1, score in 0–100).
func XPAwarded(challengeXP int64, score float64) int64 {
	return int64(math.Round(float64(challengeXP) * score / 100))
}

// LevelFromXP derives a level from cumulative XP:
//
//	level = floor(sqrt(total_xp / 100)) + 1
//
// Monotonic non-decreasing in totalXP; never below 1.
func LevelFromXP(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	level := int(math.Sqrt(float64(totalXP)/BaseXPPerLevel)) + 1
	// Nudge off float error at the exact thresholds so the round-trip with
	// NextLevelXP holds for every level.
	for NextLevelXP(level) <= totalXP {
		level++
	}
	for level > 1 && NextLevelXP(level-1) > totalXP {
		level--
	}
	return level
}

// NextLevelXP is the inverse of the level curve: the total XP at which a user
// of the given level reaches level+1.
func NextLevelXP(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(level) * int64(level) * BaseXPPerLevel
}

// IsPassing reports whether score meets the threshold (inclusive).
func IsPassing(score, threshold float64) bool {
	return score >= threshold
}
