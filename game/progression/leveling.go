// Package progression holds the pure quest-progression math: the
// leveling calculator and the recurrence planner. No storage, no clocks
// beyond the recurrence fallback to time.Now.
package progression

// XPToNext is the XP required to advance from level to level+1.
// Linear growth: 100 at level 1, +50 per level after that.
func XPToNext(level int) int {
	return 100 + (level-1)*50
}

// Advance applies earned XP to (level, xp) and cascades level-ups while
// the pool covers the next threshold. earned=0 is a no-op. Terminates
// because the threshold is positive and strictly increasing.
func Advance(level, xp, earned int) (int, int) {
	xp += earned
	for xp >= XPToNext(level) {
		xp -= XPToNext(level)
		level++
	}
	return level, xp
}
