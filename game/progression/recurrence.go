package progression

import (
	"time"

	"github.com/gamelive/server/model"
)

// NextDueAt computes the due timestamp for the successor of a repeating
// quest. The base instant is the previous due time when present, else now.
// Callers only invoke this for repeating kinds; an unknown kind returns
// the base unchanged.
//
// Monthly stepping uses AddDate(0, 1, 0), which normalizes day overflow
// the way the standard library does: Jan 31 + 1 month lands on Mar 2 or
// Mar 3 rather than clamping to the end of February.
func NextDueAt(prev *time.Time, repeatType string) time.Time {
	base := time.Now()
	if prev != nil {
		base = *prev
	}
	switch repeatType {
	case model.RepeatDaily:
		return base.AddDate(0, 0, 1)
	case model.RepeatWeekly:
		return base.AddDate(0, 0, 7)
	case model.RepeatMonthly:
		return base.AddDate(0, 1, 0)
	}
	return base
}
