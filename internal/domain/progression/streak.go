package progression

import (
	"fmt"

	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// StreakChange classifies what a touch did to the streak.
type StreakChange int

const (
	// StreakUnchanged means the user was already active today.
	StreakUnchanged StreakChange = iota
	// StreakExtended means yesterday was active and the count went up.
	StreakExtended
	// StreakStarted means the streak (re)started at 1.
	StreakStarted
)

// String returns a short name for logs.
func (c StreakChange) String() string {
	switch c {
	case StreakExtended:
		return "extended"
	case StreakStarted:
		return "started"
	default:
		return "unchanged"
	}
}

// TouchActivity records a qualifying activity on today. Repeated calls on the
// same day are no-ops.
func (e *Engine) TouchActivity(u UserProgression, today timeutil.Date) UserProgression {
	next, _ := e.RecordActivity(u, today)
	return next
}

// RecordActivity is TouchActivity that also reports how the streak moved.
func (e *Engine) RecordActivity(u UserProgression, today timeutil.Date) (UserProgression, StreakChange) {
	last := u.LastActivityDate
	next := u

	switch {
	case !last.IsZero() && last == today:
		return u, StreakUnchanged
	case !last.IsZero() && last.AddDays(1) == today:
		next.StreakDays = u.StreakDays + 1
		next.LastActivityDate = today
		return next, StreakExtended
	default:
		// First activity, a gap of two or more days, or a last date in the
		// future (clock skew) all restart the streak.
		next.StreakDays = 1
		next.LastActivityDate = today
		return next, StreakStarted
	}
}

// EffectiveStreak returns the streak as it stands on today: the stored count
// while the last activity was today or yesterday, otherwise 0.
func EffectiveStreak(u UserProgression, today timeutil.Date) int {
	last := u.LastActivityDate
	if last.IsZero() {
		return 0
	}
	if last == today || last.AddDays(1) == today {
		return u.StreakDays
	}
	return 0
}

// StreakLabel renders a streak count for display.
func StreakLabel(days int) string {
	switch {
	case days <= 0:
		return "Start your streak!"
	case days == 1:
		return "1 day streak"
	default:
		return fmt.Sprintf("%d day streak", days)
	}
}
