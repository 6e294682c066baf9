package progress

import "time"

const dateLayout = "2006-01-02"

// NextStreak applies the daily streak rule: unchanged on a same-day repeat,
// incremented when the last activity was exactly yesterday, reset to 1 after
// a gap. It returns the new streak, the new last-active date, and whether
// anything changed (the date is written at most once per day).
func NextStreak(streakDays int, lastActiveDate string, now time.Time) (int, string, bool) {
	today := now.Format(dateLayout)
	if lastActiveDate == today {
		return streakDays, lastActiveDate, false
	}

	last, err := time.Parse(dateLayout, lastActiveDate)
	if err != nil {
		// Unparseable or empty previous date: start over.
		return 1, today, true
	}

	midnight, _ := time.Parse(dateLayout, today)
	days := int(midnight.Sub(last).Hours() / 24)
	if days == 1 {
		return streakDays + 1, today, true
	}
	return 1, today, true
}
