package util

import "time"

// DayWindow returns the half-open window [midnight, midnight+24h) in UTC for
// the day containing t.
func DayWindow(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// PreviousDayWindow returns the window for the day before t. Settlement
// cycles typically settle yesterday's captures.
func PreviousDayWindow(t time.Time) (time.Time, time.Time) {
	return DayWindow(t.AddDate(0, 0, -1))
}

// InWindow reports whether t falls in the half-open window [start, end).
func InWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
