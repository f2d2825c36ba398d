package app

import "time"

// calendarDate formats t as a calendar day in loc, the unit the streak and
// daily-challenge logic operate on.
func calendarDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// weekStart returns Monday 00:00 of t's week in loc, the fixed weekly
// leaderboard boundary. Crossing it silently starts a fresh weekly sum; no
// reset mutation exists anywhere.
func weekStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	year, month, day := local.AddDate(0, 0, -daysSinceMonday).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
