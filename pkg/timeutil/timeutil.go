package timeutil

import "time"

// Civil-day and accounting-week math in the deployment's governing timezone.
// Everything here is pure: callers inject the instants, so deadline logic is
// testable without the wall clock.

// DayBounds returns the half-open [start, end) bounds of the civil day
// containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// CivilDay returns the calendar day of t in loc as YYYY-MM-DD.
func CivilDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// WeekCutoff returns the accounting-week deadline for t: the upcoming
// Saturday at 23:59:59.999 in loc. An instant already on a Saturday rolls to
// the following week's Saturday.
func WeekCutoff(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	days := 6 - int(lt.Weekday())
	if lt.Weekday() == time.Saturday {
		days = 7
	}
	d := lt.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
}

// WithinReversalWindow reports whether an event created at createdAt may
// still be compensated at instant now: now must be on or before the
// accounting-week cutoff of the event's creation instant.
func WithinReversalWindow(now, createdAt time.Time, loc *time.Location) bool {
	return !now.In(loc).After(WeekCutoff(createdAt, loc))
}
