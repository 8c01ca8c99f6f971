package schedule

import "time"

// LocalWeekday returns the weekday of t as read on a wall clock in loc,
// numbered 0=Sunday through 6=Saturday.
func LocalWeekday(t time.Time, loc *time.Location) int {
	return int(t.In(loc).Weekday())
}

// LocalMinuteOfDay returns the minute of the local day for t in loc,
// e.g. 09:30 -> 570.
func LocalMinuteOfDay(t time.Time, loc *time.Location) int {
	lt := t.In(loc)
	return lt.Hour()*60 + lt.Minute()
}

// LocalDay returns the local calendar date of t in loc, truncated to
// midnight in that zone. Used as the lock key granularity.
func LocalDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// CrossesLocalDayBoundary reports whether the local calendar date of start
// differs from that of end in loc. An interval ending exactly at local
// midnight still counts as crossing, since its end reads as the next date.
func CrossesLocalDayBoundary(start, end time.Time, loc *time.Location) bool {
	ls := start.In(loc)
	le := end.In(loc)
	sy, sm, sd := ls.Date()
	ey, em, ed := le.Date()
	return sy != ey || sm != em || sd != ed
}

// Overlaps is the half-open interval test used everywhere in this package.
// [s1, e1) and [s2, e2) overlap iff s1 < e2 && s2 < e1.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}
