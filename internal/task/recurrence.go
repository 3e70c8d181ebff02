package task

import "time"

// NextDueDate computes the due date of the next instance in a recurring
// series. It is pure: no state, no clock. Callers guard RecurrenceNone.
//
// Monthly advances one calendar month keeping the day of month; when the
// target month is shorter, the day clamps to that month's last valid day
// (Jan 31 -> Feb 28, or Feb 29 in a leap year). Yearly keeps month and day,
// clamping Feb 29 to Feb 28 on non-leap targets. Clock time and location
// carry over from the anchor unchanged.
func NextDueDate(anchor time.Time, kind Recurrence) time.Time {
	switch kind {
	case RecurrenceDaily:
		return anchor.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		return anchor.AddDate(0, 0, 7)
	case RecurrenceMonthly:
		return addMonthsClamped(anchor, 1)
	case RecurrenceYearly:
		return addYearsClamped(anchor, 1)
	}
	return anchor
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	// Normalize year/month via the first of the target month, then clamp
	// the day so a short month never overflows into the one after it.
	first := time.Date(y, m+time.Month(months), 1, hh, mm, ss, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	if last := daysIn(y+years, m); d > last {
		d = last
	}
	return time.Date(y+years, m, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
