package dates

import "time"

const day = 24 * time.Hour

// AddMonths adds n calendar months to t, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28/29). time.AddDate would
// overflow into the following month instead.
func AddMonths(t time.Time, n int) time.Time {
	m := int(t.Month()) - 1 + n
	y := t.Year() + m/12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	month := time.Month(m + 1)
	d := t.Day()
	if last := daysIn(y, month, t.Location()); d > last {
		d = last
	}
	return time.Date(y, month, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// Span measures the gap from -> to as whole calendar months plus a
// remainder. For to before from both results are negative.
func Span(from, to time.Time) (months int, remainder time.Duration) {
	if to.Before(from) {
		m, r := Span(to, from)
		return -m, -r
	}
	months = (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	anchor := AddMonths(from, months)
	for to.Before(anchor) {
		months--
		anchor = AddMonths(from, months)
	}
	return months, to.Sub(anchor)
}

// RemainderDays returns the whole days contained in a Span remainder.
func RemainderDays(remainder time.Duration) int {
	return int(remainder / day)
}

// ExceedsWindow reports whether to is strictly more than window months after
// from. Exactly window months with no whole remaining day does not exceed.
func ExceedsWindow(from, to time.Time, window int) bool {
	months, rem := Span(from, to)
	if months != window {
		return months > window
	}
	return RemainderDays(rem) > 0
}
