// Package forecast contains the pure calculation engine behind the app:
// recurrence date arithmetic, month-end and year-end cash projections and
// the plain-language diagnosis built on top of them.
//
// Everything in this package is a stateless function over plain values.
// No I/O, no clocks, no shared state; identical input yields identical
// output, so callers may memoize or run these concurrently at will.
package forecast

import (
	"time"

	"bilancio/internal/core"
)

// NextDate computes the occurrence that follows anchor under the given
// pattern. The empty pattern defaults to monthly.
//
// fixedDay pins the day used on every occurrence; pass the template's
// original pinned day on every call, not the day of the previous (possibly
// clamped) occurrence. A value <= 0 carries the anchor's own day. When the
// target month is shorter than the requested day the result clamps to the
// last day of that month (Jan 31 -> Feb 28), and a later call with the same
// fixedDay re-expands (-> Mar 31). The returned date is always strictly
// after anchor and keeps the anchor's clock and location.
func NextDate(anchor time.Time, pattern core.Pattern, fixedDay int) time.Time {
	switch pattern.OrDefault() {
	case core.Weekly:
		// Always a full week, regardless of fixedDay.
		return anchor.AddDate(0, 0, 7)
	case core.Yearly:
		day := anchor.Day()
		if fixedDay > 0 {
			day = fixedDay
		}
		return dateWithClampedDay(anchor.Year()+1, anchor.Month(), day, anchor)
	default:
		day := anchor.Day()
		if fixedDay > 0 {
			day = fixedDay
		}
		year, month := anchor.Year(), anchor.Month()+1
		if month > time.December {
			month = time.January
			year++
		}
		return dateWithClampedDay(year, month, day, anchor)
	}
}

// dateWithClampedDay builds a date in year/month on the requested day,
// clamped to the month's length, carrying the clock fields of ref.
func dateWithClampedDay(year int, month time.Month, day int, ref time.Time) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	h, m, s := ref.Clock()
	return time.Date(year, month, day, h, m, s, ref.Nanosecond(), ref.Location())
}

// daysIn returns the number of days in the given month. Day zero of the
// following month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
