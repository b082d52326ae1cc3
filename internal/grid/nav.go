package grid

import (
	"fmt"
	"strings"
	"time"
)

// Nav is a month navigation action.
type Nav string

const (
	NavNone  Nav = ""
	NavPrev  Nav = "prev"
	NavNext  Nav = "next"
	NavToday Nav = "today"
)

// ParseNav accepts prev, next, today (any case) or the empty string.
func ParseNav(s string) (Nav, error) {
	switch n := Nav(strings.ToLower(strings.TrimSpace(s))); n {
	case NavNone, NavPrev, NavNext, NavToday:
		return n, nil
	default:
		return NavNone, fmt.Errorf("grid: unknown navigation %q", s)
	}
}

// Navigate applies nav to the reference date. NavNone returns ref as is.
func Navigate(ref time.Time, nav Nav, now time.Time) time.Time {
	switch nav {
	case NavPrev:
		return PrevMonth(ref)
	case NavNext:
		return NextMonth(ref)
	case NavToday:
		return Today(now, ref.Location())
	default:
		return ref
	}
}

// PrevMonth moves ref back one calendar month, clamping the day.
func PrevMonth(ref time.Time) time.Time { return AddMonths(ref, -1) }

// NextMonth moves ref forward one calendar month, clamping the day.
func NextMonth(ref time.Time) time.Time { return AddMonths(ref, 1) }

// Today returns now expressed in loc (or now's own location when loc is nil).
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return now
	}
	return now.In(loc)
}

// AddMonths shifts t by n calendar months keeping the clock. Unlike
// time.AddDate, a day that does not exist in the target month is clamped
// to its last day, so Jan 31 + 1 month is Feb 28/29 rather than March.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	h, mi, s := t.Clock()
	return time.Date(target.Year(), target.Month(), d, h, mi, s, t.Nanosecond(), t.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseMonth parses "YYYY-MM" into the first day of that month in loc.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("grid: month must be YYYY-MM: %w", err)
	}
	return t, nil
}
