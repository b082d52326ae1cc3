// Package grid lays out a calendar month as whole weeks of day cells and
// places timed events onto every day they overlap.
//
// Everything here is a pure function of its inputs: the reference date,
// the events, the first weekday, and an injected "now". Day boundaries are
// taken in the location of the reference date.
package grid

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"fitcal/internal/model"
)

var (
	// ErrInvalidEventRange reports an event whose end precedes its start.
	ErrInvalidEventRange = errors.New("grid: event end is before start")
	// ErrInvalidWeekStart reports a first weekday outside 0..6.
	ErrInvalidWeekStart = errors.New("grid: week start must be between 0 (Sunday) and 6 (Saturday)")
)

// RangeError identifies the event that failed range validation.
type RangeError struct {
	EventID string
	Start   time.Time
	End     time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("grid: event %q ends at %s before it starts at %s",
		e.EventID, e.End.Format(time.RFC3339), e.Start.Format(time.RFC3339))
}

func (e *RangeError) Unwrap() error { return ErrInvalidEventRange }

// Month is the rendered view of one calendar month.
type Month struct {
	// Start and End are the first and last day of the target month (00:00).
	Start time.Time
	End   time.Time

	// GridStart and GridEnd are the first and last day shown (00:00).
	GridStart time.Time
	GridEnd   time.Time

	WeekStartsOn time.Weekday

	// Cells runs from GridStart to GridEnd inclusive; len(Cells)%7 == 0.
	Cells []model.Cell
}

// Window returns the half-open instant range covered by the grid,
// [GridStart 00:00, day after GridEnd 00:00). Event sources are queried
// with it.
func (m Month) Window() (from, to time.Time) {
	return m.GridStart, nextDay(m.GridEnd)
}

// Weeks splits the cells into rows of seven.
func (m Month) Weeks() [][]model.Cell {
	return Weeks(m.Cells)
}

// BuildMonthGrid lays out the month containing ref. Only the year and month
// of ref matter; its location defines midnight. Events are not
// deduplicated; each is copied into every cell whose day it overlaps and
// cells list their events by start time, then ID.
func BuildMonthGrid(ref time.Time, events []model.CalendarEvent, weekStartsOn time.Weekday, now time.Time) (Month, error) {
	if weekStartsOn < time.Sunday || weekStartsOn > time.Saturday {
		return Month{}, fmt.Errorf("%w: got %d", ErrInvalidWeekStart, int(weekStartsOn))
	}
	for _, ev := range events {
		if ev.End.Before(ev.Start) {
			return Month{}, &RangeError{EventID: ev.ID, Start: ev.Start, End: ev.End}
		}
	}

	m, err := Bounds(ref, weekStartsOn)
	if err != nil {
		return Month{}, err
	}
	gridStart, gridEnd := m.GridStart, m.GridEnd
	total := daysBetween(gridStart, gridEnd) + 1

	today := now.In(ref.Location())
	cells := make([]model.Cell, 0, total)
	for i := 0; i < total; i++ {
		day := addDays(gridStart, i)
		dayEnd := nextDay(day)

		var placed []model.CalendarEvent
		for _, ev := range events {
			if ev.Overlaps(day, dayEnd) {
				placed = append(placed, ev)
			}
		}
		slices.SortStableFunc(placed, func(a, b model.CalendarEvent) int {
			if c := a.Start.Compare(b.Start); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		if placed == nil {
			placed = []model.CalendarEvent{}
		}

		cells = append(cells, model.Cell{
			Date:           day,
			InCurrentMonth: day.Year() == m.Start.Year() && day.Month() == m.Start.Month(),
			IsToday:        sameDate(day, today),
			Events:         placed,
		})
	}

	m.Cells = cells
	return m, nil
}

// Bounds computes the month and grid edges for ref without placing any
// events; Cells is nil. Callers use it to size source queries before
// building the grid.
func Bounds(ref time.Time, weekStartsOn time.Weekday) (Month, error) {
	if weekStartsOn < time.Sunday || weekStartsOn > time.Saturday {
		return Month{}, fmt.Errorf("%w: got %d", ErrInvalidWeekStart, int(weekStartsOn))
	}

	loc := ref.Location()
	monthStart := startOfDay(ref.Year(), ref.Month(), 1, loc)
	monthEnd := startOfDay(ref.Year(), ref.Month()+1, 0, loc)

	lead := (int(monthStart.Weekday()) - int(weekStartsOn) + 7) % 7
	lastWeekday := (int(weekStartsOn) + 6) % 7
	trail := (lastWeekday - int(monthEnd.Weekday()) + 7) % 7

	return Month{
		Start:        monthStart,
		End:          monthEnd,
		GridStart:    addDays(monthStart, -lead),
		GridEnd:      addDays(monthEnd, trail),
		WeekStartsOn: weekStartsOn,
	}, nil
}

// Weeks splits a cell sequence into rows of seven. A short final row is
// kept as is.
func Weeks(cells []model.Cell) [][]model.Cell {
	rows := make([][]model.Cell, 0, (len(cells)+6)/7)
	for i := 0; i < len(cells); i += 7 {
		rows = append(rows, cells[i:min(i+7, len(cells))])
	}
	return rows
}

// WeekdayOrder returns the seven weekdays as they appear across a grid row.
func WeekdayOrder(weekStartsOn time.Weekday) []time.Weekday {
	out := make([]time.Weekday, 7)
	for i := range out {
		out[i] = time.Weekday((int(weekStartsOn) + i) % 7)
	}
	return out
}

// addDays moves a day start by whole calendar days. It rebuilds the date
// instead of adding hours so DST transitions never shift the day.
func addDays(day time.Time, n int) time.Time {
	return startOfDay(day.Year(), day.Month(), day.Day()+n, day.Location())
}

// startOfDay returns the first instant of the (normalized) date in loc.
// In zones that skip midnight, time.Date may resolve 00:00 to the previous
// evening; step forward until the date is right.
func startOfDay(y int, m time.Month, d int, loc *time.Location) time.Time {
	want := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	t := time.Date(want.Year(), want.Month(), want.Day(), 0, 0, 0, 0, loc)
	for i := 0; i < 16 && !sameDate(t, want); i++ {
		t = t.Add(15 * time.Minute)
	}
	return t
}

func nextDay(day time.Time) time.Time {
	return addDays(day, 1)
}

// daysBetween counts calendar days from a to b, ignoring clock and zone.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

var weekdayLabels = [7]string{"Dom", "Seg", "Ter", "Qua", "Qui", "Sex", "Sáb"}

// WeekdayLabels returns short Portuguese column headers in week order.
func WeekdayLabels(weekStartsOn time.Weekday) []string {
	order := WeekdayOrder(weekStartsOn)
	out := make([]string, len(order))
	for i, wd := range order {
		out[i] = weekdayLabels[wd]
	}
	return out
}
