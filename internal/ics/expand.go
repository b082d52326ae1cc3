package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "fitcal/internal/log"
	"fitcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted to.
	// If nil, time.UTC is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the half-open window [RangeStart,
	// RangeEnd); an occurrence is kept when it overlaps it.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded events and the UIDs that were cut short.
type ExpandResult struct {
	Events []model.CalendarEvent
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into schedule entries inside the
// configured window. It handles:
//
//   - Single non-recurring events
//   - RRULE-based recurrence (DAILY/WEEKLY/MONTHLY/YEARLY, etc.)
//   - EXDATE for exception removal
//   - RECURRENCE-ID overrides
//
// Each occurrence gets a stable ID derived from its source, UID and start.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.UTC
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, keeping first-seen order so
	// output is deterministic.
	var order []string
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	out := make([]model.CalendarEvent, 0)
	for _, uid := range order {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			out = append(out, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Events = out
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	occStart := ev.Start
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	out := makeEvent(ev, occStart, ev.Start, ev.End, cfg.DisplayLocation)
	if !out.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	return []model.CalendarEvent{out}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Occurrences that start before the window can still run into it.
	dur := ev.End.Sub(ev.Start)
	rangeStart := cfg.RangeStart.Add(-dur).In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	days := max(1, calendarDays(ev.Start, ev.End))

	occTimes := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	out := make([]model.CalendarEvent, 0, len(occTimes))
	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart = day
			occEnd = day.AddDate(0, 0, days)
		} else {
			occEnd = occStart.Add(dur)
		}

		base := ev
		start, end := occStart, occEnd
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			base = o
			start, end = o.Start, o.End
		}
		if occ := makeEvent(base, occStart, start, end, cfg.DisplayLocation); occ.Overlaps(cfg.RangeStart, cfg.RangeEnd) {
			out = append(out, occ)
		}
	}

	return out, hitCap
}

// calendarDays counts date boundaries between a and b in a's location, so
// a span across a DST change still counts whole days.
func calendarDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals the
// instance start.
func findOverrideForStart(overrides []ParsedEvent, instanceStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(instanceStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeEvent converts a parsed VEVENT instance into a schedule entry.
// instanceStart is the original recurrence slot and keys the ID, so an
// override keeps the ID of the slot it replaces.
func makeEvent(ev ParsedEvent, instanceStart, start, end time.Time, displayLoc *time.Location) model.CalendarEvent {
	title := ev.Summary
	if title == "" {
		title = "(sem título)"
	}
	return model.CalendarEvent{
		ID:          OccurrenceID(ev.Source.ID, ev.UID, instanceStart),
		Title:       title,
		Category:    categoryFor(ev),
		Start:       start.In(displayLoc),
		End:         end.In(displayLoc),
		SubjectName: ev.Subject,
		Notes:       ev.Description,
	}
}

// OccurrenceID derives a stable name-based UUID for one instance of an
// event in a feed.
func OccurrenceID(sourceID, uid string, instanceStart time.Time) string {
	name := fmt.Sprintf("%s|%s|%s", sourceID, uid, instanceStart.UTC().Format(time.RFC3339))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func categoryFor(ev ParsedEvent) model.Category {
	for _, c := range ev.Categories {
		if parsed, err := model.ParseCategory(c); err == nil {
			return parsed
		}
	}
	return ev.Source.Category
}
