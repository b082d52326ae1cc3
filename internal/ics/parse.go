package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	goical "github.com/emersion/go-ical"

	appLog "fitcal/internal/log"
)

// SubjectProperty carries the student name on events we export and is
// read back on import. ATTENDEE;CN=... is used when it is absent.
const SubjectProperty = "X-FITCAL-SUBJECT"

// ParsedEvent is the normalized representation of a VEVENT as produced
// by the ICS parser. Recurrence expansion operates on this type.
type ParsedEvent struct {
	Source Source

	UID string

	Summary     string
	Description string
	Location    string
	Categories  []string
	Subject     string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides one recurring instance
}

// ParseICS parses a single ICS payload into a list of ParsedEvent.
//
//   - TZID parameters are honoured; floating times and all-day dates are
//     anchored in loc (nil means UTC).
//   - All-day events span [date 00:00, end date 00:00) in loc; a missing
//     DTEND means one day.
//   - RRULE/EXDATE/RECURRENCE-ID are recorded, not expanded.
func ParseICS(src Source, body []byte, loc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("ics: parse %s: %w", src.ID, err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(src, comp, loc)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "id", src.ID, "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		out.Categories = append(out.Categories, splitList(p.Value)...)
	}
	out.Subject = subjectOf(ve)

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(&dtStart.BaseProperty, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, _, err := propTime(&dtEnd.BaseProperty, loc)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = end
	} else if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		end, err := addDuration(start, p.Value)
		if err != nil {
			return out, fmt.Errorf("DURATION: %w", err)
		}
		out.End = end
	} else if allDay {
		out.End = start.AddDate(0, 0, 1)
	} else {
		out.End = start
	}
	if out.End.Before(out.Start) {
		return out, fmt.Errorf("DTEND %s before DTSTART %s", out.End.Format(time.RFC3339), out.Start.Format(time.RFC3339))
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE can appear multiple times, each possibly a list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range splitList(p.Value) {
			bp := ical.BaseProperty{IANAToken: p.IANAToken, ICalParameters: p.ICalParameters, Value: part}
			if t, _, err := propTime(&bp, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, _, err := propTime(&p.BaseProperty, start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// propTime decodes a DATE or DATE-TIME property. The bool reports a
// date-only value.
func propTime(p *ical.BaseProperty, loc *time.Location) (time.Time, bool, error) {
	v := strings.TrimSpace(p.Value)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	propLoc := loc
	if tz := param(p, "TZID"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			appLog.Debug("ics unknown TZID, using display zone", "tzid", tz)
		} else {
			propLoc = l
		}
	}

	dateOnly := strings.EqualFold(param(p, "VALUE"), "DATE") || !strings.Contains(v, "T")
	switch {
	case dateOnly:
		// All-day dates float: midnight in the display zone.
		t, err := time.ParseInLocation("20060102", v[:min(8, len(v))], loc)
		return t, true, err
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	default:
		t, err := time.ParseInLocation("20060102T150405", v, propLoc)
		return t, false, err
	}
}

func subjectOf(ve *ical.VEvent) string {
	if p := ve.GetProperty(ical.ComponentProperty(SubjectProperty)); p != nil && p.Value != "" {
		return p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		if cn := param(&p.BaseProperty, "CN"); cn != "" {
			return strings.Trim(cn, `"`)
		}
	}
	return ""
}

func param(p *ical.BaseProperty, name string) string {
	if p.ICalParameters == nil {
		return ""
	}
	if vs := p.ICalParameters[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// splitList splits a comma separated value. The parser has already
// unescaped TEXT values, so no escape handling is needed here.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// addDuration applies an RFC 5545 DURATION to start. Whole days are
// calendar days, so P1D across a DST change still ends at midnight.
func addDuration(start time.Time, value string) (time.Time, error) {
	prop := goical.NewProp(goical.PropDuration)
	prop.Value = value
	d, err := prop.Duration()
	if err != nil {
		return time.Time{}, err
	}
	days := d / (24 * time.Hour)
	return start.AddDate(0, 0, int(days)).Add(d - days*24*time.Hour), nil
}
