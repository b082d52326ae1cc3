package ics

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

// feed wraps VEVENT lines into a CRLF calendar body.
func feed(lines ...string) []byte {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//EN"}, lines...)
	all = append(all, "END:VCALENDAR", "")
	return []byte(strings.Join(all, "\r\n"))
}

var testSource = Source{ID: "studio", URL: "https://example.com/private/studio.ics?token=abc"}

func TestParseICS_TimedEvent(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:eval-1",
		"DTSTAMP:20240301T000000Z",
		"SUMMARY:Avaliação Física",
		`DESCRIPTION:Trazer **tênis**\nChegar cedo`,
		"CATEGORIES:assessment",
		"X-FITCAL-SUBJECT:Ana Souza",
		"DTSTART:20240312T100000Z",
		"DTEND:20240312T110000Z",
		"END:VEVENT",
	)

	events, err := ParseICS(testSource, body, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.UID != "eval-1" || ev.Summary != "Avaliação Física" || ev.Subject != "Ana Souza" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Description != "Trazer **tênis**\nChegar cedo" {
		t.Errorf("description = %q", ev.Description)
	}
	if len(ev.Categories) != 1 || ev.Categories[0] != "assessment" {
		t.Errorf("categories = %v", ev.Categories)
	}
	if !ev.Start.Equal(time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)) || ev.End.Sub(ev.Start) != time.Hour {
		t.Errorf("range = %s..%s", ev.Start, ev.End)
	}
	if ev.AllDay || ev.IsOverride || ev.Source.ID != "studio" {
		t.Errorf("flags: %+v", ev)
	}
}

func TestParseICS_TZIDAndAllDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatal(err)
	}
	body := feed(
		"BEGIN:VEVENT",
		"UID:tz",
		"SUMMARY:Treino",
		"DTSTART;TZID=America/Sao_Paulo:20240312T100000",
		"DTEND;TZID=America/Sao_Paulo:20240312T110000",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:holiday",
		"SUMMARY:Feriado",
		"DTSTART;VALUE=DATE:20240329",
		"END:VEVENT",
	)

	events, err := ParseICS(testSource, body, loc)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	// Sao Paulo is UTC-3 in March 2024.
	if want := time.Date(2024, 3, 12, 13, 0, 0, 0, time.UTC); !events[0].Start.Equal(want) {
		t.Errorf("tz start = %s, want %s", events[0].Start, want)
	}

	day := events[1]
	if !day.AllDay {
		t.Fatal("expected all-day event")
	}
	if want := time.Date(2024, 3, 29, 0, 0, 0, 0, loc); !day.Start.Equal(want) {
		t.Errorf("all-day start = %s", day.Start)
	}
	if want := time.Date(2024, 3, 30, 0, 0, 0, 0, loc); !day.End.Equal(want) {
		t.Errorf("all-day end = %s", day.End)
	}
}

func TestParseICS_AttendeeSubjectAndMissingEnd(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:call",
		"SUMMARY:Check-in",
		`ATTENDEE;CN="Bruno Lima":mailto:bruno@example.com`,
		"DTSTART:20240305T120000Z",
		"END:VEVENT",
	)
	events, err := ParseICS(testSource, body, nil)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Subject != "Bruno Lima" {
		t.Errorf("subject = %q", events[0].Subject)
	}
	if !events[0].End.Equal(events[0].Start) {
		t.Errorf("missing DTEND should give an instant, got %s..%s", events[0].Start, events[0].End)
	}
}

func TestParseICS_Duration(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	body := feed(
		"BEGIN:VEVENT",
		"UID:timed",
		"SUMMARY:Funcional",
		"DTSTART:20240305T120000Z",
		"DURATION:PT1H30M",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:weekend",
		"SUMMARY:Retiro",
		"DTSTART;VALUE=DATE:20240309",
		"DURATION:P2D",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:broken",
		"SUMMARY:Quebrado",
		"DTSTART:20240305T120000Z",
		"DURATION:1 hour",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:negative",
		"SUMMARY:Negativo",
		"DTSTART:20240305T120000Z",
		"DURATION:-PT1H",
		"END:VEVENT",
	)
	events, err := ParseICS(testSource, body, ny)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want the two valid ones", len(events))
	}

	timed := events[0]
	if want := utc(2024, 3, 5, 13, 30); !timed.End.Equal(want) {
		t.Errorf("timed end = %s, want %s", timed.End, want)
	}
	// The weekend spans the switch to daylight time and still ends at midnight.
	weekend := events[1]
	if want := time.Date(2024, 3, 11, 0, 0, 0, 0, ny); !weekend.AllDay || !weekend.End.Equal(want) {
		t.Errorf("all-day end = %s (all-day %v), want %s", weekend.End, weekend.AllDay, want)
	}
}

func TestParseICS_SkipsBrokenEvents(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"SUMMARY:No UID",
		"DTSTART:20240305T120000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:backwards",
		"DTSTART:20240305T120000Z",
		"DTEND:20240305T110000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:no-start",
		"SUMMARY:Sem início",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok",
		"DTSTART:20240305T120000Z",
		"END:VEVENT",
	)
	events, err := ParseICS(testSource, body, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 1 || events[0].UID != "ok" {
		t.Fatalf("events = %+v", events)
	}
}

func TestParseICS_RecurrenceFields(t *testing.T) {
	body := feed(
		"BEGIN:VEVENT",
		"UID:weekly",
		"DTSTART:20240304T100000Z",
		"DTEND:20240304T110000Z",
		"RRULE:FREQ=WEEKLY;COUNT=4",
		"EXDATE:20240311T100000Z,20240318T100000Z",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:weekly",
		"RECURRENCE-ID:20240325T100000Z",
		"DTSTART:20240326T150000Z",
		"DTEND:20240326T160000Z",
		"END:VEVENT",
	)
	events, err := ParseICS(testSource, body, time.UTC)
	if err != nil {
		t.Fatalf("ParseICS: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].RawRRule != "FREQ=WEEKLY;COUNT=4" || len(events[0].ExDates) != 2 {
		t.Errorf("base = %+v", events[0])
	}
	ov := events[1]
	if !ov.IsOverride || ov.Recurrence == nil || !ov.Recurrence.Equal(time.Date(2024, 3, 25, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("override = %+v", ov)
	}
}

func TestParseICS_Errors(t *testing.T) {
	if _, err := ParseICS(testSource, nil, time.UTC); err == nil {
		t.Error("expected error for empty body")
	}
	if _, err := ParseICS(testSource, []byte("BEGIN:VTODO\r\nEND:VTODO\r\n"), time.UTC); err == nil {
		t.Error("expected error for non-calendar body")
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL(testSource.URL); got != "https://example.com/...(redacted)" {
		t.Errorf("redactURL = %q", got)
	}
	if got := redactURL("not a url"); got != "ics://...(redacted)" {
		t.Errorf("redactURL(garbage) = %q", got)
	}
}
