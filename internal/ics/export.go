package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"fitcal/internal/model"
)

// ProductID identifies calendars written by WriteCalendar.
const ProductID = "-//fitcal//Schedule//PT"

// uidDomain suffixes exported UIDs.
const uidDomain = "@fitcal"

// NewCalendar converts schedule entries into a VCALENDAR. Times are written
// in UTC; the category goes to CATEGORIES by its stable name and the student
// to X-FITCAL-SUBJECT so a later import restores both.
func NewCalendar(events []model.CalendarEvent, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, ev := range events {
		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, ev.ID+uidDomain)
		vevent.Props.SetText(ical.PropSummary, ev.Title)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())

		if ev.Category.Valid() {
			vevent.Props.SetText(ical.PropCategories, ev.Category.String())
		}
		if ev.SubjectName != "" {
			vevent.Props.SetText(SubjectProperty, ev.SubjectName)
		}
		if ev.Notes != "" {
			vevent.Props.SetText(ical.PropDescription, ev.Notes)
		}

		cal.Children = append(cal.Children, vevent.Component)
	}
	return cal
}

// WriteCalendar encodes events as an iCalendar stream.
func WriteCalendar(w io.Writer, events []model.CalendarEvent, stamp time.Time) error {
	if err := ical.NewEncoder(w).Encode(NewCalendar(events, stamp)); err != nil {
		return fmt.Errorf("ics: encode calendar: %w", err)
	}
	return nil
}
