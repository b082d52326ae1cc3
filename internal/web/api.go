package web

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"
	"time"

	"fitcal/internal/grid"
	appLog "fitcal/internal/log"
	"fitcal/internal/model"
)

// eventDTO is the JSON view of a schedule entry.
type eventDTO struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Category    string      `json:"category"`
	Style       model.Style `json:"style"`
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	SubjectName string      `json:"subject_name,omitempty"`
	Notes       string      `json:"notes,omitempty"`
}

type cellDTO struct {
	Date           string     `json:"date"`
	InCurrentMonth bool       `json:"in_current_month"`
	IsToday        bool       `json:"is_today"`
	Events         []eventDTO `json:"events"`
}

// gridResponse is the JSON response shape for /api/grid.
type gridResponse struct {
	Month        string    `json:"month"`
	Prev         string    `json:"prev"`
	Next         string    `json:"next"`
	Start        string    `json:"start"`
	End          string    `json:"end"`
	GridStart    string    `json:"grid_start"`
	GridEnd      string    `json:"grid_end"`
	WeekStartsOn int       `json:"week_starts_on"`
	Weekdays     []string  `json:"weekdays"`
	Timezone     string    `json:"timezone"`
	Cells        []cellDTO `json:"cells"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	From     string     `json:"from"`
	To       string     `json:"to"`
	Timezone string     `json:"timezone"`
	Events   []eventDTO `json:"events"`
}

func toEventDTO(ev model.CalendarEvent, loc *time.Location) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Category:    ev.Category.String(),
		Style:       ev.Category.Style(),
		Start:       ev.Start.In(loc),
		End:         ev.End.In(loc),
		SubjectName: ev.SubjectName,
		Notes:       ev.Notes,
	}
}

// handleGrid returns the month grid.
//
// GET /api/grid?month=2024-03&week_start=1&nav=next
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseMonthRequest(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.buildMonth(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status != http.StatusBadRequest {
			appLog.Error("api grid failed", err, "month", req.ref.Format("2006-01"))
		}
		writeError(w, status, err.Error())
		return
	}

	cells := make([]cellDTO, 0, len(m.Cells))
	for _, c := range m.Cells {
		evs := make([]eventDTO, 0, len(c.Events))
		for _, ev := range c.Events {
			evs = append(evs, toEventDTO(ev, s.loc))
		}
		cells = append(cells, cellDTO{
			Date:           c.Date.Format(time.DateOnly),
			InCurrentMonth: c.InCurrentMonth,
			IsToday:        c.IsToday,
			Events:         evs,
		})
	}

	writeJSON(w, http.StatusOK, gridResponse{
		Month:        m.Start.Format("2006-01"),
		Prev:         grid.PrevMonth(m.Start).Format("2006-01"),
		Next:         grid.NextMonth(m.Start).Format("2006-01"),
		Start:        m.Start.Format(time.DateOnly),
		End:          m.End.Format(time.DateOnly),
		GridStart:    m.GridStart.Format(time.DateOnly),
		GridEnd:      m.GridEnd.Format(time.DateOnly),
		WeekStartsOn: int(m.WeekStartsOn),
		Weekdays:     grid.WeekdayLabels(m.WeekStartsOn),
		Timezone:     s.loc.String(),
		Cells:        cells,
	})
}

// maxEventsSpanYears bounds /api/events so live feeds are never expanded
// over an arbitrary range.
const maxEventsSpanYears = 1

// handleEvents lists the events between two dates, both inclusive.
//
// GET /api/events?from=2024-03-01&to=2024-03-31
//   - from: first day (default today)
//   - to:   last day (default from + 6 days, at most one year after from)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := grid.Today(s.now(), s.loc)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, s.loc)

	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	last := from.AddDate(0, 0, 6)
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(time.DateOnly, v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		last = t
	}
	if last.Before(from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}
	if last.After(from.AddDate(maxEventsSpanYears, 0, 0)) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range is limited to %d year", maxEventsSpanYears))
		return
	}
	to := time.Date(last.Year(), last.Month(), last.Day()+1, 0, 0, 0, 0, s.loc)

	events, err := s.events.Events(r.Context(), from, to)
	if err != nil {
		appLog.Error("api events failed", err, "from", from.Format(time.DateOnly), "to", last.Format(time.DateOnly))
		writeError(w, http.StatusBadGateway, fmt.Sprintf("load events: %v", err))
		return
	}
	slices.SortStableFunc(events, func(a, b model.CalendarEvent) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toEventDTO(ev, s.loc))
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		From:     from.Format(time.DateOnly),
		To:       last.Format(time.DateOnly),
		Timezone: s.loc.String(),
		Events:   dtos,
	})
}
