package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"fitcal/internal/grid"
	"fitcal/internal/ics"
	appLog "fitcal/internal/log"
	"fitcal/internal/model"
)

// mdRenderer renders event notes. Raw HTML in the input is dropped since
// WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var monthNames = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var pageFuncs = template.FuncMap{
	"markdown": renderMarkdown,
}

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

type pageEvent struct {
	ID      string
	Title   string
	Time    string
	Subject string
	Notes   string
	Style   model.Style
}

type pageCell struct {
	Day     int
	Date    string
	InMonth bool
	Today   bool
	Events  []pageEvent
}

type pageData struct {
	Title     string
	Month     string
	Prev      string
	Next      string
	WeekStart int // kept on the navigation links
	Weekdays  []string
	Weeks     [][]pageCell
	// Agenda lists the month's own events once each, in order.
	Agenda []pageEvent
	Legend []model.Style
}

func (s *Server) pageEvent(ev model.CalendarEvent) pageEvent {
	start, end := ev.Start.In(s.loc), ev.End.In(s.loc)
	span := start.Format("15:04") + "–" + end.Format("15:04")
	if start.YearDay() != end.YearDay() || start.Year() != end.Year() {
		span = start.Format("02/01 15:04") + " – " + end.Format("02/01 15:04")
	}
	return pageEvent{
		ID:      ev.ID,
		Title:   ev.Title,
		Time:    span,
		Subject: ev.SubjectName,
		Notes:   ev.Notes,
		Style:   ev.Category.Style(),
	}
}

// handleCalendar renders the month as a 7-column HTML page. The root
// element carries data-ready="true" once the markup is complete, which the
// PNG capture waits for.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseMonthRequest(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := s.buildMonth(r.Context(), req)
	if err != nil {
		appLog.Error("calendar page failed", err, "month", req.ref.Format("2006-01"))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	data := pageData{
		Title:     fmt.Sprintf("%s %d", monthNames[m.Start.Month()-1], m.Start.Year()),
		Month:     m.Start.Format("2006-01"),
		Prev:      grid.PrevMonth(m.Start).Format("2006-01"),
		Next:      grid.NextMonth(m.Start).Format("2006-01"),
		WeekStart: int(m.WeekStartsOn),
		Weekdays:  grid.WeekdayLabels(m.WeekStartsOn),
	}
	for _, c := range model.Categories() {
		data.Legend = append(data.Legend, c.Style())
	}

	seen := make(map[string]bool)
	for _, week := range m.Weeks() {
		row := make([]pageCell, 0, len(week))
		for _, c := range week {
			cell := pageCell{
				Day:     c.Date.Day(),
				Date:    c.Date.Format(time.DateOnly),
				InMonth: c.InCurrentMonth,
				Today:   c.IsToday,
			}
			for _, ev := range c.Events {
				pe := s.pageEvent(ev)
				cell.Events = append(cell.Events, pe)
				if c.InCurrentMonth && !seen[ev.ID] {
					seen[ev.ID] = true
					data.Agenda = append(data.Agenda, pe)
				}
			}
			row = append(row, cell)
		}
		data.Weeks = append(data.Weeks, row)
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleICS exports the events of one month (not the padding days).
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseMonthRequest(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	bounds, err := grid.Bounds(req.ref, req.weekStart)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	from := bounds.Start
	to := time.Date(bounds.End.Year(), bounds.End.Month(), bounds.End.Day()+1, 0, 0, 0, 0, s.loc)

	events, err := s.events.Events(r.Context(), from, to)
	if err != nil {
		appLog.Error("calendar export failed", err, "month", from.Format("2006-01"))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	var buf bytes.Buffer
	if err := ics.WriteCalendar(&buf, events, s.now()); err != nil {
		appLog.Error("calendar export encode failed", err)
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="fitcal-%s.ics"`, from.Format("2006-01")))
	_, _ = w.Write(buf.Bytes())
}
