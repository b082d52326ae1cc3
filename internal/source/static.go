package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitcal/internal/config"
	"fitcal/internal/model"
)

// Static serves the events listed in the config file.
type Static struct {
	events []model.CalendarEvent
}

// NewStatic validates the configured events. Timestamps are RFC3339; a
// missing end means model.DefaultDuration and a missing id is derived from
// title and start.
func NewStatic(entries []config.EventConfig, loc *time.Location) (*Static, error) {
	if loc == nil {
		loc = time.UTC
	}
	events := make([]model.CalendarEvent, 0, len(entries))
	for i, e := range entries {
		ev, err := staticEvent(e, loc)
		if err != nil {
			return nil, fmt.Errorf("source: events[%d]: %w", i, err)
		}
		events = append(events, ev)
	}
	return &Static{events: events}, nil
}

func staticEvent(e config.EventConfig, loc *time.Location) (model.CalendarEvent, error) {
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Start))
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("start: %w", err)
	}
	end := start.Add(model.DefaultDuration)
	if e.End != "" {
		if end, err = time.Parse(time.RFC3339, strings.TrimSpace(e.End)); err != nil {
			return model.CalendarEvent{}, fmt.Errorf("end: %w", err)
		}
	}
	cat, err := model.ParseCategory(e.Category)
	if err != nil {
		return model.CalendarEvent{}, err
	}

	id := e.ID
	if id == "" {
		name := "static|" + e.Title + "|" + start.UTC().Format(time.RFC3339)
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
	}

	ev := model.CalendarEvent{
		ID:          id,
		Title:       strings.TrimSpace(e.Title),
		Category:    cat,
		Start:       start.In(loc),
		End:         end.In(loc),
		SubjectName: e.Subject,
		Notes:       e.Notes,
	}
	if err := ev.Validate(); err != nil {
		return model.CalendarEvent{}, err
	}
	return ev, nil
}

func (s *Static) Name() string { return "static" }

func (s *Static) Events(_ context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	return filterWindow(s.events, from, to), nil
}
