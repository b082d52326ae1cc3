package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitcal/internal/caldav"
	"fitcal/internal/config"
	"fitcal/internal/ics"
	appLog "fitcal/internal/log"
	"fitcal/internal/model"
)

// ICS reads subscribed iCalendar feeds.
type ICS struct {
	fetcher *ics.Fetcher
	feeds   []ics.Source
	loc     *time.Location
}

// NewICS maps the configured feeds. An empty id falls back to the feed's
// position; an unknown category is an error.
func NewICS(fetcher *ics.Fetcher, feeds []config.ICSConfig, loc *time.Location) (*ICS, error) {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]ics.Source, 0, len(feeds))
	for i, f := range feeds {
		cat, err := parseDefaultCategory(f.Category)
		if err != nil {
			return nil, fmt.Errorf("source: ics[%d]: %w", i, err)
		}
		id := f.ID
		if id == "" {
			id = fmt.Sprintf("ics-%d", i)
		}
		out = append(out, ics.Source{ID: id, URL: f.URL, Category: cat})
	}
	return &ICS{fetcher: fetcher, feeds: out, loc: loc}, nil
}

func (s *ICS) Name() string { return "ics" }

// Events fetches each feed (falling back to its cached body), parses it
// and expands recurrences over [from, to). Feeds that fail are skipped
// unless all of them do.
func (s *ICS) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	if len(s.feeds) == 0 {
		return []model.CalendarEvent{}, nil
	}

	results, errs := s.fetcher.FetchAll(ctx, s.feeds)

	var parsed []ics.ParsedEvent
	for _, res := range results {
		evs, err := ics.ParseICS(res.Source, res.Body, s.loc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		parsed = append(parsed, evs...)
	}
	if len(errs) == len(s.feeds) {
		return nil, errors.Join(errs...)
	}

	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: s.loc,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return nil, err
	}
	appLog.Debug("ics events expanded",
		"feeds", len(s.feeds),
		"failed", len(errs),
		"events", len(expanded.Events),
		"truncated", len(expanded.TruncatedEvents),
	)
	return expanded.Events, nil
}

// CalDAV adapts a caldav.Client to Source.
type CalDAV struct {
	client *caldav.Client
	loc    *time.Location
}

// NewCalDAV builds a CalDAV source from its config block.
func NewCalDAV(cfg config.CalDAVConfig, loc *time.Location) (*CalDAV, error) {
	if loc == nil {
		loc = time.UTC
	}
	cat, err := parseDefaultCategory(cfg.Category)
	if err != nil {
		return nil, fmt.Errorf("source: caldav: %w", err)
	}
	client, err := caldav.NewClient(caldav.Config{
		URL:      cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		Calendar: cfg.Calendar,
		Category: cat,
	})
	if err != nil {
		return nil, err
	}
	return &CalDAV{client: client, loc: loc}, nil
}

func (s *CalDAV) Name() string { return s.client.Name() }

func (s *CalDAV) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	return s.client.Events(ctx, from, to, s.loc)
}

// parseDefaultCategory reads a feed-level category; empty means class.
func parseDefaultCategory(s string) (model.Category, error) {
	if s == "" {
		return model.CategoryClass, nil
	}
	return model.ParseCategory(s)
}
