// Package caldav reads schedule entries from a calendar collection on a
// CalDAV server.
package caldav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"fitcal/internal/ics"
	appLog "fitcal/internal/log"
	"fitcal/internal/model"
)

// Config describes the collection to read.
type Config struct {
	ID       string
	URL      string
	Username string
	Password string
	// Calendar is the collection path on the server.
	Calendar string
	// Category is applied to events without a recognised CATEGORIES value.
	Category model.Category
	// Transport overrides http.DefaultTransport (tests).
	Transport http.RoundTripper
}

// Client queries one calendar collection.
type Client struct {
	cfg    Config
	client *caldav.Client
}

// basicAuthTransport adds Basic Auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.username, t.password)
	return t.base.RoundTrip(req)
}

// NewClient builds a client for cfg. It does not contact the server.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("caldav: server URL is empty")
	}
	if cfg.Calendar == "" {
		return nil, errors.New("caldav: calendar path is empty")
	}
	if cfg.ID == "" {
		cfg.ID = "caldav"
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	var rt http.RoundTripper = base
	if cfg.Username != "" {
		rt = &basicAuthTransport{username: cfg.Username, password: cfg.Password, base: base}
	}
	httpClient := &http.Client{Transport: rt, Timeout: 30 * time.Second}

	c, err := caldav.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("caldav: connect: %w", err)
	}
	return &Client{cfg: cfg, client: c}, nil
}

// Name identifies the collection in logs.
func (c *Client) Name() string { return c.cfg.ID }

// Events returns the entries overlapping [from, to), recurrences expanded,
// with times in loc.
func (c *Client) Events(ctx context.Context, from, to time.Time, loc *time.Location) ([]model.CalendarEvent, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: from.UTC(),
				End:   to.UTC(),
			}},
		},
	}

	objects, err := c.client.QueryCalendar(ctx, c.cfg.Calendar, query)
	if err != nil {
		return nil, fmt.Errorf("caldav: query %s: %w", c.cfg.Calendar, err)
	}
	appLog.Debug("caldav query completed", "id", c.cfg.ID, "objects", len(objects))

	return c.convert(objects, from, to, loc)
}

// convert funnels every object through the ICS parser so CalDAV and feed
// events are mapped the same way.
func (c *Client) convert(objects []caldav.CalendarObject, from, to time.Time, loc *time.Location) ([]model.CalendarEvent, error) {
	src := ics.Source{ID: c.cfg.ID, URL: c.cfg.URL, Category: c.cfg.Category}

	var parsed []ics.ParsedEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		var buf bytes.Buffer
		if err := ical.NewEncoder(&buf).Encode(obj.Data); err != nil {
			appLog.Warn("caldav object skipped", "path", obj.Path, "reason", err.Error())
			continue
		}
		evs, err := ics.ParseICS(src, buf.Bytes(), loc)
		if err != nil {
			appLog.Warn("caldav object skipped", "path", obj.Path, "reason", err.Error())
			continue
		}
		parsed = append(parsed, evs...)
	}

	res, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}
