package web

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"fitcal/internal/grid"
	appLog "fitcal/internal/log"
)

// monthRequest is the parsed month/week_start/nav query.
type monthRequest struct {
	ref       time.Time
	weekStart time.Weekday
}

// parseMonthRequest reads month (YYYY-MM, default current), week_start
// (0..6, default from config) and nav (prev|next|today).
func (s *Server) parseMonthRequest(q url.Values) (monthRequest, error) {
	now := s.now().In(s.loc)
	req := monthRequest{ref: grid.Today(now, s.loc), weekStart: s.weekStart}

	if v := q.Get("month"); v != "" {
		ref, err := grid.ParseMonth(v, s.loc)
		if err != nil {
			return req, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		req.ref = ref
	}
	if v := q.Get("week_start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: week_start must be an integer", errBadRequest)
		}
		req.weekStart = time.Weekday(n)
	}
	nav, err := grid.ParseNav(q.Get("nav"))
	if err != nil {
		return req, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	req.ref = grid.Navigate(req.ref, nav, now)
	return req, nil
}

// buildMonth loads the events covering the grid and lays the month out.
func (s *Server) buildMonth(ctx context.Context, req monthRequest) (grid.Month, error) {
	bounds, err := grid.Bounds(req.ref, req.weekStart)
	if err != nil {
		return grid.Month{}, err
	}
	from, to := bounds.Window()

	events, err := s.events.Events(ctx, from, to)
	if err != nil {
		return grid.Month{}, fmt.Errorf("load events: %w", err)
	}

	m, err := grid.BuildMonthGrid(req.ref, events, req.weekStart, s.now())
	if err != nil {
		return grid.Month{}, err
	}
	appLog.Debug("month built",
		"month", req.ref.Format("2006-01"),
		"week_start", int(req.weekStart),
		"events", len(events),
		"cells", len(m.Cells),
	)
	return m, nil
}
