// Package source loads schedule entries for a time window from the
// configured feeds and keeps a refreshed copy for the web layer.
package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "fitcal/internal/log"
	"fitcal/internal/model"
)

// ErrAllSourcesFailed is returned by Multi when no source produced events.
var ErrAllSourcesFailed = errors.New("source: every source failed")

// Source yields the events overlapping [from, to).
type Source interface {
	Name() string
	Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error)
}

// Multi fans out to several sources and concatenates their events.
type Multi struct {
	sources []Source
}

// NewMulti groups sources. Order is kept in the merged output.
func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

func (m *Multi) Name() string { return "multi" }

// Events queries every source concurrently. A failing source is logged and
// skipped; an error is returned only when all of them fail.
func (m *Multi) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	if len(m.sources) == 0 {
		return []model.CalendarEvent{}, nil
	}

	results := make([][]model.CalendarEvent, len(m.sources))
	errs := make([]error, len(m.sources))

	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = src.Events(ctx, from, to)
		}()
	}
	wg.Wait()

	out := make([]model.CalendarEvent, 0)
	failed := 0
	for i, src := range m.sources {
		if errs[i] != nil {
			failed++
			errs[i] = fmt.Errorf("%s: %w", src.Name(), errs[i])
			appLog.Error("source load failed", errs[i], "source", src.Name())
			continue
		}
		out = append(out, results[i]...)
	}

	if failed == len(m.sources) {
		return nil, errors.Join(append([]error{ErrAllSourcesFailed}, errs...)...)
	}
	return out, nil
}

// filterWindow keeps the events overlapping [from, to).
func filterWindow(events []model.CalendarEvent, from, to time.Time) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.Overlaps(from, to) {
			out = append(out, ev)
		}
	}
	return out
}
