package source

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "fitcal/internal/log"
	"fitcal/internal/model"
)

// Snapshot keeps the last good event set for one window. Queries inside
// that window are served from memory; anything else goes to the wrapped
// source.
type Snapshot struct {
	src Source

	mu        sync.RWMutex
	from, to  time.Time
	events    []model.CalendarEvent
	updatedAt time.Time
	loaded    bool
}

// NewSnapshot wraps src. Until the first Refresh every query is live.
func NewSnapshot(src Source) *Snapshot {
	return &Snapshot{src: src}
}

func (s *Snapshot) Name() string { return "snapshot(" + s.src.Name() + ")" }

// Refresh reloads [from, to). On failure the previous snapshot is kept.
func (s *Snapshot) Refresh(ctx context.Context, from, to time.Time) error {
	events, err := s.src.Events(ctx, from, to)
	if err != nil {
		return fmt.Errorf("source: refresh %s: %w", s.src.Name(), err)
	}

	s.mu.Lock()
	s.from, s.to = from, to
	s.events = events
	s.updatedAt = time.Now()
	s.loaded = true
	s.mu.Unlock()

	appLog.Info("snapshot refreshed",
		"source", s.src.Name(),
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"events", len(events),
	)
	return nil
}

// Events serves from the snapshot when it covers [from, to).
func (s *Snapshot) Events(ctx context.Context, from, to time.Time) ([]model.CalendarEvent, error) {
	s.mu.RLock()
	covered := s.loaded && !from.Before(s.from) && !to.After(s.to)
	var cached []model.CalendarEvent
	if covered {
		cached = filterWindow(s.events, from, to)
	}
	s.mu.RUnlock()

	if covered {
		return cached, nil
	}
	return s.src.Events(ctx, from, to)
}

// All returns a copy of the current snapshot and its window.
func (s *Snapshot) All() (events []model.CalendarEvent, from, to time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events), s.from, s.to
}

// UpdatedAt is the time of the last successful refresh (zero if none).
func (s *Snapshot) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// WindowFunc picks the window to refresh for the given instant.
type WindowFunc func(now time.Time) (from, to time.Time)

// Refresher reloads a Snapshot on a cron schedule.
type Refresher struct {
	snap   *Snapshot
	window WindowFunc
	now    func() time.Time
	cron   *cron.Cron
	done   chan struct{}
}

// NewRefresher schedules snap reloads using a standard five-field cron
// spec evaluated in loc.
func NewRefresher(snap *Snapshot, spec string, loc *time.Location, window WindowFunc) (*Refresher, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &Refresher{
		snap:   snap,
		window: window,
		now:    time.Now,
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{})),
		done:   make(chan struct{}),
	}
	if _, err := r.cron.AddFunc(spec, func() {
		if err := r.RunOnce(context.Background()); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("source: refresh schedule %q: %w", spec, err)
	}
	return r, nil
}

// RunOnce refreshes the window for the current time.
func (r *Refresher) RunOnce(ctx context.Context) error {
	from, to := r.window(r.now())
	return r.snap.Refresh(ctx, from, to)
}

// Start loads once, then runs the schedule until ctx is done. The initial
// load failing is logged, not fatal. Call it once.
func (r *Refresher) Start(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}
	r.cron.Start()
	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
		appLog.Info("refresher stopped")
		close(r.done)
	}()
}

// Done is closed once the schedule has stopped and no refresh is running.
func (r *Refresher) Done() <-chan struct{} { return r.done }

// Entries returns the number of scheduled jobs.
func (r *Refresher) Entries() int { return len(r.cron.Entries()) }

// cronLogger routes cron's own messages to the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
