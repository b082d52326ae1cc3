package caldav

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"fitcal/internal/ics"
	"fitcal/internal/model"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{Calendar: "/cal/"}); err == nil {
		t.Error("expected error without URL")
	}
	if _, err := NewClient(Config{URL: "https://dav.example.com"}); err == nil {
		t.Error("expected error without calendar path")
	}
	c, err := NewClient(Config{URL: "https://dav.example.com", Calendar: "/cal/"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Name() != "caldav" {
		t.Errorf("default name = %q", c.Name())
	}
}

func TestBasicAuthTransport(t *testing.T) {
	var gotUser, gotPass string
	rt := &basicAuthTransport{
		username: "coach",
		password: "s3cret",
		base: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotUser, gotPass, _ = r.BasicAuth()
			return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
		}),
	}
	req, _ := http.NewRequest(http.MethodGet, "https://dav.example.com/", nil)
	if _, err := rt.RoundTrip(req); err != nil {
		t.Fatal(err)
	}
	if gotUser != "coach" || gotPass != "s3cret" {
		t.Errorf("credentials = %q/%q", gotUser, gotPass)
	}
	if req.Header.Get("Authorization") != "" {
		t.Error("original request must not be mutated")
	}
}

func TestConvert(t *testing.T) {
	c, err := NewClient(Config{ID: "agenda", URL: "https://dav.example.com", Calendar: "/cal/", Category: model.CategoryMeeting})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Date(2024, 3, 12, 18, 0, 0, 0, time.UTC)
	tagged := ics.NewCalendar([]model.CalendarEvent{{
		ID: "eval", Title: "Avaliação", Category: model.CategoryAssessment,
		Start: start, End: start.Add(time.Hour), SubjectName: "Ana Souza",
	}}, start)
	plain := ics.NewCalendar([]model.CalendarEvent{{
		ID: "sync", Title: "Alinhamento", Category: model.Category(-1),
		Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 1).Add(30 * time.Minute),
	}}, start)
	outside := ics.NewCalendar([]model.CalendarEvent{{
		ID: "old", Title: "Antigo", Category: model.CategoryClass,
		Start: start.AddDate(0, -2, 0), End: start.AddDate(0, -2, 0).Add(time.Hour),
	}}, start)

	objects := []caldav.CalendarObject{
		{Path: "/cal/eval.ics", Data: tagged},
		{Path: "/cal/empty.ics"},
		{Path: "/cal/sync.ics", Data: plain},
		{Path: "/cal/old.ics", Data: outside},
	}

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	events, err := c.convert(objects, from, to, time.UTC)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Category != model.CategoryAssessment || events[0].SubjectName != "Ana Souza" {
		t.Errorf("tagged event = %+v", events[0])
	}
	if events[1].Category != model.CategoryMeeting {
		t.Errorf("untagged event category = %s, want collection default", events[1].Category)
	}
}

// memBackend answers calendar-query REPORTs from memory. No other Backend
// method is reached by a query, so the embedded interface stays nil.
type memBackend struct {
	caldav.Backend

	objects []caldav.CalendarObject
	fail    error

	path  string
	query *caldav.CalendarQuery
}

func (b *memBackend) QueryCalendarObjects(_ context.Context, path string, q *caldav.CalendarQuery) ([]caldav.CalendarObject, error) {
	b.path, b.query = path, q
	if b.fail != nil {
		return nil, b.fail
	}
	return caldav.Filter(q, b.objects)
}

func object(path string, ev model.CalendarEvent) caldav.CalendarObject {
	return caldav.CalendarObject{
		Path:    path,
		ETag:    "e-" + ev.ID,
		ModTime: ev.Start,
		Data:    ics.NewCalendar([]model.CalendarEvent{ev}, ev.Start),
	}
}

func newDAVServer(t *testing.T, b *memBackend) *httptest.Server {
	t.Helper()
	dav := &caldav.Handler{Backend: b}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "coach" || pass != "s3cret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEvents_TimeRangeQuery(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, loc)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, loc)

	inside := time.Date(2024, 3, 12, 18, 0, 0, 0, time.UTC)
	backend := &memBackend{objects: []caldav.CalendarObject{
		object("/cal/eval.ics", model.CalendarEvent{
			ID: "eval", Title: "Avaliação", Category: model.CategoryAssessment,
			Start: inside, End: inside.Add(time.Hour), SubjectName: "Ana Souza",
		}),
		object("/cal/jan.ics", model.CalendarEvent{
			ID: "jan", Title: "Antigo", Category: model.CategoryClass,
			Start: inside.AddDate(0, -2, 0), End: inside.AddDate(0, -2, 0).Add(time.Hour),
		}),
		object("/cal/apr.ics", model.CalendarEvent{
			ID: "apr", Title: "Abril", Category: model.CategoryClass,
			Start: to, End: to.Add(time.Hour),
		}),
	}}
	srv := newDAVServer(t, backend)

	c, err := NewClient(Config{
		ID: "agenda", URL: srv.URL, Calendar: "/cal/",
		Username: "coach", Password: "s3cret",
		Category: model.CategoryMeeting,
	})
	if err != nil {
		t.Fatal(err)
	}

	events, err := c.Events(context.Background(), from, to, loc)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	got := events[0]
	if got.Title != "Avaliação" || got.Category != model.CategoryAssessment || got.SubjectName != "Ana Souza" {
		t.Errorf("event = %+v", got)
	}
	if !got.Start.Equal(inside) || got.Start.Location() != loc {
		t.Errorf("start = %s, want %s in %s", got.Start, inside, loc)
	}

	if backend.path != "/cal/" {
		t.Errorf("queried path = %q", backend.path)
	}
	f := backend.query.CompFilter
	if f.Name != "VCALENDAR" || len(f.Comps) != 1 {
		t.Fatalf("comp filter = %+v", f)
	}
	ev := f.Comps[0]
	if ev.Name != "VEVENT" || !ev.Start.Equal(from) || !ev.End.Equal(to) {
		t.Errorf("event filter = %s %s..%s, want VEVENT %s..%s", ev.Name, ev.Start, ev.End, from.UTC(), to.UTC())
	}
}

func TestEvents_ServerError(t *testing.T) {
	srv := newDAVServer(t, &memBackend{fail: errors.New("backend down")})

	c, err := NewClient(Config{URL: srv.URL, Calendar: "/cal/", Username: "coach", Password: "s3cret"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Events(context.Background(), time.Now(), time.Now().Add(time.Hour), time.UTC)
	if err == nil || !strings.Contains(err.Error(), "caldav: query /cal/") {
		t.Fatalf("err = %v, want wrapped query error", err)
	}

	wrongPass, err := NewClient(Config{URL: srv.URL, Calendar: "/cal/", Username: "coach", Password: "nope"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrongPass.Events(context.Background(), time.Now(), time.Now().Add(time.Hour), time.UTC); err == nil {
		t.Error("expected error for rejected credentials")
	}
}
