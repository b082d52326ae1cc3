package capture

import (
	"context"
	"testing"
	"time"
)

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/calendar", OutputPath: "out.png"}
	if err := o.normalize(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeoutSec*time.Second {
		t.Errorf("defaults not applied: %+v", o)
	}

	custom := Options{URL: "u", OutputPath: "p", Width: 800, Height: 600, Timeout: time.Second}
	if err := custom.normalize(); err != nil || custom.Width != 800 || custom.Timeout != time.Second {
		t.Errorf("custom values overwritten: %+v", custom)
	}
}

func TestCalendarPNG_RequiresURLAndOutput(t *testing.T) {
	if err := CalendarPNG(context.Background(), Options{OutputPath: "x.png"}); err == nil {
		t.Error("expected error without URL")
	}
	if err := CalendarPNG(context.Background(), Options{URL: "http://localhost"}); err == nil {
		t.Error("expected error without output path")
	}
}

func TestAuthHeaders(t *testing.T) {
	if h := (&Options{}).authHeaders(); h != nil {
		t.Errorf("no credentials should mean no headers, got %v", h)
	}
	h := (&Options{Username: "coach", Password: "s3cret"}).authHeaders()
	if h["Authorization"] != "Basic Y29hY2g6czNjcmV0" {
		t.Errorf("Authorization = %v", h["Authorization"])
	}
}
