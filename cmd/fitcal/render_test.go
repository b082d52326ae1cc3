package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"fitcal/internal/config"
	"fitcal/internal/grid"
	"fitcal/internal/model"
)

func TestPrintMonth(t *testing.T) {
	start := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)
	events := []model.CalendarEvent{{
		ID: "eval", Title: "Avaliação Física", Category: model.CategoryAssessment,
		Start: start, End: start.Add(time.Hour), SubjectName: "Ana Souza",
	}}
	m, err := grid.BuildMonthGrid(start, events, time.Monday, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := printMonth(&buf, m); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"March 2024", "Seg", "[15]", ".26", "12*", "10:00-11:00", "Avaliação Física (Ana Souza)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Five weeks plus title, blank line and header.
	if lines := strings.Split(out, "\n"); !strings.HasPrefix(lines[3], "   .26") {
		t.Errorf("first grid row = %q", lines[3])
	}
}

func TestBuildSources(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Events = []config.EventConfig{{ID: "a", Title: "Funcional", Category: "class", Start: "2024-03-12T07:00:00Z"}}
	conf.CacheDir = t.TempDir()

	src, err := buildSources(conf, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	evs, err := src.Events(t.Context(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || len(evs) != 1 {
		t.Fatalf("events = %v, %v", evs, err)
	}

	conf.Events[0].Category = "yoga"
	if _, err := buildSources(conf, time.UTC); err == nil {
		t.Error("expected error for invalid static event")
	}
}

func TestCurrentWindow(t *testing.T) {
	from, to := currentWindow(time.UTC, time.Monday)(time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))
	if !from.Equal(time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)) || !to.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("window = %s..%s", from, to)
	}
}

func TestIsHashed(t *testing.T) {
	if !isHashed("$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA") || isHashed("plain") {
		t.Error("isHashed misclassified")
	}
}
