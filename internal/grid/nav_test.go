package grid

import (
	"testing"
	"time"
)

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"clamps to leap day", at(2024, 1, 31, 10, 30), 1, at(2024, 2, 29, 10, 30)},
		{"clamps backwards", at(2024, 3, 31, 0, 0), -1, date(2024, 2, 29)},
		{"non-leap february", date(2023, 1, 30), 1, date(2023, 2, 28)},
		{"year rollover forward", date(2023, 12, 15), 1, date(2024, 1, 15)},
		{"year rollover backward", date(2024, 1, 15), -1, date(2023, 12, 15)},
		{"twelve months", date(2024, 2, 29), 12, date(2025, 2, 28)},
		{"zero", date(2024, 5, 31), 0, date(2024, 5, 31)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := AddMonths(tc.in, tc.n); !got.Equal(tc.want) {
				t.Fatalf("AddMonths(%s, %d) = %s, want %s", tc.in, tc.n, got, tc.want)
			}
		})
	}
}

func TestPrevNextMonth(t *testing.T) {
	ref := date(2024, 3, 31)
	if got := PrevMonth(ref); !got.Equal(date(2024, 2, 29)) {
		t.Errorf("PrevMonth = %s", got)
	}
	if got := NextMonth(ref); !got.Equal(date(2024, 4, 30)) {
		t.Errorf("NextMonth = %s", got)
	}
}

func TestParseNav(t *testing.T) {
	for in, want := range map[string]Nav{
		"":       NavNone,
		"prev":   NavPrev,
		" Next ": NavNext,
		"TODAY":  NavToday,
	} {
		got, err := ParseNav(in)
		if err != nil || got != want {
			t.Errorf("ParseNav(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseNav("tomorrow"); err == nil {
		t.Error("expected error for unknown navigation")
	}
}

func TestNavigate(t *testing.T) {
	ref := date(2024, 3, 10)
	now := at(2025, 7, 4, 2, 0)

	if got := Navigate(ref, NavNone, now); !got.Equal(ref) {
		t.Errorf("none = %s", got)
	}
	if got := Navigate(ref, NavPrev, now); !got.Equal(date(2024, 2, 10)) {
		t.Errorf("prev = %s", got)
	}
	if got := Navigate(ref, NavNext, now); !got.Equal(date(2024, 4, 10)) {
		t.Errorf("next = %s", got)
	}

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	got := Navigate(ref.In(ny), NavToday, now)
	// 02:00 UTC on Jul 4 is still Jul 3 in New York.
	if got.Location() != ny || got.Day() != 3 || got.Month() != time.July {
		t.Errorf("today = %s", got)
	}
}

func TestParseMonth(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseMonth("2024-03", loc)
	if err != nil {
		t.Fatalf("ParseMonth: %v", err)
	}
	if got.Year() != 2024 || got.Month() != time.March || got.Day() != 1 || got.Location() != loc {
		t.Errorf("ParseMonth = %s", got)
	}

	for _, bad := range []string{"", "2024-13", "03-2024", "2024/03"} {
		if _, err := ParseMonth(bad, loc); err == nil {
			t.Errorf("ParseMonth(%q) succeeded", bad)
		}
	}
}

func TestDaysIn(t *testing.T) {
	if DaysIn(2024, time.February) != 29 || DaysIn(2100, time.February) != 28 || DaysIn(2024, time.December) != 31 {
		t.Fatal("DaysIn returned wrong lengths")
	}
}
