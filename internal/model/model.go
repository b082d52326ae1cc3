package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultDuration is applied to events that only carry a start time
// (the booking form only asks for a date and an hour).
const DefaultDuration = time.Hour

// MaxTitleLength bounds CalendarEvent.Title.
const MaxTitleLength = 200

// Category tags an event for display. It never changes how an event is
// placed on the grid.
type Category int

const (
	CategoryClass Category = iota
	CategoryAssessment
	CategoryMeeting
	CategoryPersonal

	numCategories
)

// Categories lists every Category in display order.
func Categories() []Category {
	out := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

var categoryNames = [numCategories]string{
	CategoryClass:      "class",
	CategoryAssessment: "assessment",
	CategoryMeeting:    "meeting",
	CategoryPersonal:   "personal",
}

// Style holds the display attributes the month page uses for a category.
type Style struct {
	Label  string `json:"label"`
	Color  string `json:"color"`
	Border string `json:"border"`
}

var categoryStyles = [numCategories]Style{
	CategoryClass:      {Label: "Aula", Color: "#2563eb", Border: "#1d4ed8"},
	CategoryAssessment: {Label: "Avaliação", Color: "#16a34a", Border: "#15803d"},
	CategoryMeeting:    {Label: "Reunião", Color: "#f59e0b", Border: "#d97706"},
	CategoryPersonal:   {Label: "Pessoal", Color: "#a855f7", Border: "#9333ea"},
}

func (c Category) Valid() bool {
	return c >= 0 && c < numCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Style returns the display attributes for c. Invalid categories get a
// neutral grey.
func (c Category) Style() Style {
	if !c.Valid() {
		return Style{Label: c.String(), Color: "#6b7280", Border: "#4b5563"}
	}
	return categoryStyles[c]
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("model: invalid category %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ErrUnknownCategory is returned by ParseCategory.
var ErrUnknownCategory = errors.New("unknown category")

// ParseCategory accepts the English tag or the Portuguese label shown on
// the dashboard, case-insensitively.
func ParseCategory(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for c := Category(0); c < numCategories; c++ {
		if key == categoryNames[c] || key == strings.ToLower(categoryStyles[c].Label) {
			return c, nil
		}
	}
	switch key {
	case "avaliacao":
		return CategoryAssessment, nil
	case "reuniao":
		return CategoryMeeting, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// CalendarEvent is a timed entry on the trainer's schedule.
// INVARIANT: End >= Start.
type CalendarEvent struct {
	ID       string
	Title    string
	Category Category
	Start    time.Time
	End      time.Time

	// SubjectName is the student the event is about, if any.
	SubjectName string
	Notes       string
}

// Validate checks the event's invariants and returns the first violation.
func (e *CalendarEvent) Validate() error {
	if e.ID == "" {
		return errors.New("event id cannot be empty")
	}
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("event title cannot be empty")
	}
	if len(e.Title) > MaxTitleLength {
		return fmt.Errorf("event title cannot exceed %d characters", MaxTitleLength)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("event category %d is not valid", int(e.Category))
	}
	if e.Start.IsZero() {
		return errors.New("event start is required")
	}
	if e.End.Before(e.Start) {
		return errors.New("event end cannot be before start")
	}
	return nil
}

// Overlaps reports whether the event intersects the half-open range
// [from, to). A zero-length event counts when its instant lies inside it.
func (e CalendarEvent) Overlaps(from, to time.Time) bool {
	if !e.Start.Before(to) {
		return false
	}
	if e.End.Equal(e.Start) {
		return !e.Start.Before(from)
	}
	return e.End.After(from)
}

// Cell is one day square of a month grid.
type Cell struct {
	Date           time.Time
	InCurrentMonth bool
	IsToday        bool
	Events         []CalendarEvent
}
