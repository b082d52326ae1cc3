package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"fitcal/internal/grid"
)

// printMonth writes a plain-text month grid followed by the month's
// agenda. Days outside the month are dotted; today is bracketed.
func printMonth(w io.Writer, m grid.Month) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%s\n\n", m.Start.Format("January 2006"))
	for _, label := range grid.WeekdayLabels(m.WeekStartsOn) {
		fmt.Fprintf(bw, "%6s", label)
	}
	bw.WriteString("\n")

	for _, week := range m.Weeks() {
		for _, c := range week {
			day := fmt.Sprintf("%d", c.Date.Day())
			switch {
			case c.IsToday:
				day = "[" + day + "]"
			case !c.InCurrentMonth:
				day = "." + day
			}
			if n := len(c.Events); n > 0 {
				day += strings.Repeat("*", min(n, 3))
			}
			fmt.Fprintf(bw, "%6s", day)
		}
		bw.WriteString("\n")
	}

	bw.WriteString("\n")
	for _, c := range m.Cells {
		if !c.InCurrentMonth || len(c.Events) == 0 {
			continue
		}
		fmt.Fprintf(bw, "%s\n", c.Date.Format("Mon 02/01"))
		for _, ev := range c.Events {
			line := fmt.Sprintf("  %s-%s  %-10s %s",
				ev.Start.In(c.Date.Location()).Format("15:04"),
				ev.End.In(c.Date.Location()).Format("15:04"),
				ev.Category.Style().Label,
				ev.Title,
			)
			if ev.SubjectName != "" {
				line += " (" + ev.SubjectName + ")"
			}
			fmt.Fprintln(bw, line)
		}
	}
	return bw.Flush()
}

func isHashed(password string) bool {
	return strings.HasPrefix(password, "$argon2id$")
}
