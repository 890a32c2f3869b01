// Package calendar lays out task due dates on a month grid.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/filter"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// Day is one cell of the grid.
type Day struct {
	Date    time.Time
	InMonth bool
	Today   bool
	Tasks   []model.Task
}

// Month is a Sunday-first grid of whole weeks covering one month.
type Month struct {
	Year  int
	Month time.Month
	Weeks [][]Day
}

// Build lays out year/month in now's location, attaching the tasks due on
// each day.
func Build(year int, month time.Month, tasks []model.Task, now time.Time) Month {
	loc := now.Location()
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := last.AddDate(0, 0, 6-int(last.Weekday()))
	ty, tm, td := now.Date()
	today := time.Date(ty, tm, td, 0, 0, 0, 0, loc)

	m := Month{Year: year, Month: month}
	var week []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		week = append(week, Day{
			Date:    d,
			InMonth: d.Month() == month,
			Today:   d.Equal(today),
			Tasks:   TasksOn(tasks, d),
		})
		if len(week) == 7 {
			m.Weeks = append(m.Weeks, week)
			week = nil
		}
	}
	return m
}

// TasksOn returns the tasks whose end date falls on date's calendar day.
func TasksOn(tasks []model.Task, date time.Time) []model.Task {
	var due []model.Task
	for _, t := range tasks {
		if filter.IsDueOn(t, date) {
			due = append(due, t)
		}
	}
	return due
}

// Days returns the in-month days, in order.
func (m Month) Days() []Day {
	var days []Day
	for _, week := range m.Weeks {
		for _, d := range week {
			if d.InMonth {
				days = append(days, d)
			}
		}
	}
	return days
}

const cellWidth = 8

// Render draws the grid followed by an agenda of the month's due tasks.
// Today is starred and busy days show their task count.
func Render(m Month) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", m.Month, m.Year)

	var header strings.Builder
	for d := time.Sunday; d <= time.Saturday; d++ {
		fmt.Fprintf(&header, "%-*s", cellWidth, d.String()[:3])
	}
	writeLine(&b, header.String())

	for _, week := range m.Weeks {
		var line strings.Builder
		for _, d := range week {
			fmt.Fprintf(&line, "%-*s", cellWidth, cell(d))
		}
		writeLine(&b, line.String())
	}

	agenda := false
	for _, d := range m.Days() {
		for _, t := range d.Tasks {
			if !agenda {
				b.WriteString("\n")
				agenda = true
			}
			fmt.Fprintf(&b, "%s  %s [%s]\n", d.Date.Format("Jan _2"), t.Title, t.Status)
		}
	}
	return b.String()
}

func cell(d Day) string {
	if !d.InMonth {
		return ""
	}
	s := fmt.Sprintf("%2d", d.Date.Day())
	if d.Today {
		s += "*"
	}
	if n := len(d.Tasks); n > 0 {
		s += fmt.Sprintf("(%d)", n)
	}
	return s
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(strings.TrimRight(line, " "))
	b.WriteString("\n")
}
