// Package filter narrows and orders an in-memory task list the way the
// dashboard presents it.
package filter

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/progress"
)

// All disables the status or priority predicate.
const All = "all"

// Quick is an exclusive date-class filter applied before the other predicates.
type Quick string

const (
	QuickAll      Quick = "all"
	QuickToday    Quick = "today"
	QuickUpcoming Quick = "upcoming"
	QuickOverdue  Quick = "overdue"
)

// ValidQuick returns all quick filter values.
func ValidQuick() []Quick {
	return []Quick{QuickAll, QuickToday, QuickUpcoming, QuickOverdue}
}

// SortKey names the field tasks are ordered by.
type SortKey string

const (
	SortCreatedAt SortKey = "createdAt"
	SortEndDate   SortKey = "endDate"
	SortTitle     SortKey = "title"
	SortPriority  SortKey = "priority"
)

// ValidSortKeys returns all sort keys.
func ValidSortKeys() []SortKey {
	return []SortKey{SortCreatedAt, SortEndDate, SortTitle, SortPriority}
}

// Order is the sort direction. The zero value sorts ascending.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Criteria selects and orders tasks.
type Criteria struct {
	Status   string
	Priority string
	Search   string
	SortBy   SortKey
	Order    Order
	Quick    Quick
	// Locale drives title collation. Empty means the root locale.
	Locale string
}

// DefaultCriteria matches the dashboard's initial state: every task, newest first.
func DefaultCriteria() Criteria {
	return Criteria{
		Status:   All,
		Priority: All,
		SortBy:   SortCreatedAt,
		Order:    Desc,
		Quick:    QuickAll,
	}
}

// Apply returns the tasks matching c, ordered by c. All predicates are ANDed:
// quick filter, then status, then priority, then free-text search. The input
// slice is not modified.
func Apply(tasks []model.Task, c Criteria, now time.Time) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	search := strings.ToLower(strings.TrimSpace(c.Search))
	for _, task := range tasks {
		if !matchesQuick(task, c.Quick, now) {
			continue
		}
		if c.Status != "" && c.Status != All && string(task.Status) != c.Status {
			continue
		}
		if c.Priority != "" && c.Priority != All && string(task.Priority) != c.Priority {
			continue
		}
		if search != "" && !matchesSearch(task, search) {
			continue
		}
		out = append(out, task)
	}

	compare := comparator(c)
	slices.SortStableFunc(out, compare)
	return out
}

func matchesQuick(task model.Task, q Quick, now time.Time) bool {
	switch q {
	case QuickToday:
		return IsDueOn(task, now)
	case QuickOverdue:
		return progress.Derive(task, now).Overdue
	case QuickUpcoming:
		return !progress.Derive(task, now).Overdue && task.Status != model.StatusCompleted
	default:
		return true
	}
}

func matchesSearch(task model.Task, lowered string) bool {
	return strings.Contains(strings.ToLower(task.Title), lowered) ||
		strings.Contains(strings.ToLower(task.Description), lowered)
}

// IsDueOn reports whether task's end date falls on the calendar day of day,
// evaluated in day's location. A date-only end date is that day everywhere.
func IsDueOn(task model.Task, day time.Time) bool {
	if task.EndDate.IsZero() {
		return false
	}
	return sameDay(task.EndDate.DateIn(day.Location()), day)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func comparator(c Criteria) func(a, b model.Task) int {
	var base func(a, b model.Task) int
	switch c.SortBy {
	case SortEndDate:
		base = func(a, b model.Task) int { return a.EndDate.Compare(b.EndDate.Time) }
	case SortTitle:
		col := collate.New(localeTag(c.Locale))
		base = func(a, b model.Task) int { return col.CompareString(a.Title, b.Title) }
	case SortPriority:
		base = func(a, b model.Task) int { return cmp.Compare(a.Priority.Weight(), b.Priority.Weight()) }
	default:
		base = func(a, b model.Task) int { return a.CreatedAt.Compare(b.CreatedAt.Time) }
	}
	if c.Order == Desc {
		return func(a, b model.Task) int { return -base(a, b) }
	}
	return base
}

func localeTag(locale string) language.Tag {
	if locale == "" {
		return language.Und
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// Stats are the dashboard counters, computed over the unfiltered list.
type Stats struct {
	Total    int
	Today    int
	Upcoming int
	Overdue  int
}

// Count tallies tasks into the quick filter classes.
func Count(tasks []model.Task, now time.Time) Stats {
	s := Stats{Total: len(tasks)}
	for _, task := range tasks {
		if matchesQuick(task, QuickToday, now) {
			s.Today++
		}
		if matchesQuick(task, QuickUpcoming, now) {
			s.Upcoming++
		}
		if matchesQuick(task, QuickOverdue, now) {
			s.Overdue++
		}
	}
	return s
}
