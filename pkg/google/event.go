package google

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/flowdesk/pkg/colors"
	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/progress"
)

// TaskIDProperty is the private extended property carrying the task id.
const TaskIDProperty = "flowdesk_id"

const dateLayout = "2006-01-02"

// EventFromTask builds the all-day event that mirrors a task's end date.
func EventFromTask(task model.Task, now time.Time) (*calendar.Event, error) {
	if task.ID == "" {
		return nil, fmt.Errorf("could not convert task without id")
	}
	if task.EndDate.IsZero() {
		return nil, fmt.Errorf("task has no end date: %s", task.ID)
	}
	view := progress.Derive(task, now)

	prefix := ""
	switch {
	case task.Status == model.StatusCompleted:
		prefix = "✓"
	case view.Overdue:
		prefix = "!"
	case task.Status == model.StatusInProgress:
		prefix = "‣"
	case task.Status == model.StatusPaused:
		prefix = "‖"
	}
	summary := task.Title
	if prefix != "" {
		summary = prefix + " " + task.Title
	}

	due := task.EndDate.Time
	var desc strings.Builder
	if d := strings.TrimSpace(task.Description); d != "" {
		desc.WriteString(d)
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Status: %s\n", task.Status)
	if task.Priority != "" {
		fmt.Fprintf(&desc, "Priority: %s\n", task.Priority)
	}
	fmt.Fprintf(&desc, "Progress: %.0f%% (%s)\n", view.DisplayProgress, view.StatusText)
	if len(task.AssignedUsers) > 0 {
		names := make([]string, 0, len(task.AssignedUsers))
		for _, u := range task.AssignedUsers {
			names = append(names, u.Label())
		}
		fmt.Fprintf(&desc, "Assigned: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprintf(&desc, "Task ID: %s\n", task.ID)

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		ColorId:     colors.CalendarID(view.Color),
		Start:       &calendar.EventDateTime{Date: due.Format(dateLayout)},
		End:         &calendar.EventDateTime{Date: due.AddDate(0, 0, 1).Format(dateLayout)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.ID},
		},
	}, nil
}

// EventNeedsUpdate returns a patch holding the fields of target that differ
// from existing, or nil when the event is current.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	sameStart, err := sameTime(existing.Start, target.Start)
	if err != nil {
		return nil, err
	}
	sameEnd, err := sameTime(existing.End, target.End)
	if err != nil {
		return nil, err
	}
	if !sameStart || !sameEnd {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameTime(a, b *calendar.EventDateTime) (bool, error) {
	if a == nil || b == nil {
		return a == b, nil
	}
	if a.Date != "" || b.Date != "" {
		return a.Date == b.Date, nil
	}
	at, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return false, err
	}
	bt, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		return false, err
	}
	return at.Equal(bt), nil
}

// TaskIDFromEvent returns the task an event mirrors.
func TaskIDFromEvent(e *calendar.Event) (string, bool) {
	if e == nil || e.ExtendedProperties == nil {
		return "", false
	}
	id, ok := e.ExtendedProperties.Private[TaskIDProperty]
	return id, ok && id != ""
}
