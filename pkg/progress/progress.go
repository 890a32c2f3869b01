// Package progress derives the display state of a task from its dates,
// manual override and completion status.
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// Color classifies how a task is doing against its schedule.
type Color string

const (
	ColorCompleted Color = "completed"
	ColorCritical  Color = "critical"
	ColorDefault   Color = "default"
	ColorHealthy   Color = "healthy"
	ColorCaution   Color = "caution"
	ColorWarning   Color = "warning"
)

const (
	day = 24 * time.Hour

	// imminentDays is the deadline distance at which a task turns critical
	// regardless of how much of its span is left.
	imminentDays = 2

	// overdueCeiling caps time-based progress of an unfinished task once its
	// end date has passed, so elapsed time alone never completes it.
	overdueCeiling = 99.0
)

// View is the derived, never stored, progress state of a task at an instant.
type View struct {
	AutoProgress    float64
	DisplayProgress float64
	// DaysRemaining and TotalDays are only meaningful when HasSchedule is set.
	DaysRemaining int
	TotalDays     int
	HasSchedule   bool
	Overdue       bool
	Color         Color
	StatusText    string
}

// Derive computes the view of task at now.
func Derive(task model.Task, now time.Time) View {
	var v View

	start, end := task.StartDate.Time, task.EndDate.Time
	if !end.IsZero() {
		v.HasSchedule = true
		v.DaysRemaining = ceilDays(end.Sub(now))
		if !start.IsZero() {
			v.TotalDays = ceilDays(end.Sub(start))
		}
	}

	v.AutoProgress = autoProgress(task, start, end, now)
	v.DisplayProgress = v.AutoProgress
	if task.ManualProgress != nil {
		v.DisplayProgress = clamp(*task.ManualProgress)
	}

	v.Overdue = v.HasSchedule && v.DaysRemaining < 0 && v.DisplayProgress < 100
	v.Color = classify(v)
	v.StatusText = statusText(v)
	return v
}

func autoProgress(task model.Task, start, end, now time.Time) float64 {
	if task.Status == model.StatusCompleted {
		return 100
	}
	if start.IsZero() || end.IsZero() {
		return 0
	}
	span := end.Sub(start)
	if span <= 0 {
		if now.Before(end) {
			return 0
		}
		return 100
	}
	pct := clamp(float64(now.Sub(start)) / float64(span) * 100)
	if now.After(end) && pct > overdueCeiling {
		pct = overdueCeiling
	}
	return pct
}

func classify(v View) Color {
	if v.DisplayProgress >= 100 {
		return ColorCompleted
	}
	if v.Overdue {
		return ColorCritical
	}
	if !v.HasSchedule || v.TotalDays <= 0 {
		return ColorDefault
	}
	if v.DaysRemaining > 0 && v.DaysRemaining <= imminentDays {
		return ColorCritical
	}

	remaining := float64(v.DaysRemaining) / float64(v.TotalDays) * 100
	switch {
	case remaining > 60:
		return ColorHealthy
	case remaining >= 40:
		return ColorCaution
	case remaining >= 20:
		return ColorWarning
	default:
		return ColorCritical
	}
}

func statusText(v View) string {
	switch {
	case v.DisplayProgress >= 100:
		return "Completed"
	case !v.HasSchedule:
		return "No due date"
	case v.Overdue:
		return fmt.Sprintf("%d days overdue", -v.DaysRemaining)
	case v.DaysRemaining == 0:
		return "Due today"
	case v.DaysRemaining == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", v.DaysRemaining)
	}
}

// ceilDays rounds d up to whole days. The result may be negative.
func ceilDays(d time.Duration) int {
	return int(math.Ceil(float64(d) / float64(day)))
}

func clamp(pct float64) float64 {
	return math.Max(0, math.Min(100, pct))
}
