package google

import (
	"context"
	"io"
	"log"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/flowdesk/pkg/index"
	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/overdue"
)

// Report counts what a sync did.
type Report struct {
	Created   int
	Updated   int
	Unchanged int
	Removed   int
	Flagged   int
	Skipped   int
	Failed    int
}

// Syncer mirrors a task list onto a calendar.
type Syncer struct {
	Client *CalendarClient
	Index  *index.EventIndex
	// Table tracks open tasks between runs. May be nil.
	Table  *overdue.Table
	Logger *log.Logger
	Now    func() time.Time
	// Prune deletes events of indexed tasks missing from the list. Only set
	// it when the list is complete.
	Prune bool
}

func (s *Syncer) logger() *log.Logger {
	if s.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return s.Logger
}

// Sync flags tasks that went overdue since the last run and are missing from
// tasks, then creates or patches one event per task with an end date.
func (s *Syncer) Sync(ctx context.Context, tasks []model.Task) (Report, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	logger := s.logger()
	var report Report

	current := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		current[task.ID] = true
	}
	if s.Table != nil {
		for _, e := range s.Table.Sweep(now) {
			if current[e.TaskID] {
				// rewritten from the task itself below
				continue
			}
			patch := &calendar.Event{Summary: "! " + e.Summary}
			if _, err := s.Client.PatchEvent(ctx, e.EventID, patch); err != nil {
				logger.Printf("Sweep: error patching event %s: %v", e.EventID, err)
				report.Failed++
				continue
			}
			report.Flagged++
		}
	}

	for _, task := range tasks {
		if task.EndDate.IsZero() {
			report.Skipped++
			continue
		}
		event, action, err := s.Client.SyncEvent(ctx, task, now)
		if err != nil {
			logger.Printf("Error syncing task %s: %v", task.ID, err)
			report.Failed++
			continue
		}
		switch action {
		case Created:
			report.Created++
		case Updated:
			report.Updated++
		default:
			report.Unchanged++
		}
		if s.Table != nil {
			s.Table.Track(task, event.Id, now)
		}
	}

	if s.Prune && s.Index != nil {
		for _, id := range s.Index.TaskIDs() {
			if current[id] {
				continue
			}
			if err := s.Client.RemoveTask(ctx, id); err != nil {
				logger.Printf("Error deleting event for task %s: %v", id, err)
				report.Failed++
				continue
			}
			if s.Table != nil {
				s.Table.Remove(id)
			}
			report.Removed++
		}
	}

	var err error
	if s.Index != nil {
		if saveErr := s.Index.Save(); saveErr != nil {
			logger.Printf("Warning: failed to save event index: %v", saveErr)
			err = saveErr
		}
	}
	if s.Table != nil {
		if saveErr := s.Table.Save(); saveErr != nil {
			logger.Printf("Warning: failed to save sweep table: %v", saveErr)
			err = saveErr
		}
	}
	return report, err
}
