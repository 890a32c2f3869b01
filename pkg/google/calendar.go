// Package google mirrors task due dates onto a Google Calendar.
package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/flowdesk/pkg/index"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// Action tells what SyncEvent did.
type Action string

const (
	Created   Action = "created"
	Updated   Action = "updated"
	Unchanged Action = "unchanged"
)

// CalendarClient is a Google Calendar API client bound to one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
}

// NewCalendarClient creates a client for calendarID. idx may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx}
}

// FindCalendar resolves a calendar by its display name.
func FindCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	list, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range list.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}

// SyncEvent creates the task's event or patches it when it drifted.
func (c *CalendarClient) SyncEvent(ctx context.Context, task model.Task, now time.Time) (*calendar.Event, Action, error) {
	event, err := EventFromTask(task, now)
	if err != nil {
		return nil, "", err
	}

	existing, err := c.lookup(ctx, task.ID)
	if err != nil {
		return nil, "", fmt.Errorf("error searching for event: %w", err)
	}

	if existing != nil {
		patch, err := EventNeedsUpdate(existing, event)
		if err != nil {
			return nil, "", fmt.Errorf("could not compare task with its calendar event: %w", err)
		}
		if c.index != nil {
			c.index.Set(task.ID, existing.Id)
		}
		if patch == nil {
			return existing, Unchanged, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return nil, "", err
		}
		return updated, Updated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, "", err
	}
	if c.index != nil {
		c.index.Set(task.ID, created.Id)
	}
	return created, Created, nil
}

// lookup finds a task's event through the index, falling back to a search
// on the private property.
func (c *CalendarClient) lookup(ctx context.Context, taskID string) (*calendar.Event, error) {
	if c.index != nil {
		if eventID := c.index.Get(taskID); eventID != "" {
			event, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && event.Status != "cancelled" {
				return event, nil
			}
		}
	}
	return c.GetEventByTaskID(ctx, taskID)
}

// RemoveTask deletes the task's event, if any, and forgets it.
func (c *CalendarClient) RemoveTask(ctx context.Context, taskID string) error {
	event, err := c.lookup(ctx, taskID)
	if err != nil {
		return err
	}
	if event != nil {
		if err := c.DeleteEvent(ctx, event.Id); err != nil {
			return err
		}
	}
	if c.index != nil {
		c.index.Remove(taskID)
	}
	return nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// ListEvents fetches events starting at or after timeMin.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).TimeMin(timeMin.Format(time.RFC3339)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events.Items, nil
}

// GetEventByTaskID searches for the event carrying the task id property.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
