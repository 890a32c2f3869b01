// Package overdue tracks open tasks mirrored on the calendar so the ones that
// slip past their end date can be flagged once.
package overdue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/model"
	"github.com/harrisonrobin/flowdesk/pkg/progress"
)

// FileName is the table file under the config dir.
const FileName = "open_tasks.json"

const formatVersion = 1

// Entry is one open task and the event that mirrors it. It keeps the
// schedule and manual progress so overdue can be judged without the task.
type Entry struct {
	TaskID         string       `json:"task_id"`
	EventID        string       `json:"event_id"`
	Summary        string       `json:"summary"`
	Status         model.Status `json:"status"`
	Start          time.Time    `json:"start,omitzero"`
	Due            time.Time    `json:"due"`
	ManualProgress *float64     `json:"manual_progress,omitempty"`
}

func (e Entry) task() model.Task {
	t := model.Task{
		ID:             e.TaskID,
		Title:          e.Summary,
		Status:         e.Status,
		EndDate:        model.NewTime(e.Due),
		ManualProgress: e.ManualProgress,
	}
	if !e.Start.IsZero() {
		t.StartDate = model.NewTime(e.Start)
	}
	return t
}

func (e Entry) equal(o Entry) bool {
	sameManual := (e.ManualProgress == nil) == (o.ManualProgress == nil) &&
		(e.ManualProgress == nil || *e.ManualProgress == *o.ManualProgress)
	return e.EventID == o.EventID && e.Summary == o.Summary && e.Status == o.Status &&
		e.Start.Equal(o.Start) && e.Due.Equal(o.Due) && sameManual
}

type document struct {
	Version   int                `json:"version"`
	Calendars map[string][]Entry `json:"calendars"`
}

// Table is the set of open tasks seen on the last sync to one calendar.
type Table struct {
	path       string
	calendarID string
	doc        document
	entries    map[string]Entry
	dirty      bool
}

// NewTable loads dir/open_tasks.json scoped to calendarID, or starts empty
// when it does not exist.
func NewTable(dir, calendarID string) (*Table, error) {
	if calendarID == "" {
		return nil, errors.New("overdue: calendar id is required")
	}
	t := &Table{
		path:       filepath.Join(dir, FileName),
		calendarID: calendarID,
		doc:        document{Version: formatVersion, Calendars: make(map[string][]Entry)},
		entries:    make(map[string]Entry),
	}
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &t.doc); err != nil {
		return nil, fmt.Errorf("failed to read sweep table %s: %w", t.path, err)
	}
	if t.doc.Calendars == nil {
		t.doc.Calendars = make(map[string][]Entry)
	}
	for _, e := range t.doc.Calendars[calendarID] {
		t.entries[e.TaskID] = e
	}
	return t, nil
}

// CalendarID is the calendar the table is scoped to.
func (t *Table) CalendarID() string { return t.calendarID }

// Save writes the table, earliest due first, if it changed. Entries of other
// calendars are kept as they were read.
func (t *Table) Save() error {
	if !t.dirty {
		return nil
	}
	if len(t.entries) == 0 {
		delete(t.doc.Calendars, t.calendarID)
	} else {
		t.doc.Calendars[t.calendarID] = t.sorted()
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.path, data, 0600); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Track records task as open on eventID while it can still go overdue: it
// has an end date, is below 100% and is not overdue yet at now. Any other
// task is dropped. It reports whether task is tracked.
func (t *Table) Track(task model.Task, eventID string, now time.Time) bool {
	if task.Status == model.StatusCompleted || task.EndDate.IsZero() {
		t.Remove(task.ID)
		return false
	}
	if v := progress.Derive(task, now); v.DisplayProgress >= 100 || v.Overdue {
		t.Remove(task.ID)
		return false
	}
	e := Entry{
		TaskID:         task.ID,
		EventID:        eventID,
		Summary:        task.Title,
		Status:         task.Status,
		Start:          task.StartDate.Time,
		Due:            task.EndDate.Time,
		ManualProgress: task.ManualProgress,
	}
	if old, ok := t.entries[task.ID]; !ok || !old.equal(e) {
		t.entries[task.ID] = e
		t.dirty = true
	}
	return true
}

// Remove drops taskID.
func (t *Table) Remove(taskID string) {
	if _, ok := t.entries[taskID]; ok {
		delete(t.entries, taskID)
		t.dirty = true
	}
}

// Get returns the entry of taskID.
func (t *Table) Get(taskID string) (Entry, bool) {
	e, ok := t.entries[taskID]
	return e, ok
}

// Len is the number of open tasks.
func (t *Table) Len() int { return len(t.entries) }

// Sweep removes and returns the entries whose task is overdue at now,
// earliest due first.
func (t *Table) Sweep(now time.Time) []Entry {
	var swept []Entry
	for _, e := range t.sorted() {
		if !progress.Derive(e.task(), now).Overdue {
			continue
		}
		swept = append(swept, e)
		delete(t.entries, e.TaskID)
		t.dirty = true
	}
	return swept
}

func (t *Table) sorted() []Entry {
	list := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		list = append(list, e)
	}
	slices.SortFunc(list, func(a, b Entry) int {
		if c := a.Due.Compare(b.Due); c != 0 {
			return c
		}
		if a.TaskID < b.TaskID {
			return -1
		}
		if a.TaskID > b.TaskID {
			return 1
		}
		return 0
	})
	return list
}
