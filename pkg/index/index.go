// Package index remembers which calendar event mirrors which task.
//
// One file holds the mappings of every calendar a user has synced to, so
// pointing the sync at another calendar never reuses event ids that belong
// elsewhere.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// FileName is the index file under the config dir.
const FileName = "events.json"

const formatVersion = 1

type document struct {
	Version   int                          `json:"version"`
	Calendars map[string]map[string]string `json:"calendars"`
}

// EventIndex maps task ids to event ids on one calendar.
type EventIndex struct {
	path       string
	calendarID string

	mu     sync.RWMutex
	doc    document
	events map[string]string
	dirty  bool
}

// NewEventIndex loads dir/events.json scoped to calendarID. A missing file
// gives an empty index.
func NewEventIndex(dir, calendarID string) (*EventIndex, error) {
	if calendarID == "" {
		return nil, errors.New("index: calendar id is required")
	}
	idx := &EventIndex{
		path:       filepath.Join(dir, FileName),
		calendarID: calendarID,
		doc:        document{Version: formatVersion, Calendars: make(map[string]map[string]string)},
	}
	data, err := os.ReadFile(idx.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, &idx.doc); err != nil {
			return nil, fmt.Errorf("failed to read event index %s: %w", idx.path, err)
		}
		if idx.doc.Calendars == nil {
			idx.doc.Calendars = make(map[string]map[string]string)
		}
	}
	idx.events = idx.doc.Calendars[calendarID]
	if idx.events == nil {
		idx.events = make(map[string]string)
		idx.doc.Calendars[calendarID] = idx.events
	}
	return idx, nil
}

// Path is the file the index is saved to.
func (idx *EventIndex) Path() string { return idx.path }

// CalendarID is the calendar the index is scoped to.
func (idx *EventIndex) CalendarID() string { return idx.calendarID }

// Save writes the index if it changed. The file is replaced atomically.
func (idx *EventIndex) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}
	for id, events := range idx.doc.Calendars {
		if len(events) == 0 && id != idx.calendarID {
			delete(idx.doc.Calendars, id)
		}
	}
	data, err := json.MarshalIndent(idx.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(idx.path, data); err != nil {
		return fmt.Errorf("failed to save event index: %w", err)
	}
	idx.dirty = false
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+FileName+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Get returns the event id mirroring taskID, or "".
func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.events[taskID]
}

// Set records that eventID mirrors taskID.
func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.events[taskID] == eventID {
		return
	}
	idx.events[taskID] = eventID
	idx.dirty = true
}

// Remove forgets taskID.
func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.events[taskID]; !ok {
		return
	}
	delete(idx.events, taskID)
	idx.dirty = true
}

// TaskIDs lists every task indexed on this calendar, sorted.
func (idx *EventIndex) TaskIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.events))
	for id := range idx.events {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
