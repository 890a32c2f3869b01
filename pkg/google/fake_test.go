package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// fakeCalendar serves the slice of the Calendar v3 API the sync uses.
type fakeCalendar struct {
	mu        sync.Mutex
	events    map[string]*calendar.Event
	calendars []*calendar.CalendarListEntry
	next      int
	patches   int
}

func newFakeCalendar(t *testing.T) (*fakeCalendar, *calendar.Service) {
	t.Helper()
	f := &fakeCalendar{
		events: make(map[string]*calendar.Event),
		calendars: []*calendar.CalendarListEntry{
			{Id: "primary", Summary: "Personal"},
			{Id: "cal-1", Summary: "Flowdesk"},
		},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/calendar/v3").Subrouter()
	api.HandleFunc("/users/me/calendarList", f.listCalendars).Methods(http.MethodGet)
	api.HandleFunc("/calendars/{cal}/events", f.list).Methods(http.MethodGet)
	api.HandleFunc("/calendars/{cal}/events", f.insert).Methods(http.MethodPost)
	api.HandleFunc("/calendars/{cal}/events/{id}", f.get).Methods(http.MethodGet)
	api.HandleFunc("/calendars/{cal}/events/{id}", f.patch).Methods(http.MethodPatch)
	api.HandleFunc("/calendars/{cal}/events/{id}", f.remove).Methods(http.MethodDelete)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	srv, err := calendar.NewService(context.Background(),
		option.WithEndpoint(ts.URL+"/calendar/v3/"),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return f, srv
}

func (f *fakeCalendar) event(id string) *calendar.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id]
}

func (f *fakeCalendar) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{"code": 404, "message": "Not Found"},
	})
}

func (f *fakeCalendar) listCalendars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, calendar.CalendarList{Items: f.calendars})
}

func (f *fakeCalendar) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, value, filtered := strings.Cut(r.URL.Query().Get("privateExtendedProperty"), "=")
	items := []*calendar.Event{}
	for _, e := range f.events {
		if filtered {
			if e.ExtendedProperties == nil || e.ExtendedProperties.Private[key] != value {
				continue
			}
		}
		items = append(items, e)
	}
	writeJSON(w, http.StatusOK, calendar.Events{Items: items})
}

func (f *fakeCalendar) insert(w http.ResponseWriter, r *http.Request) {
	var e calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.next++
	e.Id = fmt.Sprintf("evt-%d", f.next)
	e.Status = "confirmed"
	f.events[e.Id] = &e
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, e)
}

func (f *fakeCalendar) get(w http.ResponseWriter, r *http.Request) {
	e := f.event(mux.Vars(r)["id"])
	if e == nil {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (f *fakeCalendar) patch(w http.ResponseWriter, r *http.Request) {
	var p calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.events[mux.Vars(r)["id"]]
	if e == nil {
		notFound(w)
		return
	}
	f.patches++
	if p.Summary != "" {
		e.Summary = p.Summary
	}
	if p.Description != "" {
		e.Description = p.Description
	}
	if p.ColorId != "" {
		e.ColorId = p.ColorId
	}
	if p.Start != nil {
		e.Start = p.Start
	}
	if p.End != nil {
		e.End = p.End
	}
	writeJSON(w, http.StatusOK, e)
}

func (f *fakeCalendar) remove(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := mux.Vars(r)["id"]
	if _, ok := f.events[id]; !ok {
		notFound(w)
		return
	}
	delete(f.events, id)
	w.WriteHeader(http.StatusNoContent)
}
