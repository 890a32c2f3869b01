package store

import (
	"context"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/filter"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// TaskAPI is the part of the backend the task store talks to.
type TaskAPI interface {
	ListTasks(ctx context.Context, q api.TaskQuery) ([]model.Task, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	CreateTask(ctx context.Context, in api.TaskInput) (model.Task, error)
	UpdateTask(ctx context.Context, id string, in api.TaskInput) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	AssignUsers(ctx context.Context, id string, userIDs []string) (model.Task, error)
	StopWork(ctx context.Context, id, reason string) (model.Task, error)
	ResumeWork(ctx context.Context, id string) (model.Task, error)
	UpdateProgress(ctx context.Context, id string, in api.ProgressInput) (model.Task, error)
	RequestHelp(ctx context.Context, id string) error
}

// TaskCache keeps the last fetched list for offline use.
type TaskCache interface {
	SaveTasks(tasks []model.Task) error
	LoadTasks() ([]model.Task, error)
}

// TaskState is a point-in-time copy of a TaskStore.
type TaskState struct {
	Tasks    []model.Task
	Current  *model.Task
	Criteria filter.Criteria
	Loading  bool
	Error    string
	// Stale is set when Tasks came from the offline cache.
	Stale bool
}

// TaskStore holds the task list, the task being viewed and the dashboard's
// filter criteria.
type TaskStore struct {
	base
	api      TaskAPI
	cache    TaskCache
	tasks    []model.Task
	current  *model.Task
	criteria filter.Criteria
	stale    bool
}

// NewTaskStore creates a store starting from filter.DefaultCriteria.
func NewTaskStore(client TaskAPI, logger *log.Logger) *TaskStore {
	s := &TaskStore{api: client, criteria: filter.DefaultCriteria()}
	s.setLogger(logger)
	return s
}

// UseCache saves every fetched list to c and falls back to it when a fetch
// fails before anything was loaded.
func (s *TaskStore) UseCache(c TaskCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c
}

func query(c filter.Criteria) api.TaskQuery {
	return api.TaskQuery{
		Status:    c.Status,
		Priority:  c.Priority,
		Search:    strings.TrimSpace(c.Search),
		SortBy:    string(c.SortBy),
		SortOrder: string(c.Order),
	}
}

// Fetch reloads the list for the current criteria. An answer is dropped when
// a later fetch has already been applied.
func (s *TaskStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	seq := s.begin()
	q := query(s.criteria)
	s.mu.Unlock()

	tasks, err := s.api.ListTasks(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish(seq) {
		return err
	}
	if err != nil {
		s.fallback()
		return s.fail(err, "Failed to fetch tasks")
	}
	s.tasks, s.err, s.stale = tasks, "", false
	if s.cache != nil {
		if err := s.cache.SaveTasks(tasks); err != nil {
			s.logger.Printf("Warning: could not cache tasks: %v", err)
		}
	}
	return nil
}

// fallback loads the cached list when nothing has been fetched yet. Callers hold mu.
func (s *TaskStore) fallback() {
	if s.cache == nil || len(s.tasks) > 0 {
		return
	}
	cached, err := s.cache.LoadTasks()
	if err != nil {
		s.logger.Printf("Warning: could not read cached tasks: %v", err)
		return
	}
	if len(cached) > 0 {
		s.tasks, s.stale = cached, true
	}
}

// FetchOne loads a single task as the current one.
func (s *TaskStore) FetchOne(ctx context.Context, id string) (model.Task, error) {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()

	task, err := s.api.GetTask(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		if api.IsNotFound(err) {
			s.current = nil
			return model.Task{}, s.fail(err, "Task not found")
		}
		return model.Task{}, s.fail(err, "Failed to fetch task")
	}
	s.err = ""
	s.current = &task
	s.replace(task)
	return task, nil
}

// Create adds a task and appends it to the list.
func (s *TaskStore) Create(ctx context.Context, in api.TaskInput) (model.Task, error) {
	if err := in.Validate(); err != nil {
		return model.Task{}, s.reject(err)
	}
	task, err := s.api.CreateTask(ctx, in)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return model.Task{}, s.fail(err, "Failed to create task")
	}
	s.err = ""
	s.tasks = append(s.tasks, task)
	return task, nil
}

// Update changes a task and replaces it in place.
func (s *TaskStore) Update(ctx context.Context, id string, in api.TaskInput) (model.Task, error) {
	if err := in.ValidateUpdate(); err != nil {
		return model.Task{}, s.reject(err)
	}
	return s.mutate(id, "Failed to update task", func() (model.Task, error) {
		return s.api.UpdateTask(ctx, id, in)
	})
}

// Delete removes a task.
func (s *TaskStore) Delete(ctx context.Context, id string) error {
	err := s.api.DeleteTask(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to delete task")
	}
	s.err = ""
	s.tasks = slices.DeleteFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	return nil
}

// Assign replaces the task's assignees.
func (s *TaskStore) Assign(ctx context.Context, id string, userIDs []string) (model.Task, error) {
	return s.mutate(id, "Failed to assign users", func() (model.Task, error) {
		return s.api.AssignUsers(ctx, id, userIDs)
	})
}

// StopWork pauses a task. A reason is required.
func (s *TaskStore) StopWork(ctx context.Context, id, reason string) (model.Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.Task{}, s.reject(api.Invalid("reason", "is required"))
	}
	return s.mutate(id, "Failed to stop work", func() (model.Task, error) {
		return s.api.StopWork(ctx, id, reason)
	})
}

// ResumeWork restarts a paused task.
func (s *TaskStore) ResumeWork(ctx context.Context, id string) (model.Task, error) {
	return s.mutate(id, "Failed to resume work", func() (model.Task, error) {
		return s.api.ResumeWork(ctx, id)
	})
}

// UpdateProgress sets the manual progress override, 0 to 100.
func (s *TaskStore) UpdateProgress(ctx context.Context, id string, pct float64, comment string) (model.Task, error) {
	if pct < 0 || pct > 100 {
		return model.Task{}, s.reject(api.Invalid("progress", "must be between 0 and 100"))
	}
	in := api.ProgressInput{ManualProgress: pct, Comment: strings.TrimSpace(comment)}
	return s.mutate(id, "Failed to update progress", func() (model.Task, error) {
		return s.api.UpdateProgress(ctx, id, in)
	})
}

// RequestHelp notifies the task's creator that an assignee needs help.
func (s *TaskStore) RequestHelp(ctx context.Context, id string) error {
	err := s.api.RequestHelp(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to request help")
	}
	s.err = ""
	return nil
}

func (s *TaskStore) mutate(id, fallback string, call func() (model.Task, error)) (model.Task, error) {
	task, err := call()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return model.Task{}, s.fail(err, fallback)
	}
	if task.ID == "" {
		task.ID = id
	}
	s.err = ""
	s.replace(task)
	return task, nil
}

func (s *TaskStore) reject(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = api.Message(err, "Invalid input")
	return err
}

// replace swaps the stored copies of task. Callers hold mu.
func (s *TaskStore) replace(task model.Task) {
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			s.tasks[i] = task
		}
	}
	if s.current != nil && s.current.ID == task.ID {
		t := task
		s.current = &t
	}
}

// SetFilters replaces the criteria. Changing a server-side dimension
// (status, priority, search, sort) refetches; the quick filter and locale
// only change what Visible returns.
func (s *TaskStore) SetFilters(ctx context.Context, c filter.Criteria) error {
	s.mu.Lock()
	refetch := query(c) != query(s.criteria)
	s.criteria = c
	s.mu.Unlock()
	if !refetch {
		return nil
	}
	return s.Fetch(ctx)
}

// Restore sets the criteria without contacting the backend, for saved
// preferences applied before the first Fetch.
func (s *TaskStore) Restore(c filter.Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
}

// SetQuickFilter changes the quick filter without contacting the backend.
func (s *TaskStore) SetQuickFilter(q filter.Quick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Quick = q
}

// Visible returns the list as the dashboard shows it at now.
func (s *TaskStore) Visible(now time.Time) []model.Task {
	s.mu.Lock()
	tasks, c := slices.Clone(s.tasks), s.criteria
	s.mu.Unlock()
	return filter.Apply(tasks, c, now)
}

// Stats counts the unfiltered list for the dashboard cards.
func (s *TaskStore) Stats(now time.Time) filter.Stats {
	s.mu.Lock()
	tasks := slices.Clone(s.tasks)
	s.mu.Unlock()
	return filter.Count(tasks, now)
}

// Snapshot copies the store's state.
func (s *TaskStore) Snapshot() TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := TaskState{
		Tasks:    slices.Clone(s.tasks),
		Criteria: s.criteria,
		Loading:  s.loading > 0,
		Error:    s.err,
		Stale:    s.stale,
	}
	if s.current != nil {
		t := *s.current
		state.Current = &t
	}
	return state
}
