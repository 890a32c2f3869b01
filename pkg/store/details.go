package store

import (
	"cmp"
	"context"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// DetailAPI is the part of the backend behind a task's detail page.
type DetailAPI interface {
	ListComments(ctx context.Context, taskID string) ([]model.Comment, error)
	AddComment(ctx context.Context, taskID, text string) (model.Comment, error)
	UpdateComment(ctx context.Context, taskID, commentID, text string) (model.Comment, error)
	DeleteComment(ctx context.Context, taskID, commentID string) error

	ListSteps(ctx context.Context, taskID string) ([]model.Step, error)
	CreateStep(ctx context.Context, taskID string, in api.StepInput) (model.Step, error)
	UpdateStep(ctx context.Context, stepID string, in api.StepInput) (model.Step, error)
	ActivateStep(ctx context.Context, stepID string) (model.Step, error)
	CompleteStep(ctx context.Context, stepID string) (model.Step, error)
	DeleteStep(ctx context.Context, stepID string) error

	ListActivities(ctx context.Context, taskID string) ([]model.Activity, error)

	ListUpdates(ctx context.Context, taskID string) ([]model.TaskUpdate, error)
	CreateUpdate(ctx context.Context, taskID string, in api.UpdateInput) (model.TaskUpdate, error)
	DeleteUpdate(ctx context.Context, updateID string) error
}

// DetailState is a point-in-time copy of a DetailStore.
type DetailState struct {
	TaskID     string
	Comments   []model.Comment
	Steps      []model.Step
	Updates    []model.TaskUpdate
	Activities []model.Activity
	Loading    bool
	Error      string
}

// DetailStore holds the sub-resources of one task.
type DetailStore struct {
	base
	api        DetailAPI
	taskID     string
	comments   []model.Comment
	steps      []model.Step
	updates    []model.TaskUpdate
	activities []model.Activity
}

// NewDetailStore creates a store for the task with the given id.
func NewDetailStore(client DetailAPI, taskID string, logger *log.Logger) *DetailStore {
	s := &DetailStore{api: client, taskID: taskID}
	s.setLogger(logger)
	return s
}

// Load fetches comments, steps, updates and activity. Every list is
// attempted; the first failure is returned.
func (s *DetailStore) Load(ctx context.Context) error {
	var first error
	for _, fetch := range []func(context.Context) error{
		s.FetchComments,
		s.FetchSteps,
		s.FetchUpdates,
		s.FetchActivities,
	} {
		if err := fetch(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// load runs one list fetch with the shared loading and error bookkeeping.
func load[T any](ctx context.Context, s *DetailStore, fallback string, call func(context.Context, string) ([]T, error), apply func([]T)) error {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()

	items, err := call(ctx, s.taskID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		return s.fail(err, fallback)
	}
	apply(items)
	return nil
}

func (s *DetailStore) FetchComments(ctx context.Context) error {
	return load(ctx, s, "Failed to load comments", s.api.ListComments, func(c []model.Comment) { s.comments = c })
}

func (s *DetailStore) FetchSteps(ctx context.Context) error {
	return load(ctx, s, "Failed to load steps", s.api.ListSteps, func(st []model.Step) { s.steps = st })
}

func (s *DetailStore) FetchUpdates(ctx context.Context) error {
	return load(ctx, s, "Failed to load updates", s.api.ListUpdates, func(u []model.TaskUpdate) {
		s.updates = u
		sortUpdates(s.updates)
	})
}

func (s *DetailStore) FetchActivities(ctx context.Context) error {
	return load(ctx, s, "Failed to load activity", s.api.ListActivities, func(a []model.Activity) { s.activities = a })
}

func (s *DetailStore) reject(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = api.Message(err, "Invalid input")
	return err
}

// AddComment posts a comment and appends it.
func (s *DetailStore) AddComment(ctx context.Context, text string) (model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, s.reject(api.Invalid("comment", "is required"))
	}
	c, err := s.api.AddComment(ctx, s.taskID, text)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return model.Comment{}, s.fail(err, "Failed to add comment")
	}
	s.err = ""
	s.comments = append(s.comments, c)
	return c, nil
}

// EditComment changes a comment's text.
func (s *DetailStore) EditComment(ctx context.Context, commentID, text string) (model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Comment{}, s.reject(api.Invalid("comment", "is required"))
	}
	c, err := s.api.UpdateComment(ctx, s.taskID, commentID, text)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return model.Comment{}, s.fail(err, "Failed to update comment")
	}
	s.err = ""
	for i := range s.comments {
		if s.comments[i].ID == commentID {
			s.comments[i] = c
		}
	}
	return c, nil
}

// DeleteComment removes a comment.
func (s *DetailStore) DeleteComment(ctx context.Context, commentID string) error {
	err := s.api.DeleteComment(ctx, s.taskID, commentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to delete comment")
	}
	s.err = ""
	s.comments = slices.DeleteFunc(s.comments, func(c model.Comment) bool { return c.ID == commentID })
	return nil
}

// CreateStep adds a step to the task.
func (s *DetailStore) CreateStep(ctx context.Context, in api.StepInput) (model.Step, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.Step{}, s.reject(api.Invalid("title", "is required"))
	}
	in.TaskID = s.taskID
	return s.changeStep(ctx, "Failed to save step", func() (model.Step, error) {
		return s.api.CreateStep(ctx, s.taskID, in)
	})
}

// UpdateStep edits a step.
func (s *DetailStore) UpdateStep(ctx context.Context, stepID string, in api.StepInput) (model.Step, error) {
	return s.changeStep(ctx, "Failed to save step", func() (model.Step, error) {
		return s.api.UpdateStep(ctx, stepID, in)
	})
}

// ActivateStep makes a step the active one.
func (s *DetailStore) ActivateStep(ctx context.Context, stepID string) (model.Step, error) {
	return s.changeStep(ctx, "Failed to activate step", func() (model.Step, error) {
		return s.api.ActivateStep(ctx, stepID)
	})
}

// CompleteStep marks a step done.
func (s *DetailStore) CompleteStep(ctx context.Context, stepID string) (model.Step, error) {
	return s.changeStep(ctx, "Failed to complete step", func() (model.Step, error) {
		return s.api.CompleteStep(ctx, stepID)
	})
}

// changeStep applies a step mutation and then reloads the list, since the
// backend may renumber steps or move the active flag. If the reload fails
// the returned step is merged in by id.
func (s *DetailStore) changeStep(ctx context.Context, fallback string, call func() (model.Step, error)) (model.Step, error) {
	step, err := call()
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return model.Step{}, s.fail(err, fallback)
	}
	steps, listErr := s.api.ListSteps(ctx, s.taskID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ""
	if listErr == nil {
		s.steps = steps
		return step, nil
	}
	s.logger.Printf("Warning: could not reload steps: %v", listErr)
	if i := slices.IndexFunc(s.steps, func(st model.Step) bool { return st.ID == step.ID }); i >= 0 {
		s.steps[i] = step
	} else {
		s.steps = append(s.steps, step)
	}
	return step, nil
}

// DeleteStep removes a step.
func (s *DetailStore) DeleteStep(ctx context.Context, stepID string) error {
	err := s.api.DeleteStep(ctx, stepID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to delete step")
	}
	s.err = ""
	s.steps = slices.DeleteFunc(s.steps, func(st model.Step) bool { return st.ID == stepID })
	return nil
}

// ValidateUpdate checks a progress note before it is posted. The date must
// fall on a day between the task's start and end dates, inclusive.
func ValidateUpdate(task model.Task, text string, date time.Time) error {
	if strings.TrimSpace(text) == "" {
		return api.Invalid("update", "text is required")
	}
	if date.IsZero() {
		return api.Invalid("update", "date is required")
	}
	day := dayOf(date)
	if !task.StartDate.IsZero() && day.Before(dayOf(task.StartDate.DateIn(date.Location()))) {
		return api.Invalid("update", "date must be between task start date and end date")
	}
	if !task.EndDate.IsZero() && day.After(dayOf(task.EndDate.DateIn(date.Location()))) {
		return api.Invalid("update", "date must be between task start date and end date")
	}
	return nil
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddUpdate posts a dated progress note on task, which must be the store's task.
func (s *DetailStore) AddUpdate(ctx context.Context, task model.Task, text string, date time.Time) (model.TaskUpdate, error) {
	if err := ValidateUpdate(task, text, date); err != nil {
		return model.TaskUpdate{}, s.reject(err)
	}
	u, err := s.api.CreateUpdate(ctx, s.taskID, api.UpdateInput{UpdateText: strings.TrimSpace(text), UpdateDate: date})
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return model.TaskUpdate{}, s.fail(err, "Failed to add update")
	}
	s.err = ""
	s.updates = append(s.updates, u)
	sortUpdates(s.updates)
	return u, nil
}

// DeleteUpdate removes a progress note.
func (s *DetailStore) DeleteUpdate(ctx context.Context, updateID string) error {
	err := s.api.DeleteUpdate(ctx, updateID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to delete update")
	}
	s.err = ""
	s.updates = slices.DeleteFunc(s.updates, func(u model.TaskUpdate) bool { return u.ID == updateID })
	return nil
}

// sortUpdates orders notes newest first.
func sortUpdates(updates []model.TaskUpdate) {
	slices.SortStableFunc(updates, func(a, b model.TaskUpdate) int {
		return cmp.Compare(b.UpdateDate.UnixNano(), a.UpdateDate.UnixNano())
	})
}

// Snapshot copies the store's state.
func (s *DetailStore) Snapshot() DetailState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return DetailState{
		TaskID:     s.taskID,
		Comments:   slices.Clone(s.comments),
		Steps:      slices.Clone(s.steps),
		Updates:    slices.Clone(s.updates),
		Activities: slices.Clone(s.activities),
		Loading:    s.loading > 0,
		Error:      s.err,
	}
}
