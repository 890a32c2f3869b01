package store

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/api/apitest"
	"github.com/harrisonrobin/flowdesk/pkg/filter"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

var now = time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC)

func day(d int) model.Time {
	return model.NewTime(time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC))
}

func newBackend(t *testing.T) (*apitest.Server, *api.Client) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	token := srv.AddUser(model.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}, "")
	client := api.NewClient(api.Options{
		BaseURL: srv.APIURL(),
		Tokens:  oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	})
	return srv, client
}

func seed(srv *apitest.Server) {
	srv.AddTask(model.Task{ID: "t1", Title: "Draft plan", Status: model.StatusInProgress, Priority: model.PriorityLow,
		StartDate: day(1), EndDate: day(11), CreatedAt: day(1)})
	srv.AddTask(model.Task{ID: "t2", Title: "Review budget", Status: model.StatusNotStarted, Priority: model.PriorityCritical,
		StartDate: day(1), EndDate: day(8), CreatedAt: day(2)})
	srv.AddTask(model.Task{ID: "t3", Title: "Ship release", Status: model.StatusCompleted, Priority: model.PriorityMedium,
		StartDate: day(1), EndDate: day(9), CreatedAt: day(3)})
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFetchReplacesCollection(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	s := NewTaskStore(client, nil)

	require.NoError(t, s.Fetch(context.Background()))
	state := s.Snapshot()
	assert.Len(t, state.Tasks, 3)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)

	// Default criteria: newest first.
	assert.Equal(t, []string{"t3", "t2", "t1"}, ids(s.Visible(now)))
}

func TestFetchFailureRecordsMessage(t *testing.T) {
	srv, client := newBackend(t)
	srv.Fail("GET /tasks", apitest.Failure{Status: http.StatusInternalServerError, Message: "database offline"})
	s := NewTaskStore(client, nil)

	err := s.Fetch(context.Background())
	require.Error(t, err)
	state := s.Snapshot()
	assert.Equal(t, "database offline", state.Error)
	assert.False(t, state.Loading)

	srv.Fail("GET /tasks", apitest.Failure{Status: http.StatusBadGateway})
	require.Error(t, s.Fetch(context.Background()))
	assert.Equal(t, "Failed to fetch tasks", s.Snapshot().Error)

	srv.Fail("GET /tasks", apitest.Failure{})
	require.NoError(t, s.Fetch(context.Background()))
	assert.Empty(t, s.Snapshot().Error)
}

func TestMutationsReconcile(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	s := NewTaskStore(client, nil)
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))

	created, err := s.Create(ctx, api.TaskInput{Title: "New one", Priority: model.PriorityHigh})
	require.NoError(t, err)
	tasks := s.Snapshot().Tasks
	require.Len(t, tasks, 4)
	assert.Equal(t, created.ID, tasks[3].ID)

	_, err = s.Update(ctx, "t1", api.TaskInput{Title: "Draft plan v2"})
	require.NoError(t, err)
	assert.Equal(t, "Draft plan v2", s.Snapshot().Tasks[0].Title)

	paused, err := s.StopWork(ctx, "t1", "blocked by legal")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, paused.Status)
	assert.Equal(t, model.StatusPaused, s.Snapshot().Tasks[0].Status)

	_, err = s.ResumeWork(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, s.Snapshot().Tasks[0].Status)

	_, err = s.UpdateProgress(ctx, "t2", 40, "halfway-ish")
	require.NoError(t, err)
	require.NotNil(t, s.Snapshot().Tasks[1].ManualProgress)
	assert.Equal(t, 40.0, *s.Snapshot().Tasks[1].ManualProgress)

	_, err = s.Assign(ctx, "t2", []string{"u1"})
	require.NoError(t, err)
	assert.True(t, s.Snapshot().Tasks[1].IsAssigned("u1"))

	require.NoError(t, s.RequestHelp(ctx, "t2"))
	assert.Equal(t, []string{"t2"}, srv.HelpRequests())

	require.NoError(t, s.Delete(ctx, "t3"))
	assert.Equal(t, []string{"t1", "t2", created.ID}, ids(s.Snapshot().Tasks))
}

func TestValidationBlocksRequests(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	s := NewTaskStore(client, nil)
	ctx := context.Background()

	_, err := s.Create(ctx, api.TaskInput{Description: "no title"})
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Contains(t, s.Snapshot().Error, "title")

	_, err = s.StopWork(ctx, "t1", "  ")
	assert.ErrorIs(t, err, api.ErrValidation)

	_, err = s.UpdateProgress(ctx, "t1", 120, "")
	assert.ErrorIs(t, err, api.ErrValidation)

	assert.Zero(t, srv.Hits("POST /tasks"))
	assert.Zero(t, srv.Hits("POST /tasks/{id}/stop"))
	assert.Zero(t, srv.Hits("PUT /tasks/{id}/progress"))
}

func TestFetchOne(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	s := NewTaskStore(client, nil)
	ctx := context.Background()

	task, err := s.FetchOne(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "Review budget", task.Title)
	require.NotNil(t, s.Snapshot().Current)

	_, err = s.Update(ctx, "t2", api.TaskInput{Title: "Review Q1 budget"})
	require.NoError(t, err)
	assert.Equal(t, "Review Q1 budget", s.Snapshot().Current.Title)

	_, err = s.FetchOne(ctx, "missing")
	assert.True(t, api.IsNotFound(err))
	assert.Equal(t, "Task not found", s.Snapshot().Error)
	assert.Nil(t, s.Snapshot().Current)
}

func TestSetFiltersRefetchesOnServerDimensions(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	s := NewTaskStore(client, nil)
	ctx := context.Background()
	require.NoError(t, s.Fetch(ctx))
	require.Equal(t, 1, srv.Hits("GET /tasks"))

	c := s.Snapshot().Criteria
	c.Quick = filter.QuickOverdue
	require.NoError(t, s.SetFilters(ctx, c))
	assert.Equal(t, 1, srv.Hits("GET /tasks"), "quick filter is client-side")

	s.SetQuickFilter(filter.QuickAll)
	assert.Equal(t, 1, srv.Hits("GET /tasks"))

	c = s.Snapshot().Criteria
	c.Status = string(model.StatusCompleted)
	require.NoError(t, s.SetFilters(ctx, c))
	assert.Equal(t, 2, srv.Hits("GET /tasks"))
	assert.Equal(t, []string{"t3"}, ids(s.Snapshot().Tasks))
}

func TestQuickFilterAndStats(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	s := NewTaskStore(client, nil)
	require.NoError(t, s.Fetch(context.Background()))

	s.SetQuickFilter(filter.QuickOverdue)
	assert.Equal(t, []string{"t2"}, ids(s.Visible(now)))

	s.SetQuickFilter(filter.QuickToday)
	assert.Equal(t, []string{"t3"}, ids(s.Visible(now)))

	stats := s.Stats(now)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Overdue)
}

func TestRequestOrderWins(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	s := NewTaskStore(client, nil)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	srv.BeforeList = func(query string) {
		if strings.Contains(query, "status=completed") {
			close(entered)
			<-release
		}
	}

	slow := s.Snapshot().Criteria
	slow.Status = string(model.StatusCompleted)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SetFilters(ctx, slow)
	}()
	<-entered

	fast := slow
	fast.Status = filter.All
	require.NoError(t, s.SetFilters(ctx, fast))
	assert.True(t, s.Snapshot().Loading, "older fetch still in flight")

	close(release)
	wg.Wait()

	state := s.Snapshot()
	assert.Len(t, state.Tasks, 3, "stale answer must not overwrite the newer one")
	assert.False(t, state.Loading)
}

type memoryCache struct {
	tasks []model.Task
	err   error
}

func (m *memoryCache) SaveTasks(tasks []model.Task) error {
	m.tasks = tasks
	return m.err
}

func (m *memoryCache) LoadTasks() ([]model.Task, error) {
	return m.tasks, m.err
}

func TestCacheFallback(t *testing.T) {
	srv, client := newBackend(t)
	seed(srv)
	cache := &memoryCache{}

	s := NewTaskStore(client, nil)
	s.UseCache(cache)
	require.NoError(t, s.Fetch(context.Background()))
	assert.Len(t, cache.tasks, 3)

	srv.Fail("GET /tasks", apitest.Failure{Status: http.StatusServiceUnavailable})
	offline := NewTaskStore(client, nil)
	offline.UseCache(cache)
	require.Error(t, offline.Fetch(context.Background()))

	state := offline.Snapshot()
	assert.True(t, state.Stale)
	assert.Len(t, state.Tasks, 3)
	assert.NotEmpty(t, state.Error)

	broken := NewTaskStore(client, nil)
	broken.UseCache(&memoryCache{err: errors.New("disk gone")})
	require.Error(t, broken.Fetch(context.Background()))
	assert.Empty(t, broken.Snapshot().Tasks)
}
