package api_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/api/apitest"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

func newClient(t *testing.T) (*apitest.Server, *api.Client, *int) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	token := srv.AddUser(model.User{ID: "u1", Name: "Ada", Email: "ada@example.com"}, "secret")
	unauthorized := 0
	client := api.NewClient(api.Options{
		BaseURL:        srv.APIURL(),
		Tokens:         oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		OnUnauthorized: func() { unauthorized++ },
	})
	return srv, client, &unauthorized
}

func TestTaskLifecycle(t *testing.T) {
	srv, client, _ := newClient(t)
	ctx := context.Background()
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	created, err := client.CreateTask(ctx, api.TaskInput{Title: "Write report", Priority: model.PriorityHigh, EndDate: &end})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusNotStarted, created.Status)
	assert.Equal(t, "u1", created.CreatedBy.ID)
	assert.True(t, created.EndDate.Equal(end))

	got, err := client.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", got.Title)

	updated, err := client.UpdateTask(ctx, created.ID, api.TaskInput{Status: model.StatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, updated.Status)
	assert.Equal(t, "Write report", updated.Title)

	list, err := client.ListTasks(ctx, api.TaskQuery{Status: "in-progress", Priority: "all"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, srv.Hits("GET /tasks"))

	require.NoError(t, client.DeleteTask(ctx, created.ID))
	_, err = client.GetTask(ctx, created.ID)
	assert.True(t, api.IsNotFound(err))
}

func TestTaskWorkflow(t *testing.T) {
	srv, client, _ := newClient(t)
	ctx := context.Background()
	task := srv.AddTask(model.Task{Title: "Ship", Status: model.StatusInProgress})

	stopped, err := client.StopWork(ctx, task.ID, "waiting on review")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPaused, stopped.Status)
	require.Len(t, stopped.StopLogs, 1)
	assert.Equal(t, "waiting on review", stopped.StopLogs[0].Reason)

	resumed, err := client.ResumeWork(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, resumed.Status)
	assert.False(t, resumed.StopLogs[0].ResumedAt.IsZero())

	done, err := client.UpdateProgress(ctx, task.ID, api.ProgressInput{ManualProgress: 100})
	require.NoError(t, err)
	require.NotNil(t, done.ManualProgress)
	assert.Equal(t, 100.0, *done.ManualProgress)
	assert.Equal(t, model.StatusCompleted, done.Status)

	assigned, err := client.AssignUsers(ctx, task.ID, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, assigned.AssignedUsers, 2)

	require.NoError(t, client.RequestHelp(ctx, task.ID))
	assert.Equal(t, []string{task.ID}, srv.HelpRequests())
}

func TestErrorCarriesServerMessage(t *testing.T) {
	srv, client, _ := newClient(t)
	srv.Fail("GET /tasks", apitest.Failure{Status: http.StatusInternalServerError, Message: "database offline"})

	_, err := client.ListTasks(context.Background(), api.TaskQuery{})
	require.Error(t, err)

	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "database offline", api.Message(err, "fallback"))
	assert.False(t, api.IsNotFound(err))
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "Login failed", api.Message(errors.New("dial tcp: refused"), "Login failed"))
	assert.Equal(t, "Login failed", api.Message(&api.Error{Status: 500}, "Login failed"))
	assert.Contains(t, api.Message(api.Invalid("title", "is required"), "x"), "title is required")
}

func TestUnauthorizedHook(t *testing.T) {
	srv, client, unauthorized := newClient(t)
	srv.Revoke()

	_, err := client.ListTasks(context.Background(), api.TaskQuery{})
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, 1, *unauthorized)
}

func TestPublicEndpointsSkipToken(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser(model.User{Name: "Ada", Email: "ada@example.com"}, "")

	failing := oauth2.TokenSource(failingSource{})
	client := api.NewClient(api.Options{BaseURL: srv.APIURL(), Tokens: failing})

	msg, err := client.SendOTP(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, msg, "ada@example.com")

	resp, err := client.Login(context.Background(), api.LoginRequest{Email: "ada@example.com", OTP: apitest.OTP})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Ada", resp.User.Name)

	_, err = client.Me(context.Background())
	assert.ErrorIs(t, err, api.ErrNoSession)
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) { return nil, api.ErrNoSession }

func TestNotifications(t *testing.T) {
	srv, client, _ := newClient(t)
	ctx := context.Background()
	first := srv.AddNotification(model.Notification{Title: "Assigned", Message: "You were assigned"})
	srv.AddNotification(model.Notification{Title: "Comment", Message: "New comment", IsRead: true})

	page, err := client.ListNotifications(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 1, page.UnreadCount)

	require.NoError(t, client.MarkNotificationRead(ctx, first.ID))
	count, err := client.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, client.DeleteNotification(ctx, first.ID))
	page, err = client.ListNotifications(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
}

func TestTaskQueryOmitsAll(t *testing.T) {
	var seen string
	srv, client, _ := newClient(t)
	srv.BeforeList = func(query string) { seen = query }

	_, err := client.ListTasks(context.Background(), api.TaskQuery{Status: "all", Priority: "", Search: "report", SortBy: "endDate", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, "search=report&sortBy=endDate&sortOrder=asc", seen)
}

func TestValidate(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	assert.ErrorIs(t, api.TaskInput{}.Validate(), api.ErrValidation)
	assert.ErrorIs(t, api.TaskInput{Title: "x", Status: "done"}.Validate(), api.ErrValidation)
	assert.ErrorIs(t, api.TaskInput{Title: "x", StartDate: &start, EndDate: &end}.Validate(), api.ErrValidation)
	assert.NoError(t, api.TaskInput{Priority: model.PriorityLow}.ValidateUpdate())
}
