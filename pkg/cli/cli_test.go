package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/flowdesk/pkg/api/apitest"
	"github.com/harrisonrobin/flowdesk/pkg/config"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

var fixedNow = time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC)

var ada = model.User{ID: "u-ada", Name: "Ada Lovelace", Email: "ada@example.com", Role: model.RoleUser}

type harness struct {
	t   *testing.T
	srv *apitest.Server
	dir string
}

type result struct {
	code   int
	stdout string
	stderr string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.DirEnv, dir)

	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.Now = func() time.Time { return fixedNow }
	srv.AddUser(ada, "secret")
	return &harness{t: t, srv: srv, dir: dir}
}

// run executes one command line the way a fresh process would.
func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()
	app := NewApp(nil)
	app.In = strings.NewReader(stdin)
	app.Now = func() time.Time { return fixedNow }
	app.Password = func(string) (string, error) { return "secret", nil }

	var out, errOut bytes.Buffer
	code := Execute(app, append([]string{"--api-url", h.srv.APIURL()}, args...), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func (h *harness) ok(args ...string) string {
	h.t.Helper()
	r := h.run("", args...)
	require.Equal(h.t, 0, r.code, "stderr: %s", r.stderr)
	return r.stdout
}

func (h *harness) fails(args ...string) string {
	h.t.Helper()
	r := h.run("", args...)
	require.Equal(h.t, 1, r.code, "stdout: %s", r.stdout)
	return r.stderr
}

func (h *harness) login() {
	h.t.Helper()
	h.ok("login", ada.Email, "--code", apitest.OTP)
}

func (h *harness) addTask(title string, status model.Status, start, end string) model.Task {
	h.t.Helper()
	task := model.Task{
		Title:     title,
		Status:    status,
		Priority:  model.PriorityMedium,
		CreatedBy: model.UserRef{ID: ada.ID, Name: ada.Name},
		CreatedAt: model.NewTime(fixedNow.Add(-48 * time.Hour)),
	}
	if start != "" {
		task.StartDate = mustTime(h.t, start)
	}
	if end != "" {
		task.EndDate = mustTime(h.t, end)
	}
	return h.srv.AddTask(task)
}

func mustTime(t *testing.T, s string) model.Time {
	t.Helper()
	v, err := model.ParseTime(s)
	require.NoError(t, err)
	return v
}

// seed adds one overdue, one due-today and one completed task.
func (h *harness) seed() (overdue, today, done model.Task) {
	overdue = h.addTask("Ship invoices", model.StatusInProgress, "2024-01-01T00:00:00Z", "2024-01-05T00:00:00Z")
	today = h.addTask("Call supplier", model.StatusNotStarted, "2024-01-02T00:00:00Z", "2024-01-09T18:00:00Z")
	done = h.addTask("Archive logs", model.StatusCompleted, "2023-12-20T00:00:00Z", "2024-01-03T00:00:00Z")
	return
}

func TestLoginWithCode(t *testing.T) {
	h := newHarness(t)

	out := h.ok("login", ada.Email, "--code", apitest.OTP)
	assert.Equal(t, "Signed in as Ada Lovelace <ada@example.com>\n", out)

	out = h.ok("whoami")
	assert.Contains(t, out, "Ada Lovelace <ada@example.com>")
	assert.Contains(t, out, "role: user")
	assert.FileExists(t, filepath.Join(h.dir, "session.json"))
}

func TestLoginPromptsForCode(t *testing.T) {
	h := newHarness(t)

	r := h.run(apitest.OTP+"\n", "login", ada.Email)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stderr, "OTP sent to ada@example.com")
	assert.Contains(t, r.stderr, "Code: ")
	assert.Contains(t, r.stdout, "Signed in as Ada Lovelace")
	assert.Equal(t, 1, h.srv.Hits("POST /auth/send-otp"))
}

func TestLoginWithPassword(t *testing.T) {
	h := newHarness(t)

	out := h.ok("login", ada.Email, "--password")
	assert.Contains(t, out, "Signed in as Ada Lovelace")
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)

	stderr := h.fails("login", ada.Email, "--code", "000000")
	assert.Equal(t, "Error: Invalid or expired OTP\n", stderr)

	stderr = h.fails("whoami")
	assert.Contains(t, stderr, "not signed in, run `flowdesk login`")
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	out := h.ok("register", "Grace Hopper", "grace@example.com", "--password")
	assert.Equal(t, "Signed in as Grace Hopper <grace@example.com>\n", out)

	stderr := h.fails("register", "Ada", ada.Email)
	assert.Contains(t, stderr, "User already exists")
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.seed()
	h.ok("tasks", "list")

	assert.Equal(t, "Signed out\n", h.ok("logout"))
	assert.Contains(t, h.fails("tasks", "list"), "not signed in")
}

func TestCommandsNeedSession(t *testing.T) {
	h := newHarness(t)

	for _, args := range [][]string{
		{"tasks", "list"},
		{"tasks", "show", "t1"},
		{"notifications", "list"},
		{"comments", "list", "t1"},
		{"users", "list"},
	} {
		stderr := h.fails(args...)
		assert.Equal(t, "Error: not signed in, run `flowdesk login`\n", stderr, strings.Join(args, " "))
	}
	assert.Zero(t, h.srv.Hits("GET /tasks"))
}

func TestSessionExpired(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.seed()
	h.ok("tasks", "list")

	h.srv.Revoke()
	stderr := h.fails("tasks", "list")
	assert.Equal(t, "Error: session expired, run `flowdesk login`\n", stderr)

	// The 401 cleared the saved session.
	stderr = h.fails("tasks", "list")
	assert.Contains(t, stderr, "not signed in")
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login()

	out := h.ok("-o", "json", "tasks", "create",
		"--title", "Write report",
		"--description", "Needs the **churn** chart.",
		"--priority", "high",
		"--start", "2024-01-08",
		"--end", "2024-01-12")
	var created map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "high", created["priority"])
	assert.Contains(t, created, "progress")

	stored, ok := h.srv.Task(id)
	require.True(t, ok)
	assert.Equal(t, "Write report", stored.Title)
	assert.Equal(t, ada.ID, stored.CreatedBy.ID)

	out = h.ok("tasks", "list")
	assert.Contains(t, out, "Total 1  Today 0  Upcoming 1  Overdue 0")
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, "3 days left")

	out = h.ok("tasks", "show", id)
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, "priority:  high")
	assert.Contains(t, out, "actions:   edit, delete")
	assert.Contains(t, out, "churn")

	out = h.ok("tasks", "update", id, "--status", "in-progress")
	assert.Equal(t, "Updated task "+id+": Write report\n", out)

	out = h.ok("tasks", "progress", id, "40%", "-m", "draft done")
	assert.Contains(t, out, "Write report")
	assert.Contains(t, out, " 40%")
	stored, _ = h.srv.Task(id)
	require.NotNil(t, stored.ManualProgress)
	assert.InDelta(t, 40, *stored.ManualProgress, 0.001)

	r := h.run("n\n", "tasks", "delete", id)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, `Delete task "Write report"? [y/n]: `)
	assert.Contains(t, r.stderr, "Error: cancelled")
	_, ok = h.srv.Task(id)
	assert.True(t, ok)

	out = h.ok("--yes", "tasks", "delete", id)
	assert.Equal(t, "Deleted task "+id+"\n", out)
	_, ok = h.srv.Task(id)
	assert.False(t, ok)
}

func TestTaskCreateValidation(t *testing.T) {
	h := newHarness(t)
	h.login()

	stderr := h.fails("tasks", "create", "--priority", "high")
	assert.Equal(t, "Error: invalid input: title is required\n", stderr)

	stderr = h.fails("tasks", "create", "--title", "X", "--end", "next week")
	assert.Contains(t, stderr, "end must be a date like 2024-01-31")

	stderr = h.fails("tasks", "create", "--title", "X", "--start", "2024-02-01", "--end", "2024-01-01")
	assert.Contains(t, stderr, "endDate must not be before startDate")

	assert.Zero(t, h.srv.Hits("POST /tasks"))
}

func TestTasksNotFound(t *testing.T) {
	h := newHarness(t)
	h.login()

	assert.Equal(t, "Error: task not found\n", h.fails("tasks", "show", "missing"))
	assert.Equal(t, "Error: task not found\n", h.fails("tasks", "resume", "missing"))
	assert.Equal(t, "Error: task not found\n", h.fails("--yes", "tasks", "delete", "missing"))
}

func TestTasksListFilters(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.seed()

	out := h.ok("tasks", "list")
	assert.Contains(t, out, "Total 3  Today 1  Upcoming 1  Overdue 1")
	assert.Contains(t, out, "4 days overdue")

	out = h.ok("tasks", "list", "--quick", "overdue")
	assert.Contains(t, out, "Ship invoices")
	assert.NotContains(t, out, "Call supplier")
	assert.NotContains(t, out, "Archive logs")
	// Stats cover the whole list, not just the visible rows.
	assert.Contains(t, out, "Total 3")

	out = h.ok("tasks", "list", "--quick", "today")
	assert.Contains(t, out, "Call supplier")
	assert.NotContains(t, out, "Ship invoices")

	out = h.ok("tasks", "list", "--status", "completed")
	assert.Contains(t, out, "Archive logs")
	assert.NotContains(t, out, "Call supplier")

	out = h.ok("tasks", "list", "--search", "nothing-matches")
	assert.Contains(t, out, "No tasks found.")

	assert.Contains(t, h.fails("tasks", "list", "--quick", "someday"), "quick must be one of")
	assert.Contains(t, h.fails("tasks", "list", "--sort", "color"), "sort must be one of")
}

func TestTasksListSortsByTitle(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.seed()

	out := h.ok("-o", "json", "tasks", "list", "--sort", "title", "--order", "asc")
	var views []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 3)
	var titles []string
	for _, v := range views {
		titles = append(titles, v["title"].(string))
	}
	assert.Equal(t, []string{"Archive logs", "Call supplier", "Ship invoices"}, titles)

	progress, ok := views[2]["progress"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, progress["Overdue"])
}

func TestYAMLOutput(t *testing.T) {
	h := newHarness(t)
	h.login()

	out := h.ok("-o", "yaml", "whoami")
	assert.Contains(t, out, "email: ada@example.com")
	assert.Contains(t, out, "name: Ada Lovelace")

	stderr := h.fails("-o", "xml", "whoami")
	assert.Contains(t, stderr, `invalid output "xml"`)
}

func TestStopAndResume(t *testing.T) {
	h := newHarness(t)
	h.login()
	task := h.addTask("Ship invoices", model.StatusInProgress, "", "2024-01-20T00:00:00Z")

	assert.Contains(t, h.fails("tasks", "stop", task.ID), "reason is required")

	out := h.ok("--yes", "tasks", "stop", task.ID, "--reason", "waiting on finance")
	assert.Equal(t, "Stopped task "+task.ID+": Ship invoices\n", out)
	stored, _ := h.srv.Task(task.ID)
	assert.Equal(t, model.StatusPaused, stored.Status)

	out = h.ok("tasks", "resume", task.ID)
	assert.Equal(t, "Resumed task "+task.ID+": Ship invoices\n", out)

	out = h.ok("tasks", "help-request", task.ID)
	assert.Equal(t, "Help requested for task "+task.ID+"\n", out)
	assert.Equal(t, []string{task.ID}, h.srv.HelpRequests())
}

func TestOfflineUsesCache(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.seed()
	h.ok("tasks", "list")
	hits := h.srv.Hits("GET /tasks")

	r := h.run("", "--offline", "tasks", "list")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Ship invoices")
	assert.Contains(t, r.stderr, "Showing tasks cached at")
	assert.Equal(t, hits, h.srv.Hits("GET /tasks"))

	h.srv.Fail("GET /tasks", apitest.Failure{Status: http.StatusInternalServerError, Message: "database unavailable"})
	r = h.run("", "tasks", "list")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stderr, "Warning: database unavailable, showing cached tasks")
	assert.Contains(t, r.stdout, "Call supplier")
}

func TestImportOrgFile(t *testing.T) {
	h := newHarness(t)
	h.login()

	path := filepath.Join(t.TempDir(), "plan.org")
	require.NoError(t, os.WriteFile(path, []byte(`* Work
** TODO [#A] Draft budget :finance:
   DEADLINE: <2024-01-20 Sat>
** NEXT Book venue :team:
   SCHEDULED: <2024-01-10 Wed> DEADLINE: <2024-01-15 Mon>
`), 0o644))

	out := h.ok("tasks", "import", path, "--tag", "finance")
	assert.Contains(t, out, "Draft budget")
	assert.Contains(t, out, "Imported 1 of 1 tasks")
	assert.Equal(t, 1, h.srv.Hits("POST /tasks"))

	out = h.ok("tasks", "import", path)
	assert.Contains(t, out, "Imported 2 of 2 tasks")

	h.srv.Fail("POST /tasks", apitest.Failure{Status: http.StatusBadRequest, Message: "Title too long"})
	r := h.run("", "tasks", "import", path)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stdout, "line 2: Draft budget: Title too long")
	assert.Contains(t, r.stdout, "Imported 0 of 2 tasks")
	assert.Contains(t, r.stderr, "2 tasks failed to import")
}

func TestCommentsAndUpdates(t *testing.T) {
	h := newHarness(t)
	h.login()
	task := h.addTask("Ship invoices", model.StatusInProgress, "2024-01-08T00:00:00Z", "2024-01-12T00:00:00Z")

	out := h.ok("comments", "list", task.ID)
	assert.Equal(t, "No comments.\n", out)

	out = h.ok("comments", "add", task.ID, "Sent", "the", "first", "batch")
	assert.Contains(t, out, "Added comment ")

	out = h.ok("comments", "list", task.ID)
	assert.Contains(t, out, "Sent the first batch")

	out = h.ok("updates", "add", task.ID, "Half", "way", "there")
	assert.Contains(t, out, "Posted update ")

	stderr := h.fails("updates", "add", task.ID, "Too late", "--date", "2024-01-20")
	assert.Contains(t, stderr, "date must be between task start date and end date")

	out = h.ok("updates", "list", task.ID)
	assert.Contains(t, out, "Half way there")
}

func TestSteps(t *testing.T) {
	h := newHarness(t)
	h.login()
	task := h.addTask("Ship invoices", model.StatusInProgress, "", "")

	assert.Equal(t, "No steps.\n", h.ok("steps", "list", task.ID))

	out := h.ok("steps", "add", task.ID, "--title", "Print")
	assert.Contains(t, out, "Print")
	out = h.ok("steps", "add", task.ID, "--title", "Post")
	assert.Contains(t, out, "Post")

	assert.Contains(t, h.fails("steps", "add", task.ID), "title is required")
}

func TestNotifications(t *testing.T) {
	h := newHarness(t)
	h.login()
	first := h.srv.AddNotification(model.Notification{Title: "Assigned", Message: "You were assigned Ship invoices", CreatedAt: model.NewTime(fixedNow)})
	h.srv.AddNotification(model.Notification{Title: "Comment", Message: "Grace commented", CreatedAt: model.NewTime(fixedNow)})

	out := h.ok("notifications", "list")
	assert.Contains(t, out, "2 unread")
	assert.Contains(t, out, "You were assigned Ship invoices")

	out = h.ok("notifications", "read", first.ID)
	assert.Equal(t, "Marked 1 as read\n", out)

	out = h.ok("notifications", "watch", "--interval", "10ms", "--count", "2")
	assert.Equal(t, "12:00:00  1 unread notification\n", out)
	assert.Equal(t, 2, h.srv.Hits("GET /notifications/unread-count"))

	assert.Equal(t, "All notifications marked as read\n", h.ok("notifications", "read-all"))
	out = h.ok("notifications", "watch", "--interval", "10ms", "--count", "1")
	assert.Equal(t, "12:00:00  no unread notifications\n", out)

	assert.Equal(t, "Error: notification not found\n", h.fails("--yes", "notifications", "delete", "nope"))
}

func TestWatchStopsWhenSessionExpires(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.Revoke()

	stderr := h.fails("notifications", "watch", "--interval", "10ms")
	assert.Equal(t, "Error: session expired, run `flowdesk login`\n", stderr)
}

func TestUsers(t *testing.T) {
	h := newHarness(t)
	h.login()

	out := h.ok("users", "list")
	assert.Contains(t, out, "ada@example.com")

	out = h.ok("users", "update", "--name", "Ada King")
	assert.Equal(t, "Updated Ada King <ada@example.com>\n", out)
	assert.Contains(t, h.ok("whoami"), "Ada King")

	assert.Contains(t, h.fails("users", "update"), "name or avatar is required")
}

func TestCalendarShow(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.addTask("Ship invoices", model.StatusNotStarted, "", "2024-01-10T17:00:00Z")

	out := h.ok("calendar", "show")
	assert.True(t, strings.HasPrefix(out, "January 2024\n"), out)
	assert.Contains(t, out, " 9*")
	assert.Contains(t, out, "10(1)")
	assert.Contains(t, out, "Jan 10  Ship invoices [not-started]")

	out = h.ok("calendar", "show", "--month", "2024-02")
	assert.True(t, strings.HasPrefix(out, "February 2024\n"), out)
	assert.NotContains(t, out, "Ship invoices")

	assert.Contains(t, h.fails("calendar", "show", "--month", "Feb"), "use YYYY-MM")
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "theme set to: light\n", h.ok("config", "set", "theme", "light"))
	assert.Equal(t, "light\n", h.ok("config", "get", "theme"))
	assert.Equal(t, "poll_interval set to: 1m0s\n", h.ok("config", "set", "poll_interval", "1m"))

	out := h.ok("config", "get")
	assert.Contains(t, out, "theme = light")
	assert.Contains(t, out, "poll_interval = 1m0s")

	assert.Contains(t, h.fails("config", "set", "theme", "blue"), "theme must be dark or light")
	assert.Contains(t, h.fails("config", "get", "colour"), `unknown key "colour"`)
	assert.Equal(t, filepath.Join(h.dir, "config.toml")+"\n", h.ok("config", "path"))
}

func TestConfigDefaultSortApplies(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.seed()
	h.ok("config", "set", "default_sort", "title")
	h.ok("config", "set", "default_order", "desc")

	out := h.ok("-o", "json", "tasks", "list")
	var views []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 3)
	assert.Equal(t, "Ship invoices", views[0]["title"])
}
