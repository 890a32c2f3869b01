// Package apitest runs an in-memory task backend for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

const (
	// OTP is the one-time code accepted for every email.
	OTP = "424242"
	// OAuthCode is the provider code accepted by the OAuth callback.
	OAuthCode = "good-code"
	// ProviderToken is the provider-issued token accepted by OAuth login.
	ProviderToken = "google-id-token"
)

// Failure is a canned error answer.
type Failure struct {
	Status  int
	Message string
}

// Server is a fake backend speaking the client's REST dialect.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[string]model.User
	passwords     map[string]string
	tokens        map[string]string
	tasks         []model.Task
	comments      map[string][]model.Comment
	steps         map[string][]model.Step
	updates       map[string][]model.TaskUpdate
	activities    map[string][]model.Activity
	notifications []model.Notification
	failures      map[string]Failure
	hits          map[string]int
	helpRequests  []string
	oauthStates   map[string]bool

	// Now stamps created records. Defaults to time.Now.
	Now func() time.Time
	// BeforeList runs before GET /tasks answers, outside the lock.
	BeforeList func(query string)
}

// NewServer starts a fake backend. Close it when done.
func NewServer() *Server {
	s := &Server{
		users:       make(map[string]model.User),
		passwords:   make(map[string]string),
		tokens:      make(map[string]string),
		comments:    make(map[string][]model.Comment),
		steps:       make(map[string][]model.Step),
		updates:     make(map[string][]model.TaskUpdate),
		activities:  make(map[string][]model.Activity),
		failures:    make(map[string]Failure),
		hits:        make(map[string]int),
		oauthStates: make(map[string]bool),
		Now:         time.Now,
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// APIURL is the root the client should be pointed at.
func (s *Server) APIURL() string {
	return s.Server.URL + "/api"
}

// AddUser registers a user and returns a valid bearer token for it.
func (s *Server) AddUser(u model.User, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = u
	if password != "" {
		s.passwords[u.Email] = password
	}
	return s.issueToken(u.ID)
}

// AddTask stores a task as-is, assigning an id when missing.
func (s *Server) AddTask(t model.Task) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Task returns the stored copy of a task.
func (s *Server) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.taskIndex(id)
	if i < 0 {
		return model.Task{}, false
	}
	return s.tasks[i], true
}

// AddNotification stores a notification.
func (s *Server) AddNotification(n model.Notification) model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	s.notifications = append(s.notifications, n)
	return n
}

// AddActivity stores an activity entry for a task.
func (s *Server) AddActivity(taskID string, a model.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.activities[taskID] = append(s.activities[taskID], a)
}

// Fail makes every request matching route ("GET /tasks") answer f until
// cleared with a zero Failure.
func (s *Server) Fail(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = f
}

// Hits returns how many times route was requested.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// HelpRequests returns the task ids help was requested for.
func (s *Server) HelpRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.helpRequests...)
}

// OAuthState registers a state value the fake provider will accept.
func (s *Server) OAuthState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthStates[state] = true
}

func (s *Server) issueToken(userID string) string {
	token := "tok-" + uuid.NewString()
	s.tokens[token] = userID
	return token
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.track)

	api.HandleFunc("/auth/send-otp", s.sendOTP).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/oauth/{provider}", s.oauthURL).Methods(http.MethodGet)
	api.HandleFunc("/auth/oauth/{provider}/callback", s.oauthCallback).Methods(http.MethodGet)
	api.HandleFunc("/auth/oauth/{provider}/login", s.oauthLogin).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireToken)
	authed.HandleFunc("/auth/me", s.me).Methods(http.MethodGet)

	authed.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	authed.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{id}", s.getTask).Methods(http.MethodGet)
	authed.HandleFunc("/tasks/{id}", s.updateTask).Methods(http.MethodPut)
	authed.HandleFunc("/tasks/{id}", s.deleteTask).Methods(http.MethodDelete)
	authed.HandleFunc("/tasks/{id}/assign", s.assign).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{id}/stop", s.stop).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{id}/resume", s.resume).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{id}/progress", s.progress).Methods(http.MethodPut)
	authed.HandleFunc("/tasks/{id}/help", s.help).Methods(http.MethodPost)

	authed.HandleFunc("/comments/tasks/{task}/comments", s.listComments).Methods(http.MethodGet)
	authed.HandleFunc("/comments/tasks/{task}/comments", s.addComment).Methods(http.MethodPost)
	authed.HandleFunc("/comments/tasks/{task}/comments/{id}", s.editComment).Methods(http.MethodPut)
	authed.HandleFunc("/comments/tasks/{task}/comments/{id}", s.deleteComment).Methods(http.MethodDelete)

	authed.HandleFunc("/steps/tasks/{task}", s.listSteps).Methods(http.MethodGet)
	authed.HandleFunc("/steps/tasks/{task}", s.createStep).Methods(http.MethodPost)
	authed.HandleFunc("/steps/{id}", s.updateStep).Methods(http.MethodPut)
	authed.HandleFunc("/steps/{id}/activate", s.setStepState(true, model.StepInProgress)).Methods(http.MethodPut)
	authed.HandleFunc("/steps/{id}/complete", s.setStepState(false, model.StepCompleted)).Methods(http.MethodPut)
	authed.HandleFunc("/steps/{id}", s.deleteStep).Methods(http.MethodDelete)

	authed.HandleFunc("/activities/tasks/{task}", s.listActivities).Methods(http.MethodGet)

	authed.HandleFunc("/updates/tasks/{task}", s.listUpdates).Methods(http.MethodGet)
	authed.HandleFunc("/updates/tasks/{task}", s.createUpdate).Methods(http.MethodPost)
	authed.HandleFunc("/updates/{id}", s.deleteUpdate).Methods(http.MethodDelete)

	authed.HandleFunc("/notifications", s.listNotifications).Methods(http.MethodGet)
	authed.HandleFunc("/notifications/unread-count", s.unreadCount).Methods(http.MethodGet)
	authed.HandleFunc("/notifications/read-all", s.readAll).Methods(http.MethodPut)
	authed.HandleFunc("/notifications/{id}/read", s.readOne).Methods(http.MethodPut)
	authed.HandleFunc("/notifications/{id}", s.deleteNotification).Methods(http.MethodDelete)

	authed.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id}", s.getUser).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id}", s.updateUser).Methods(http.MethodPut)

	return r
}

type ctxUser struct{}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tpl := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				tpl = t
			}
		}
		key := r.Method + " " + strings.TrimPrefix(tpl, "/api")
		s.mu.Lock()
		s.hits[key]++
		f, failing := s.failures[key]
		s.mu.Unlock()
		if failing {
			writeError(w, f.Status, f.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Fields(r.Header.Get("Authorization"))
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}
		s.mu.Lock()
		_, ok := s.tokens[parts[1]]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Revoke invalidates every issued token.
func (s *Server) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

func (s *Server) currentUser(r *http.Request) model.User {
	parts := strings.Fields(r.Header.Get("Authorization"))
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(parts) == 2 {
		return s.users[s.tokens[parts[1]]]
	}
	return model.User{}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func writeData(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, map[string]any{"success": true, "data": v})
}

func decode(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (s *Server) authResponse(w http.ResponseWriter, userID string) {
	s.mu.Lock()
	token := s.issueToken(userID)
	user := s.users[userID]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}

func (s *Server) userByEmail(email string) (model.User, bool) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return model.User{}, false
}

func (s *Server) sendOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	if !decode(r, &in) || in.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent to " + in.Email})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		OTP      string `json:"otp"`
		Password string `json:"password"`
	}
	if !decode(r, &in) {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.mu.Lock()
	user, ok := s.userByEmail(in.Email)
	password := s.passwords[in.Email]
	s.mu.Unlock()
	valid := in.OTP == OTP || (in.Password != "" && in.Password == password)
	if !ok || !valid {
		writeError(w, http.StatusUnauthorized, "Invalid or expired OTP")
		return
	}
	s.authResponse(w, user.ID)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(r, &in) || in.Name == "" || in.Email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	s.mu.Lock()
	if _, exists := s.userByEmail(in.Email); exists {
		s.mu.Unlock()
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	user := model.User{ID: uuid.NewString(), Name: in.Name, Email: in.Email, Role: model.RoleUser}
	s.users[user.ID] = user
	if in.Password != "" {
		s.passwords[in.Email] = in.Password
	}
	s.mu.Unlock()
	s.authResponse(w, user.ID)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": s.currentUser(r)})
}

func (s *Server) oauthURL(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if provider != "google" {
		writeError(w, http.StatusBadRequest, "Unsupported provider")
		return
	}
	state := uuid.NewString()
	s.mu.Lock()
	s.oauthStates[state] = true
	s.mu.Unlock()
	q := url.Values{"provider": {provider}, "state": {state}}
	if redirect := r.URL.Query().Get("redirect_uri"); redirect != "" {
		q.Set("redirect_uri", redirect)
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": "https://accounts.example.com/o/oauth2/auth?" + q.Encode()})
}

func (s *Server) oauthCallback(w http.ResponseWriter, r *http.Request) {
	code, state := r.URL.Query().Get("code"), r.URL.Query().Get("state")
	s.mu.Lock()
	known := s.oauthStates[state]
	s.mu.Unlock()
	if code != OAuthCode || !known {
		writeError(w, http.StatusBadRequest, "Invalid OAuth callback")
		return
	}
	s.authResponse(w, s.oauthUser())
}

func (s *Server) oauthLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Token string `json:"token"`
	}
	if !decode(r, &in) || in.Token != ProviderToken {
		writeError(w, http.StatusUnauthorized, "Invalid Google token")
		return
	}
	s.authResponse(w, s.oauthUser())
}

func (s *Server) oauthUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.userByEmail("oauth@example.com"); ok {
		return u.ID
	}
	u := model.User{ID: uuid.NewString(), Name: "OAuth User", Email: "oauth@example.com", Role: model.RoleUser}
	s.users[u.ID] = u
	return u.ID
}

func (s *Server) taskIndex(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	if s.BeforeList != nil {
		s.BeforeList(r.URL.RawQuery)
	}
	q := r.URL.Query()
	s.mu.Lock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if v := q.Get("status"); v != "" && string(t.Status) != v {
			continue
		}
		if v := q.Get("priority"); v != "" && string(t.Priority) != v {
			continue
		}
		if v := strings.ToLower(q.Get("search")); v != "" &&
			!strings.Contains(strings.ToLower(t.Title), v) &&
			!strings.Contains(strings.ToLower(t.Description), v) {
			continue
		}
		out = append(out, t)
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) withTask(w http.ResponseWriter, r *http.Request, fn func(t *model.Task) bool) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	i := s.taskIndex(id)
	if i < 0 {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	ok := fn(&s.tasks[i])
	t := s.tasks[i]
	s.mu.Unlock()
	if ok {
		writeData(w, http.StatusOK, t)
	}
}

type taskBody struct {
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        model.Status   `json:"status"`
	Priority      model.Priority `json:"priority"`
	StartDate     model.Time     `json:"startDate"`
	EndDate       model.Time     `json:"endDate"`
	AssignedUsers []string       `json:"assignedUsers"`
}

func refs(ids []string) []model.UserRef {
	out := make([]model.UserRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.UserRef{ID: id})
	}
	return out
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	s.withTask(w, r, func(*model.Task) bool { return true })
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var in taskBody
	if !decode(r, &in) || in.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	user := s.currentUser(r)
	t := model.Task{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Description:   in.Description,
		Status:        in.Status,
		Priority:      in.Priority,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		CreatedBy:     model.UserRef{ID: user.ID, Name: user.Name, Email: user.Email},
		AssignedUsers: refs(in.AssignedUsers),
		CreatedAt:     model.NewTime(s.Now()),
	}
	if t.Status == "" {
		t.Status = model.StatusNotStarted
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	writeData(w, http.StatusCreated, t)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	var in taskBody
	if !decode(r, &in) {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.withTask(w, r, func(t *model.Task) bool {
		if in.Title != "" {
			t.Title = in.Title
		}
		if in.Description != "" {
			t.Description = in.Description
		}
		if in.Status != "" {
			t.Status = in.Status
		}
		if in.Priority != "" {
			t.Priority = in.Priority
		}
		if !in.StartDate.IsZero() {
			t.StartDate = in.StartDate
		}
		if !in.EndDate.IsZero() {
			t.EndDate = in.EndDate
		}
		if in.AssignedUsers != nil {
			t.AssignedUsers = refs(in.AssignedUsers)
		}
		return true
	})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	i := s.taskIndex(id)
	if i >= 0 {
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	}
	s.mu.Unlock()
	if i < 0 {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserIDs []string `json:"userIds"`
	}
	if !decode(r, &in) {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.withTask(w, r, func(t *model.Task) bool {
		t.AssignedUsers = refs(in.UserIDs)
		return true
	})
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Reason string `json:"reason"`
	}
	if !decode(r, &in) || in.Reason == "" {
		writeError(w, http.StatusBadRequest, "Reason is required")
		return
	}
	user := s.currentUser(r)
	s.withTask(w, r, func(t *model.Task) bool {
		t.Status = model.StatusPaused
		t.StopLogs = append(t.StopLogs, model.StopLog{
			Reason:    in.Reason,
			StoppedBy: model.UserRef{ID: user.ID, Name: user.Name},
			StoppedAt: model.NewTime(s.Now()),
		})
		return true
	})
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	s.withTask(w, r, func(t *model.Task) bool {
		t.Status = model.StatusInProgress
		if n := len(t.StopLogs); n > 0 {
			t.StopLogs[n-1].ResumedAt = model.NewTime(s.Now())
		}
		return true
	})
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ManualProgress *float64 `json:"manualProgress"`
		Comment        string   `json:"comment"`
	}
	if !decode(r, &in) || in.ManualProgress == nil {
		writeError(w, http.StatusBadRequest, "manualProgress is required")
		return
	}
	if *in.ManualProgress < 0 || *in.ManualProgress > 100 {
		writeError(w, http.StatusBadRequest, "Progress must be between 0 and 100")
		return
	}
	s.withTask(w, r, func(t *model.Task) bool {
		pct := *in.ManualProgress
		t.ManualProgress = &pct
		if pct >= 100 {
			t.Status = model.StatusCompleted
		}
		return true
	})
}

func (s *Server) help(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	found := s.taskIndex(id) >= 0
	if found {
		s.helpRequests = append(s.helpRequests, id)
	}
	s.mu.Unlock()
	if !found {
		writeError(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Help request sent"})
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	s.mu.Lock()
	out := append([]model.Comment{}, s.comments[task]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	var in struct {
		Text string `json:"text"`
	}
	if !decode(r, &in) || strings.TrimSpace(in.Text) == "" {
		writeError(w, http.StatusBadRequest, "Comment text is required")
		return
	}
	user := s.currentUser(r)
	c := model.Comment{
		ID:        uuid.NewString(),
		TaskID:    model.ObjectID(task),
		User:      model.UserRef{ID: user.ID, Name: user.Name},
		Text:      in.Text,
		CreatedAt: model.NewTime(s.Now()),
	}
	s.mu.Lock()
	s.comments[task] = append(s.comments[task], c)
	s.mu.Unlock()
	writeData(w, http.StatusCreated, c)
}

func (s *Server) editComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var in struct {
		Text string `json:"text"`
	}
	if !decode(r, &in) {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.comments[vars["task"]] {
		if c.ID == vars["id"] {
			s.comments[vars["task"]][i].Text = in.Text
			writeData(w, http.StatusOK, s.comments[vars["task"]][i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Comment not found")
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.comments[vars["task"]]
	for i, c := range list {
		if c.ID == vars["id"] {
			s.comments[vars["task"]] = append(list[:i], list[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Comment not found")
}

type stepBody struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	AssignedUsers []string   `json:"assignedUsers"`
	StartDate     model.Time `json:"startDate"`
	EndDate       model.Time `json:"endDate"`
}

func (s *Server) listSteps(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	s.mu.Lock()
	out := append([]model.Step{}, s.steps[task]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) createStep(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	var in stepBody
	if !decode(r, &in) || in.Title == "" {
		writeError(w, http.StatusBadRequest, "Step title is required")
		return
	}
	s.mu.Lock()
	step := model.Step{
		ID:            uuid.NewString(),
		TaskID:        model.ObjectID(task),
		StepNumber:    len(s.steps[task]) + 1,
		Title:         in.Title,
		Description:   in.Description,
		Status:        model.StepPending,
		AssignedUsers: refs(in.AssignedUsers),
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
	}
	s.steps[task] = append(s.steps[task], step)
	s.mu.Unlock()
	writeData(w, http.StatusCreated, step)
}

func (s *Server) findStep(id string) *model.Step {
	for task := range s.steps {
		for i := range s.steps[task] {
			if s.steps[task][i].ID == id {
				return &s.steps[task][i]
			}
		}
	}
	return nil
}

func (s *Server) updateStep(w http.ResponseWriter, r *http.Request) {
	var in stepBody
	if !decode(r, &in) {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	step := s.findStep(mux.Vars(r)["id"])
	if step == nil {
		writeError(w, http.StatusNotFound, "Step not found")
		return
	}
	if in.Title != "" {
		step.Title = in.Title
	}
	if in.Description != "" {
		step.Description = in.Description
	}
	writeData(w, http.StatusOK, *step)
}

func (s *Server) setStepState(active bool, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		step := s.findStep(mux.Vars(r)["id"])
		if step == nil {
			writeError(w, http.StatusNotFound, "Step not found")
			return
		}
		step.IsActive = active
		step.Status = status
		writeData(w, http.StatusOK, *step)
	}
}

func (s *Server) deleteStep(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for task, list := range s.steps {
		for i, step := range list {
			if step.ID == id {
				s.steps[task] = append(list[:i], list[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"success": true})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "Step not found")
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	s.mu.Lock()
	out := append([]model.Activity{}, s.activities[task]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) listUpdates(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	s.mu.Lock()
	out := append([]model.TaskUpdate{}, s.updates[task]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) createUpdate(w http.ResponseWriter, r *http.Request) {
	task := mux.Vars(r)["task"]
	var in struct {
		UpdateText string     `json:"updateText"`
		UpdateDate model.Time `json:"updateDate"`
	}
	if !decode(r, &in) || in.UpdateText == "" {
		writeError(w, http.StatusBadRequest, "Update text is required")
		return
	}
	user := s.currentUser(r)
	u := model.TaskUpdate{
		ID:         uuid.NewString(),
		TaskID:     model.ObjectID(task),
		User:       model.UserRef{ID: user.ID, Name: user.Name},
		UpdateText: in.UpdateText,
		UpdateDate: in.UpdateDate,
		CreatedAt:  model.NewTime(s.Now()),
	}
	s.mu.Lock()
	s.updates[task] = append(s.updates[task], u)
	s.mu.Unlock()
	writeData(w, http.StatusCreated, u)
}

func (s *Server) deleteUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for task, list := range s.updates {
		for i, u := range list {
			if u.ID == id {
				s.updates[task] = append(list[:i], list[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"success": true})
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "Update not found")
}

func (s *Server) unread() int {
	n := 0
	for _, item := range s.notifications {
		if !item.IsRead {
			n++
		}
	}
	return n
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	s.mu.Lock()
	out := append([]model.Notification{}, s.notifications...)
	unread := s.unread()
	s.mu.Unlock()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out, "unreadCount": unread})
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := s.unread()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": n})
}

func (s *Server) readAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].IsRead = true
		s.notifications[i].ReadAt = model.NewTime(s.Now())
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) readOne(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			s.notifications[i].ReadAt = model.NewTime(s.Now())
			writeData(w, http.StatusOK, s.notifications[i])
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) deleteNotification(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.Unlock()
	writeData(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[mux.Vars(r)["id"]]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeData(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if !decode(r, &in) {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	id := mux.Vars(r)["id"]
	if s.currentUser(r).ID != id {
		writeError(w, http.StatusForbidden, "Not allowed to edit this user")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.Avatar != "" {
		u.Avatar = in.Avatar
	}
	s.users[id] = u
	writeData(w, http.StatusOK, u)
}
