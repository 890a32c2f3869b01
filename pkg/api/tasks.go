package api

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// TaskQuery holds the server-side list filters. "all" and empty values are
// not sent.
type TaskQuery struct {
	Status    string
	Priority  string
	Search    string
	SortBy    string
	SortOrder string
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" && value != "all" {
			v.Set(key, value)
		}
	}
	set("status", q.Status)
	set("priority", q.Priority)
	set("search", q.Search)
	set("sortBy", q.SortBy)
	set("sortOrder", q.SortOrder)
	return v
}

// TaskInput is the body of create and update calls. Zero fields are omitted,
// so an update only touches what is set.
type TaskInput struct {
	Title         string         `json:"title,omitempty"`
	Description   string         `json:"description,omitempty"`
	Status        model.Status   `json:"status,omitempty"`
	Priority      model.Priority `json:"priority,omitempty"`
	StartDate     *time.Time     `json:"startDate,omitempty"`
	EndDate       *time.Time     `json:"endDate,omitempty"`
	AssignedUsers []string       `json:"assignedUsers,omitempty"`
}

// Validate checks the fields a new task needs.
func (in TaskInput) Validate() error {
	if in.Title == "" {
		return Invalid("title", "is required")
	}
	return in.validateFields()
}

func (in TaskInput) validateFields() error {
	if in.Status != "" && !in.Status.IsValid() {
		return Invalid("status", "is not a known status")
	}
	if in.Priority != "" && !in.Priority.IsValid() {
		return Invalid("priority", "is not a known priority")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return Invalid("endDate", "must not be before startDate")
	}
	return nil
}

// ValidateUpdate checks the fields of a partial update.
func (in TaskInput) ValidateUpdate() error {
	return in.validateFields()
}

// ListTasks calls GET /tasks.
func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]model.Task, error) {
	return get[[]model.Task](ctx, c, "/tasks", q.values())
}

// GetTask calls GET /tasks/{id}.
func (c *Client) GetTask(ctx context.Context, id string) (model.Task, error) {
	return get[model.Task](ctx, c, "/tasks/"+pathID(id), nil)
}

// CreateTask calls POST /tasks.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (model.Task, error) {
	return send[model.Task](ctx, c, http.MethodPost, "/tasks", in)
}

// UpdateTask calls PUT /tasks/{id}.
func (c *Client) UpdateTask(ctx context.Context, id string, in TaskInput) (model.Task, error) {
	return send[model.Task](ctx, c, http.MethodPut, "/tasks/"+pathID(id), in)
}

// DeleteTask calls DELETE /tasks/{id}.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/tasks/" + pathID(id)}, nil)
}

// AssignUsers calls POST /tasks/{id}/assign.
func (c *Client) AssignUsers(ctx context.Context, id string, userIDs []string) (model.Task, error) {
	return send[model.Task](ctx, c, http.MethodPost, "/tasks/"+pathID(id)+"/assign", map[string][]string{"userIds": userIDs})
}

// StopWork calls POST /tasks/{id}/stop.
func (c *Client) StopWork(ctx context.Context, id, reason string) (model.Task, error) {
	return send[model.Task](ctx, c, http.MethodPost, "/tasks/"+pathID(id)+"/stop", map[string]string{"reason": reason})
}

// ResumeWork calls POST /tasks/{id}/resume.
func (c *Client) ResumeWork(ctx context.Context, id string) (model.Task, error) {
	return send[model.Task](ctx, c, http.MethodPost, "/tasks/"+pathID(id)+"/resume", nil)
}

// ProgressInput is the body of PUT /tasks/{id}/progress.
type ProgressInput struct {
	ManualProgress float64 `json:"manualProgress"`
	Comment        string  `json:"comment,omitempty"`
}

// UpdateProgress calls PUT /tasks/{id}/progress.
func (c *Client) UpdateProgress(ctx context.Context, id string, in ProgressInput) (model.Task, error) {
	return send[model.Task](ctx, c, http.MethodPut, "/tasks/"+pathID(id)+"/progress", in)
}

// RequestHelp calls POST /tasks/{id}/help.
func (c *Client) RequestHelp(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/tasks/" + pathID(id) + "/help"}, nil)
}
