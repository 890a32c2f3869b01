package api

import (
	"context"
	"net/http"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// UpdateInput is the body of POST /updates/tasks/{taskId}.
type UpdateInput struct {
	UpdateText string    `json:"updateText"`
	UpdateDate time.Time `json:"updateDate"`
}

// ListUpdates returns the dated progress notes of a task.
func (c *Client) ListUpdates(ctx context.Context, taskID string) ([]model.TaskUpdate, error) {
	return get[[]model.TaskUpdate](ctx, c, "/updates/tasks/"+pathID(taskID), nil)
}

// CreateUpdate posts a progress note on a task.
func (c *Client) CreateUpdate(ctx context.Context, taskID string, in UpdateInput) (model.TaskUpdate, error) {
	return send[model.TaskUpdate](ctx, c, http.MethodPost, "/updates/tasks/"+pathID(taskID), in)
}

// DeleteUpdate removes a progress note.
func (c *Client) DeleteUpdate(ctx context.Context, updateID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/updates/" + pathID(updateID)}, nil)
}
