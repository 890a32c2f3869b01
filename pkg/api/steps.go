package api

import (
	"context"
	"net/http"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// StepInput is the body of step create and update calls.
type StepInput struct {
	Title         string     `json:"title,omitempty"`
	Description   string     `json:"description,omitempty"`
	AssignedUsers []string   `json:"assignedUsers,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	TaskID        string     `json:"taskId,omitempty"`
}

// ListSteps returns the steps of a task in order.
func (c *Client) ListSteps(ctx context.Context, taskID string) ([]model.Step, error) {
	return get[[]model.Step](ctx, c, "/steps/tasks/"+pathID(taskID), nil)
}

// CreateStep adds a step to a task.
func (c *Client) CreateStep(ctx context.Context, taskID string, in StepInput) (model.Step, error) {
	in.TaskID = taskID
	return send[model.Step](ctx, c, http.MethodPost, "/steps/tasks/"+pathID(taskID), in)
}

// UpdateStep edits a step.
func (c *Client) UpdateStep(ctx context.Context, stepID string, in StepInput) (model.Step, error) {
	return send[model.Step](ctx, c, http.MethodPut, "/steps/"+pathID(stepID), in)
}

// ActivateStep marks a step as the one being worked on.
func (c *Client) ActivateStep(ctx context.Context, stepID string) (model.Step, error) {
	return send[model.Step](ctx, c, http.MethodPut, "/steps/"+pathID(stepID)+"/activate", nil)
}

// CompleteStep marks a step as done.
func (c *Client) CompleteStep(ctx context.Context, stepID string) (model.Step, error) {
	return send[model.Step](ctx, c, http.MethodPut, "/steps/"+pathID(stepID)+"/complete", nil)
}

// DeleteStep removes a step.
func (c *Client) DeleteStep(ctx context.Context, stepID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/steps/" + pathID(stepID)}, nil)
}
