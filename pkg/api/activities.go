package api

import (
	"context"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// ListActivities returns a task's audit trail, newest first.
func (c *Client) ListActivities(ctx context.Context, taskID string) ([]model.Activity, error) {
	return get[[]model.Activity](ctx, c, "/activities/tasks/"+pathID(taskID), nil)
}
