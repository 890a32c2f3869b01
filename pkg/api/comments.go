package api

import (
	"context"
	"net/http"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

func commentsPath(taskID string) string {
	return "/comments/tasks/" + pathID(taskID) + "/comments"
}

// ListComments returns the comments on a task.
func (c *Client) ListComments(ctx context.Context, taskID string) ([]model.Comment, error) {
	return get[[]model.Comment](ctx, c, commentsPath(taskID), nil)
}

// AddComment posts a comment on a task.
func (c *Client) AddComment(ctx context.Context, taskID, text string) (model.Comment, error) {
	return send[model.Comment](ctx, c, http.MethodPost, commentsPath(taskID), map[string]string{"text": text})
}

// UpdateComment edits a comment's text.
func (c *Client) UpdateComment(ctx context.Context, taskID, commentID, text string) (model.Comment, error) {
	return send[model.Comment](ctx, c, http.MethodPut, commentsPath(taskID)+"/"+pathID(commentID), map[string]string{"text": text})
}

// DeleteComment removes a comment.
func (c *Client) DeleteComment(ctx context.Context, taskID, commentID string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: commentsPath(taskID) + "/" + pathID(commentID)}, nil)
}
