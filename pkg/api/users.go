package api

import (
	"context"
	"net/http"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// UserInput is the body of PUT /users/{id}.
type UserInput struct {
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// ListUsers returns every user that can be assigned to tasks.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	return get[[]model.User](ctx, c, "/users", nil)
}

// GetUser returns one user.
func (c *Client) GetUser(ctx context.Context, id string) (model.User, error) {
	return get[model.User](ctx, c, "/users/"+pathID(id), nil)
}

// UpdateUser edits a user's profile.
func (c *Client) UpdateUser(ctx context.Context, id string, in UserInput) (model.User, error) {
	return send[model.User](ctx, c, http.MethodPut, "/users/"+pathID(id), in)
}
