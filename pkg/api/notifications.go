package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// NotificationPage is the answer of GET /notifications.
type NotificationPage struct {
	Data        []model.Notification `json:"data"`
	UnreadCount int                  `json:"unreadCount"`
}

// ListNotifications returns up to limit notifications; limit <= 0 leaves the
// page size to the server.
func (c *Client) ListNotifications(ctx context.Context, limit int) (NotificationPage, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out NotificationPage
	err := c.do(ctx, request{method: http.MethodGet, path: "/notifications", query: query}, &out)
	return out, err
}

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/notifications/unread-count"}, &out)
	return out.Count, err
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/notifications/" + pathID(id) + "/read"}, nil)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPut, path: "/notifications/read-all"}, nil)
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/notifications/" + pathID(id)}, nil)
}
