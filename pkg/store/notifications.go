package store

import (
	"context"
	"log"
	"slices"
	"time"

	"github.com/harrisonrobin/flowdesk/pkg/api"
	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// NotificationAPI is the part of the backend the notification store talks to.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, limit int) (api.NotificationPage, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// NotificationState is a point-in-time copy of a NotificationStore.
type NotificationState struct {
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
	Error         string
}

// NotificationStore holds the user's notifications and the unread counter.
type NotificationStore struct {
	base
	api    NotificationAPI
	items  []model.Notification
	unread int
	// Limit caps how many notifications Fetch asks for. Zero leaves it to the server.
	Limit int
	now   func() time.Time

	countIssued  uint64
	countApplied uint64
}

// NewNotificationStore creates an empty store.
func NewNotificationStore(client NotificationAPI, logger *log.Logger) *NotificationStore {
	s := &NotificationStore{api: client, now: time.Now}
	s.setLogger(logger)
	return s
}

// Fetch reloads notifications and the unread counter.
func (s *NotificationStore) Fetch(ctx context.Context) error {
	s.mu.Lock()
	seq := s.begin()
	limit := s.Limit
	s.mu.Unlock()

	page, err := s.api.ListNotifications(ctx, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finish(seq) {
		return err
	}
	if err != nil {
		return s.fail(err, "Failed to fetch notifications")
	}
	s.items, s.unread, s.err = page.Data, page.UnreadCount, ""
	// counter requests sent before this page are stale now
	s.countApplied = s.countIssued
	return nil
}

// FetchUnreadCount refreshes only the counter. Failures are logged and do
// not touch Error, since the counter is polled in the background.
func (s *NotificationStore) FetchUnreadCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	s.countIssued++
	seq := s.countIssued
	s.mu.Unlock()

	n, err := s.api.UnreadCount(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Printf("Warning: error fetching unread count: %v", err)
		return s.unread, err
	}
	if seq > s.countApplied {
		s.countApplied = seq
		s.unread = n
	}
	return s.unread, nil
}

// MarkAsRead marks one notification as read.
func (s *NotificationStore) MarkAsRead(ctx context.Context, id string) error {
	err := s.api.MarkNotificationRead(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to mark as read")
	}
	s.err = ""
	i := slices.IndexFunc(s.items, func(n model.Notification) bool { return n.ID == id })
	if i >= 0 && s.items[i].IsRead {
		return nil
	}
	if i >= 0 {
		s.items[i].IsRead = true
		s.items[i].ReadAt = model.NewTime(s.now())
	}
	s.unread = max(0, s.unread-1)
	return nil
}

// MarkAllAsRead marks every notification as read and zeroes the counter.
func (s *NotificationStore) MarkAllAsRead(ctx context.Context) error {
	err := s.api.MarkAllNotificationsRead(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to mark all as read")
	}
	s.err = ""
	now := model.NewTime(s.now())
	for i := range s.items {
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			s.items[i].ReadAt = now
		}
	}
	s.unread = 0
	return nil
}

// Delete removes a notification, lowering the counter if it was unread.
func (s *NotificationStore) Delete(ctx context.Context, id string) error {
	err := s.api.DeleteNotification(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		return s.fail(err, "Failed to delete notification")
	}
	s.err = ""
	i := slices.IndexFunc(s.items, func(n model.Notification) bool { return n.ID == id })
	if i < 0 {
		return nil
	}
	if !s.items[i].IsRead {
		s.unread = max(0, s.unread-1)
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

// Add puts a freshly received notification at the top of the list.
func (s *NotificationStore) Add(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]model.Notification{n}, s.items...)
	if !n.IsRead {
		s.unread++
	}
}

// Unread returns the unread counter.
func (s *NotificationStore) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Snapshot copies the store's state.
func (s *NotificationStore) Snapshot() NotificationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NotificationState{
		Notifications: slices.Clone(s.items),
		UnreadCount:   s.unread,
		Loading:       s.loading > 0,
		Error:         s.err,
	}
}
