package http

import (
	"context"
	"time"

	"github.com/go-fanout-nosql/internal/domain"
)

// UserStore is the minimal interface the router requires from a user store.
// It carries the profile, the push channel and the notification feed.
type UserStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	SetPushChannel(ctx context.Context, userID, token string) error
	ClearPushChannel(ctx context.Context, userID string) error
	ListNotifications(ctx context.Context, userID string) ([]domain.NotificationEntry, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID string, createdAt time.Time) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// PushTransport delivers one rendered message to one device channel.
type PushTransport interface {
	Send(ctx context.Context, token string, msg domain.PushMessage) error
}
