package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-fanout-nosql/internal/domain"
)

// Service is the read side of the feed plus push channel registration.
type Service interface {
	List(ctx context.Context, userID string) ([]domain.NotificationEntry, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, createdAt time.Time) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
	RegisterPushChannel(ctx context.Context, userID, token string) error
	ClearPushChannel(ctx context.Context, userID string) error
	SendTestPush(ctx context.Context, userID string) error
}

type feedStore interface {
	ListNotifications(ctx context.Context, userID string) ([]domain.NotificationEntry, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID string, createdAt time.Time) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

type channelStore interface {
	SetPushChannel(ctx context.Context, userID, token string) error
	ClearPushChannel(ctx context.Context, userID string) error
}

type userDirectory interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type pushTransport interface {
	Send(ctx context.Context, token string, msg domain.PushMessage) error
}

type service struct {
	feed      feedStore
	channels  channelStore
	users     userDirectory
	transport pushTransport
}

type ServiceDeps struct {
	Feed      feedStore
	Channels  channelStore
	Users     userDirectory
	Transport pushTransport
}

func NewService(deps ServiceDeps) Service {
	return &service{
		feed:      deps.Feed,
		channels:  deps.Channels,
		users:     deps.Users,
		transport: deps.Transport,
	}
}

func (s *service) List(ctx context.Context, userID string) ([]domain.NotificationEntry, error) {
	entries, err := s.feed.ListNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.NotificationEntry{}
	}
	return entries, nil
}

func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.feed.UnreadCount(ctx, userID)
}

// MarkRead is idempotent: marking an already-read entry succeeds.
func (s *service) MarkRead(ctx context.Context, userID string, createdAt time.Time) error {
	found, err := s.feed.MarkNotificationRead(ctx, userID, createdAt.UTC())
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("notification %s: %w", createdAt.UTC().Format(time.RFC3339Nano), domain.ErrNotFound)
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.feed.MarkAllNotificationsRead(ctx, userID)
}

func (s *service) RegisterPushChannel(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("empty push channel: %w", domain.ErrBadRequest)
	}
	return s.channels.SetPushChannel(ctx, userID, token)
}

func (s *service) ClearPushChannel(ctx context.Context, userID string) error {
	return s.channels.ClearPushChannel(ctx, userID)
}

// SendTestPush sends a fixed message to the caller's own channel. It does not
// touch the feed.
func (s *service) SendTestPush(ctx context.Context, userID string) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !u.HasPushChannel() {
		return fmt.Errorf("no push channel registered: %w", domain.ErrBadRequest)
	}
	return s.transport.Send(ctx, *u.PushChannel, domain.PushMessage{
		Title:    "Test notification",
		Body:     "Push notifications are working.",
		DeepLink: "profile/" + userID,
	})
}
