package fcm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/go-fanout-nosql/internal/domain"
	"google.golang.org/api/option"
)

// messenger is the part of *messaging.Client the transport needs.
type messenger interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Transport sends push messages through Firebase Cloud Messaging. The push
// channel is an FCM registration token.
type Transport struct {
	client messenger
}

// NewTransport initializes the Firebase app. An empty credentialsFile falls
// back to application default credentials.
func NewTransport(ctx context.Context, credentialsFile string) (*Transport, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client: %w", err)
	}
	slog.Info("fcm transport initialized")
	return &Transport{client: client}, nil
}

func (t *Transport) Send(ctx context.Context, token string, msg domain.PushMessage) error {
	id, err := t.client.Send(ctx, buildMessage(token, msg))
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("fcm token no longer registered: %w: %w", domain.ErrChannelRevoked, err)
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	slog.Debug("fcm message sent", "message_id", id)
	return nil
}

// buildMessage maps msg onto an FCM message. The deep link travels in the
// data payload for native clients and as the web push click target when it
// is an absolute https URL.
func buildMessage(token string, msg domain.PushMessage) *messaging.Message {
	m := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: map[string]string{"deep_link": msg.DeepLink},
	}
	if strings.HasPrefix(msg.DeepLink, "https://") {
		m.Webpush = &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: msg.DeepLink},
		}
	}
	return m
}
