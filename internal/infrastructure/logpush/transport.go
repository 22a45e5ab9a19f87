// Package logpush is the development push transport: it logs the message
// instead of delivering it.
package logpush

import (
	"context"
	"log/slog"

	"github.com/go-fanout-nosql/internal/domain"
)

type Transport struct {
	logger *slog.Logger
}

func NewTransport(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{logger: logger}
}

func (t *Transport) Send(ctx context.Context, token string, msg domain.PushMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.logger.InfoContext(ctx, "push (log transport)",
		"token", redact(token),
		"title", msg.Title,
		"body", msg.Body,
		"deep_link", msg.DeepLink,
	)
	return nil
}

func redact(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "..."
}
