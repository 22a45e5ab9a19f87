package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-fanout-nosql/internal/domain"
)

type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

type Reason string

const (
	ReasonNone      Reason = ""
	ReasonNoChannel Reason = "no_channel"
	ReasonTimeout   Reason = "timeout"
	ReasonTransport Reason = "transport"
	ReasonTemplate  Reason = "template"
	ReasonRevoked   Reason = "channel_revoked"
)

// Outcome reports what happened to the push half of a fan-out.
type Outcome struct {
	Status  Status
	Reason  Reason
	Message *domain.PushMessage
	Err     error
}

// PushTransport delivers one message to one device channel.
type PushTransport interface {
	Send(ctx context.Context, token string, msg domain.PushMessage) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n domain.ResolvedNotification) Outcome
}

type dispatcher struct {
	transport    PushTransport
	timeout      time.Duration
	deepLinkBase string
}

type DispatcherDeps struct {
	Transport PushTransport
	Timeout   time.Duration
	// DeepLinkBase, when set, is prefixed to the relative deep link before
	// it is handed to the transport.
	DeepLinkBase string
}

func NewDispatcher(deps DispatcherDeps) Dispatcher {
	return &dispatcher{
		transport:    deps.Transport,
		timeout:      deps.Timeout,
		deepLinkBase: deps.DeepLinkBase,
	}
}

// Dispatch renders n and sends it once. It never retries and never returns an
// error: failures are reported in the Outcome.
func (d *dispatcher) Dispatch(ctx context.Context, n domain.ResolvedNotification) Outcome {
	if n.PushChannel == nil || *n.PushChannel == "" {
		return Outcome{Status: StatusSkipped, Reason: ReasonNoChannel}
	}

	msg, err := Render(n)
	if err != nil {
		return Outcome{Status: StatusFailed, Reason: ReasonTemplate, Err: err}
	}

	wire := msg
	if d.deepLinkBase != "" {
		wire.DeepLink = d.deepLinkBase + "/" + msg.DeepLink
	}

	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	err = d.transport.Send(sendCtx, *n.PushChannel, wire)
	switch {
	case err == nil:
		return Outcome{Status: StatusSent, Message: &msg}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded):
		slog.Warn("push timed out", "recipient_id", n.RecipientID, "timeout", d.timeout)
		return Outcome{Status: StatusFailed, Reason: ReasonTimeout, Message: &msg, Err: err}
	case errors.Is(err, domain.ErrChannelRevoked):
		slog.Info("push channel revoked by provider", "recipient_id", n.RecipientID, "err", err)
		return Outcome{Status: StatusFailed, Reason: ReasonRevoked, Message: &msg, Err: err}
	default:
		slog.Warn("push failed", "recipient_id", n.RecipientID, "err", err)
		return Outcome{Status: StatusFailed, Reason: ReasonTransport, Message: &msg, Err: err}
	}
}

// Render builds the push message for n from the fixed per-kind template.
func Render(n domain.ResolvedNotification) (domain.PushMessage, error) {
	switch n.Kind {
	case domain.KindFollow:
		return domain.PushMessage{
			Title:    "New follower",
			Body:     fmt.Sprintf("%s started following you.", n.ActorName),
			DeepLink: "profile/" + n.ActorID,
		}, nil
	case domain.KindComment:
		if n.ContentTitle == nil || n.TargetRef == nil {
			return domain.PushMessage{}, fmt.Errorf("comment notification without content: %w", domain.ErrMalformedEvent)
		}
		return domain.PushMessage{
			Title:    "New comment",
			Body:     fmt.Sprintf("%s commented on %s.", n.ActorName, *n.ContentTitle),
			DeepLink: *n.TargetRef,
		}, nil
	default:
		return domain.PushMessage{}, fmt.Errorf("unknown notification kind %q: %w", n.Kind, domain.ErrMalformedEvent)
	}
}
