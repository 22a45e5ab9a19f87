package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-fanout-nosql/internal/domain"
)

type Resolver interface {
	Resolve(ctx context.Context, ev domain.DomainEvent) (*domain.ResolvedNotification, error)
}

type userDirectory interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type resolver struct {
	users userDirectory
}

func NewResolver(users userDirectory) Resolver {
	return &resolver{users: users}
}

// Resolve loads the recipient and the actor of ev. The recipient must exist;
// a missing actor only degrades the display name to the actor id.
func (r *resolver) Resolve(ctx context.Context, ev domain.DomainEvent) (*domain.ResolvedNotification, error) {
	recipient, err := r.users.Get(ctx, ev.RecipientID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("recipient %s: %w", ev.RecipientID, domain.ErrRecipientNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load recipient %s: %w", ev.RecipientID, err)
	}

	actorName := ev.ActorID
	actor, err := r.users.Get(ctx, ev.ActorID)
	switch {
	case err == nil:
		actorName = actor.Name()
	case errors.Is(err, domain.ErrNotFound):
		slog.Info("actor record missing, using id as name", "actor_id", ev.ActorID)
	default:
		slog.Warn("actor lookup failed, using id as name", "actor_id", ev.ActorID, "err", err)
	}

	var channel *string
	if recipient.HasPushChannel() {
		pc := *recipient.PushChannel
		channel = &pc
	}
	return &domain.ResolvedNotification{
		Kind:          ev.Kind,
		ActorID:       ev.ActorID,
		ActorName:     actorName,
		RecipientID:   ev.RecipientID,
		PushChannel:   channel,
		TargetRef:     ev.TargetRef,
		ContentTitle:  ev.ContentTitle,
		SourceEventID: ev.SourceEventID,
	}, nil
}
