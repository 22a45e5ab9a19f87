// Package ingest is the single entry point for trigger deliveries, whichever
// transport carried them.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-fanout-nosql/internal/application/fanout"
	"github.com/go-fanout-nosql/internal/application/trigger"
	"github.com/go-fanout-nosql/internal/domain"
	"github.com/go-fanout-nosql/internal/pkg/id"
	"github.com/go-fanout-nosql/internal/pkg/validate"
)

// UserUpdatedPayload is one user-record mutation. Before is absent when the
// record was created.
type UserUpdatedPayload struct {
	EventID string              `json:"event_id"`
	Before  *domain.TriggerUser `json:"before"`
	After   *domain.TriggerUser `json:"after"`
}

type CommentCreatedPayload struct {
	EventID string               `json:"event_id"`
	Comment domain.CommentRecord `json:"comment"`
}

// Report is what one trigger delivery produced.
type Report struct {
	InvocationID string
	Events       int
	Completed    int
	Dropped      int
}

type batchRunner interface {
	HandleAll(ctx context.Context, events []domain.DomainEvent) []fanout.Result
}

// Ingestor runs a decoded trigger delivery through the adapter and the
// orchestrator. It never fails: every problem is logged and counted as a drop.
type Ingestor struct {
	adapter trigger.Adapter
	runner  batchRunner
	newID   func() string
}

func NewIngestor(adapter trigger.Adapter, runner batchRunner) *Ingestor {
	return &Ingestor{adapter: adapter, runner: runner, newID: id.New}
}

func (i *Ingestor) UserUpdated(ctx context.Context, p UserUpdatedPayload) Report {
	inv := i.newID()
	log := slog.With("invocation_id", inv, "trigger", "user-updated", "event_id", p.EventID)

	events, err := i.adapter.FollowTransition(p.Before, p.After, p.EventID)
	if err != nil {
		logAdapterError(log, err)
		return Report{InvocationID: inv, Dropped: 1}
	}
	return i.run(ctx, log, inv, events)
}

func (i *Ingestor) CommentCreated(ctx context.Context, p CommentCreatedPayload) Report {
	inv := i.newID()
	log := slog.With("invocation_id", inv, "trigger", "comment-created", "event_id", p.EventID)

	if err := validate.Struct(p.Comment); err != nil {
		logAdapterError(log, errors.Join(domain.ErrMalformedEvent, err))
		return Report{InvocationID: inv, Dropped: 1}
	}
	ev, err := i.adapter.CommentCreated(ctx, p.Comment, p.EventID)
	if err != nil {
		logAdapterError(log, err)
		return Report{InvocationID: inv, Dropped: 1}
	}
	var events []domain.DomainEvent
	if ev != nil {
		events = append(events, *ev)
	}
	return i.run(ctx, log, inv, events)
}

// run is detached from the caller's cancellation so that a delivery whose
// caller hangs up does not abort appends already in flight.
func (i *Ingestor) run(ctx context.Context, log *slog.Logger, inv string, events []domain.DomainEvent) Report {
	rep := Report{InvocationID: inv, Events: len(events)}
	if len(events) == 0 {
		log.Debug("trigger produced no events")
		return rep
	}
	for _, res := range i.runner.HandleAll(context.WithoutCancel(ctx), events) {
		if res.State == fanout.StateCompleted {
			rep.Completed++
		} else {
			rep.Dropped++
		}
	}
	log.Info("trigger handled", "events", rep.Events, "completed", rep.Completed, "dropped", rep.Dropped)
	return rep
}

func logAdapterError(log *slog.Logger, err error) {
	if errors.Is(err, domain.ErrMalformedEvent) {
		log.Warn("malformed trigger payload dropped", "err", err)
		return
	}
	log.Error("trigger could not be normalized", "err", err)
}
