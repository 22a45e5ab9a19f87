package fanout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-fanout-nosql/internal/application/dispatch"
	"github.com/go-fanout-nosql/internal/domain"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateCompleted State = "completed"
	StateDropped   State = "dropped"
)

// Result is the terminal state of one event. Append and Push are only
// meaningful when State is completed.
type Result struct {
	State  State
	Append error
	Push   dispatch.Outcome
}

// Metrics receives one call per terminal outcome.
type Metrics interface {
	Event(kind domain.NotificationKind, state State)
	Append(err error)
	Push(out dispatch.Outcome)
}

type Orchestrator interface {
	Handle(ctx context.Context, ev domain.DomainEvent) Result
	HandleAll(ctx context.Context, events []domain.DomainEvent) []Result
}

type resolver interface {
	Resolve(ctx context.Context, ev domain.DomainEvent) (*domain.ResolvedNotification, error)
}

type feedAppender interface {
	AppendNotification(ctx context.Context, recipientID string, entry domain.NotificationEntry) error
}

type channelRevoker interface {
	RevokePushChannel(ctx context.Context, userID, channel string) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, n domain.ResolvedNotification) dispatch.Outcome
}

type orchestrator struct {
	resolver    resolver
	store       feedAppender
	channels    channelRevoker
	dispatcher  dispatcher
	metrics     Metrics
	now         func() time.Time
	concurrency int
}

type OrchestratorDeps struct {
	Resolver    resolver
	Store       feedAppender
	Channels    channelRevoker // optional, clears channels the provider revoked
	Dispatcher  dispatcher
	Metrics     Metrics          // optional
	Clock       func() time.Time // optional, defaults to time.Now
	Concurrency int              // HandleAll parallelism, defaults to 8
}

func NewOrchestrator(deps OrchestratorDeps) Orchestrator {
	o := &orchestrator{
		resolver:    deps.Resolver,
		store:       deps.Store,
		channels:    deps.Channels,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		now:         deps.Clock,
		concurrency: deps.Concurrency,
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.concurrency <= 0 {
		o.concurrency = 8
	}
	return o
}

// Handle runs one event to a terminal state. Once the recipient is resolved
// the feed append and the push run concurrently; neither waits on, gates or
// undoes the other. Handle returns after both have finished.
func (o *orchestrator) Handle(ctx context.Context, ev domain.DomainEvent) Result {
	log := slog.With("kind", ev.Kind, "actor_id", ev.ActorID, "recipient_id", ev.RecipientID, "event_id", ev.SourceEventID)

	if ev.SelfInflicted() {
		log.Debug("self-inflicted event dropped")
		return o.drop(ev)
	}

	n, err := o.resolver.Resolve(ctx, ev)
	if errors.Is(err, domain.ErrRecipientNotFound) {
		log.Warn("recipient not found, event dropped")
		return o.drop(ev)
	}
	if err != nil {
		log.Error("resolve failed, event dropped", "err", err)
		return o.drop(ev)
	}

	entry := n.Entry(o.now())
	res := Result{State: StateCompleted}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.Append = o.store.AppendNotification(ctx, n.RecipientID, entry)
	}()
	go func() {
		defer wg.Done()
		res.Push = o.dispatcher.Dispatch(ctx, *n)
	}()
	wg.Wait()

	switch {
	case res.Append == nil:
	case errors.Is(res.Append, domain.ErrDuplicateEvent):
		log.Info("duplicate delivery, feed entry already present")
	default:
		log.Error("feed append failed, entry lost", "err", res.Append)
	}
	if res.Push.Reason == dispatch.ReasonRevoked && o.channels != nil {
		if err := o.channels.RevokePushChannel(ctx, n.RecipientID, *n.PushChannel); err != nil {
			log.Error("clear revoked push channel failed", "err", err)
		} else {
			log.Info("revoked push channel cleared")
		}
	}
	log.Info("fan-out completed", "push_status", res.Push.Status, "push_reason", res.Push.Reason)

	o.metrics.Append(res.Append)
	o.metrics.Push(res.Push)
	o.metrics.Event(ev.Kind, StateCompleted)
	return res
}

func (o *orchestrator) drop(ev domain.DomainEvent) Result {
	o.metrics.Event(ev.Kind, StateDropped)
	return Result{State: StateDropped}
}

// HandleAll runs Handle for every event with bounded parallelism and returns
// the results in input order. Events are independent: one failure never stops
// the others.
func (o *orchestrator) HandleAll(ctx context.Context, events []domain.DomainEvent) []Result {
	results := make([]Result, len(events))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := range events {
		i := i
		g.Go(func() error {
			results[i] = o.Handle(gctx, events[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type nopMetrics struct{}

func (nopMetrics) Event(domain.NotificationKind, State) {}
func (nopMetrics) Append(error)                         {}
func (nopMetrics) Push(dispatch.Outcome)                {}
