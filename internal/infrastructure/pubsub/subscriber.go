// Package pubsub feeds trigger deliveries published to a Google Cloud Pub/Sub
// subscription into the fan-out pipeline. It is the pull-mode twin of the
// HTTP trigger ingress.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/go-fanout-nosql/internal/application/ingest"
	"google.golang.org/api/option"
)

// TriggerAttribute names the message attribute that selects the payload type.
const TriggerAttribute = "trigger"

const (
	TriggerUserUpdated    = "user-updated"
	TriggerCommentCreated = "comment-created"
)

type ingestor interface {
	UserUpdated(ctx context.Context, p ingest.UserUpdatedPayload) ingest.Report
	CommentCreated(ctx context.Context, p ingest.CommentCreatedPayload) ingest.Report
}

type Subscriber struct {
	client   *gpubsub.Client
	sub      *gpubsub.Subscription
	ingester ingestor
}

// NewSubscriber connects to projectID. PUBSUB_EMULATOR_HOST is honoured by the
// client library.
func NewSubscriber(ctx context.Context, projectID, subscriptionID, credentialsFile string, ingester ingestor) (*Subscriber, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gpubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	sub := client.Subscription(subscriptionID)
	sub.ReceiveSettings.MaxOutstandingMessages = 64
	return &Subscriber{client: client, sub: sub, ingester: ingester}, nil
}

// Run blocks receiving messages until ctx is done. Every message is acked once
// processed: the pipeline already absorbs redelivery, and a payload that
// cannot be decoded will not decode on the next attempt either.
func (s *Subscriber) Run(ctx context.Context) error {
	slog.Info("pubsub subscriber started", "subscription", s.sub.ID())
	err := s.sub.Receive(ctx, func(ctx context.Context, msg *gpubsub.Message) {
		s.process(ctx, msg.ID, msg.Data, msg.Attributes)
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

func (s *Subscriber) Close() error {
	return s.client.Close()
}

func (s *Subscriber) process(ctx context.Context, msgID string, data []byte, attrs map[string]string) {
	log := slog.With("message_id", msgID, "trigger", attrs[TriggerAttribute])

	var rep ingest.Report
	switch attrs[TriggerAttribute] {
	case TriggerUserUpdated:
		var p ingest.UserUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Warn("undecodable trigger message dropped", "err", err)
			return
		}
		if p.EventID == "" {
			p.EventID = msgID
		}
		rep = s.ingester.UserUpdated(ctx, p)
	case TriggerCommentCreated:
		var p ingest.CommentCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			log.Warn("undecodable trigger message dropped", "err", err)
			return
		}
		if p.EventID == "" {
			p.EventID = msgID
		}
		rep = s.ingester.CommentCreated(ctx, p)
	default:
		log.Warn("message without a known trigger attribute dropped")
		return
	}
	log.Debug("trigger message processed", "invocation_id", rep.InvocationID,
		"completed", rep.Completed, "dropped", rep.Dropped)
}
