package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-fanout-nosql/internal/domain"
)

// Adapter turns raw trigger payloads (user record transitions, new comments)
// into normalized domain events.
type Adapter interface {
	FollowTransition(prev, next *domain.TriggerUser, sourceEventID string) ([]domain.DomainEvent, error)
	CommentCreated(ctx context.Context, c domain.CommentRecord, sourceEventID string) (*domain.DomainEvent, error)
}

type contentStore interface {
	Get(ctx context.Context, ref string) (*domain.Content, error)
}

type adapter struct {
	contents contentStore
	now      func() time.Time
}

func NewAdapter(contents contentStore) Adapter {
	return &adapter{contents: contents, now: time.Now}
}

// FollowTransition emits one follow event per id present in next.Followers
// and absent from prev.Followers, ordered by follower id. A nil prev counts
// as an empty follower set. Removals produce nothing.
func (a *adapter) FollowTransition(prev, next *domain.TriggerUser, sourceEventID string) ([]domain.DomainEvent, error) {
	if next == nil || next.UserID == "" {
		return nil, fmt.Errorf("user transition without a target record: %w", domain.ErrMalformedEvent)
	}
	if prev != nil && prev.UserID != "" && prev.UserID != next.UserID {
		return nil, fmt.Errorf("user transition %s -> %s: %w", prev.UserID, next.UserID, domain.ErrMalformedEvent)
	}

	before := make(map[string]struct{})
	if prev != nil {
		for _, id := range prev.Followers {
			before[id] = struct{}{}
		}
	}

	added := make([]string, 0, len(next.Followers))
	seen := make(map[string]struct{}, len(next.Followers))
	for _, id := range next.Followers {
		if id == "" || id == next.UserID {
			continue
		}
		if _, ok := before[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		added = append(added, id)
	}
	sort.Strings(added)

	at := a.now().UTC()
	events := make([]domain.DomainEvent, 0, len(added))
	for _, follower := range added {
		ev := domain.DomainEvent{
			Kind:        domain.KindFollow,
			ActorID:     follower,
			RecipientID: next.UserID,
			OccurredAt:  at,
		}
		if sourceEventID != "" {
			ev.SourceEventID = sourceEventID + ":" + follower
		}
		events = append(events, ev)
	}
	return events, nil
}

// CommentCreated builds the comment event for c. The content record supplies
// the title and, when the comment does not carry it, the owner. A comment by
// the content owner yields no event.
func (a *adapter) CommentCreated(ctx context.Context, c domain.CommentRecord, sourceEventID string) (*domain.DomainEvent, error) {
	if c.AuthorID == "" || c.ContentRef == "" {
		return nil, fmt.Errorf("comment %q without author or content: %w", c.CommentID, domain.ErrMalformedEvent)
	}

	content, err := a.contents.Get(ctx, c.ContentRef)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("comment %q on unknown content %s: %w", c.CommentID, c.ContentRef, domain.ErrMalformedEvent)
	}
	if err != nil {
		return nil, fmt.Errorf("load content %s: %w", c.ContentRef, err)
	}

	owner := c.ContentOwnerID
	if owner == "" {
		owner = content.OwnerID
	}
	if owner == "" {
		return nil, fmt.Errorf("content %s has no owner: %w", c.ContentRef, domain.ErrMalformedEvent)
	}
	if owner == c.AuthorID {
		return nil, nil
	}

	title := content.Title
	ref := c.ContentRef
	occurred := c.CreatedAt
	if occurred.IsZero() {
		occurred = a.now()
	}
	return &domain.DomainEvent{
		Kind:          domain.KindComment,
		ActorID:       c.AuthorID,
		RecipientID:   owner,
		ContentTitle:  &title,
		TargetRef:     &ref,
		SourceEventID: sourceEventID,
		OccurredAt:    occurred.UTC(),
	}, nil
}
