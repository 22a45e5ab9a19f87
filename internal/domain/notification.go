package domain

import "time"

// NotificationKind enumerates the events that produce a feed entry.
type NotificationKind string

const (
	KindFollow  NotificationKind = "follow"
	KindComment NotificationKind = "comment"
)

// Valid reports whether k is one of the known kinds.
func (k NotificationKind) Valid() bool {
	return k == KindFollow || k == KindComment
}

// NotificationEntry is one fan-out outcome recorded in a user's in-app feed.
// CreatedAt doubles as the entry's identity key within that feed.
type NotificationEntry struct {
	Kind          NotificationKind `json:"type" dynamodbav:"kind"`
	ActorID       string           `json:"actor_id" dynamodbav:"actor_id"`
	ActorName     string           `json:"actor_name" dynamodbav:"actor_name"`
	TargetRef     *string          `json:"target_ref,omitempty" dynamodbav:"target_ref,omitempty"`
	ContentTitle  *string          `json:"content_title,omitempty" dynamodbav:"content_title,omitempty"`
	CreatedAt     time.Time        `json:"created_at" dynamodbav:"created_at"`
	Read          bool             `json:"read" dynamodbav:"read"`
	SourceEventID string           `json:"-" dynamodbav:"source_event_id,omitempty"`
}

type MarkReadRequest struct {
	CreatedAt time.Time `json:"created_at" validate:"required"`
}
