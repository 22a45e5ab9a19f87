package domain

import "time"

// DomainEvent is the normalized form of "a follow happened" or "a comment was
// posted". It is never persisted on its own.
type DomainEvent struct {
	Kind          NotificationKind
	ActorID       string
	RecipientID   string
	ContentTitle  *string
	TargetRef     *string
	SourceEventID string
	OccurredAt    time.Time
}

// SelfInflicted reports whether the actor would be notified about their own action.
func (e DomainEvent) SelfInflicted() bool {
	return e.ActorID == e.RecipientID
}

// CommentRecord is an external comment document. The fan-out core only reads it.
type CommentRecord struct {
	CommentID      string    `json:"id"`
	AuthorID       string    `json:"author_id" validate:"required"`
	ContentOwnerID string    `json:"content_owner_id"`
	ContentRef     string    `json:"content_ref" validate:"required"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// ResolvedNotification is a DomainEvent enriched with display and delivery data.
type ResolvedNotification struct {
	Kind          NotificationKind
	ActorID       string
	ActorName     string
	RecipientID   string
	PushChannel   *string
	TargetRef     *string
	ContentTitle  *string
	SourceEventID string
}

// Entry builds the feed entry recorded for n at the given instant.
func (n ResolvedNotification) Entry(at time.Time) NotificationEntry {
	return NotificationEntry{
		Kind:          n.Kind,
		ActorID:       n.ActorID,
		ActorName:     n.ActorName,
		TargetRef:     n.TargetRef,
		ContentTitle:  n.ContentTitle,
		CreatedAt:     at.UTC(),
		SourceEventID: n.SourceEventID,
	}
}
