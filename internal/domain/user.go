package domain

import "time"

// User is the identity anchor of the fan-out subsystem. The notification feed
// lives on the same item so that appends are single-item updates.
type User struct {
	UserID        string              `json:"id" dynamodbav:"user_id"`
	DisplayName   string              `json:"display_name" dynamodbav:"display_name"`
	Email         string              `json:"email" dynamodbav:"email"`
	Followers     []string            `json:"followers" dynamodbav:"followers,omitempty"`
	PushChannel   *string             `json:"-" dynamodbav:"push_channel,omitempty"`
	Notifications []NotificationEntry `json:"notifications,omitempty" dynamodbav:"notifications,omitempty"`
	EventIDs      []string            `json:"-" dynamodbav:"event_ids,stringset,omitempty"`
	CreatedAt     time.Time           `json:"created" dynamodbav:"created_at"`
	UpdatedAt     time.Time           `json:"updated" dynamodbav:"updated_at"`
}

// Name returns the human-readable name used in notification text:
// display name, then email, then the raw id.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return u.UserID
}

// HasPushChannel reports whether the user registered a device channel.
func (u *User) HasPushChannel() bool {
	return u.PushChannel != nil && *u.PushChannel != ""
}

// TriggerUser is the record shape delivered by the trigger infrastructure for
// a user document change. Only the fields the adapter reads are decoded.
type TriggerUser struct {
	UserID    string   `json:"id" validate:"required"`
	Followers []string `json:"followers"`
}

type PushChannelRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}
