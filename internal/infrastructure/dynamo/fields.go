package dynamo

// DynamoDB attribute names used in expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldUserID        = "user_id"
	fieldDisplayName   = "display_name"
	fieldEmail         = "email"
	fieldPushChannel   = "push_channel"
	fieldNotifications = "notifications"
	fieldEventIDs      = "event_ids"
	fieldUpdatedAt     = "updated_at"
	fieldCreatedAt     = "created_at"
	fieldRead          = "read"
	fieldContentRef    = "content_ref"
	fieldSourceEventID = "source_event_id"
)
