package domain

// ContentKind is the family of a shared content item.
type ContentKind string

const (
	ContentBook  ContentKind = "book"
	ContentVideo ContentKind = "video"
	ContentMovie ContentKind = "movie"
	ContentMusic ContentKind = "music"
	ContentGame  ContentKind = "game"
	ContentSite  ContentKind = "site"
)

// Content is the slice of a content record the notification core reads:
// who owns it, what it is called and where it lives.
type Content struct {
	ContentRef string      `json:"ref" dynamodbav:"content_ref"`
	OwnerID    string      `json:"owner_id" dynamodbav:"owner_id"`
	Title      string      `json:"title" dynamodbav:"title"`
	Kind       ContentKind `json:"kind" dynamodbav:"kind"`
}
