package domain

// PushMessage is the rendered payload handed to a push transport.
type PushMessage struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	DeepLink string `json:"deep_link"`
}
