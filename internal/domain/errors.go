package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Fan-out pipeline.
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrMalformedEvent    = errors.New("malformed event")
	ErrDuplicateEvent    = errors.New("duplicate event")

	// ErrChannelRevoked marks a push channel the provider no longer accepts.
	// It is a property of one recipient, not of the provider.
	ErrChannelRevoked = errors.New("push channel revoked")
)
