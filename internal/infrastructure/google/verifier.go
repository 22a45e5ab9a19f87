package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-fanout-nosql/internal/domain"
	"google.golang.org/api/idtoken"
)

// Caller holds the verified identity of a Google-signed ID token.
type Caller struct {
	Subject string
	Email   string
}

// Verifier checks Google-signed OIDC tokens minted for one audience, the way
// Pub/Sub push and Eventarc deliveries authenticate. When serviceAccount is set
// the token must also belong to that account.
type Verifier struct {
	audience       string
	serviceAccount string
	validate       func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewVerifier(audience, serviceAccount string) *Verifier {
	return &Verifier{audience: audience, serviceAccount: serviceAccount, validate: idtoken.Validate}
}

// Verify returns a domain.ErrUnauthorized-wrapped error for any token that is
// invalid, expired, minted for another audience or for another account.
func (v *Verifier) Verify(ctx context.Context, token string) (*Caller, error) {
	p, err := v.validate(ctx, token, v.audience)
	if err != nil {
		return nil, fmt.Errorf("invalid google token: %w", domain.ErrUnauthorized)
	}
	email, _ := p.Claims["email"].(string)
	verified, _ := p.Claims["email_verified"].(bool)
	if v.serviceAccount != "" && (!verified || !strings.EqualFold(email, v.serviceAccount)) {
		return nil, fmt.Errorf("token issued to %q: %w", email, domain.ErrUnauthorized)
	}
	return &Caller{Subject: p.Subject, Email: email}, nil
}
