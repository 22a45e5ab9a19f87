package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-fanout-nosql/internal/infrastructure/google"
)

// TriggerSecretHeader carries the shared secret of the trigger infrastructure.
const TriggerSecretHeader = "X-Trigger-Secret"

// TriggerSecret rejects requests whose X-Trigger-Secret header does not match
// secret. An empty secret disables the check.
func TriggerSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(TriggerSecretHeader))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeJSONError(w, http.StatusUnauthorized, "invalid trigger secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type callerVerifier interface {
	Verify(ctx context.Context, token string) (*google.Caller, error)
}

// TriggerIdentity requires a Google-signed ID token in the Authorization
// header, as sent by push subscriptions configured with an OIDC identity.
func TriggerIdentity(verifier callerVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			caller, err := verifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				slog.Warn("trigger identity rejected", "err", err)
				writeJSONError(w, http.StatusUnauthorized, "invalid identity token")
				return
			}
			slog.Debug("trigger identity accepted", "email", caller.Email)
			next.ServeHTTP(w, r)
		})
	}
}
