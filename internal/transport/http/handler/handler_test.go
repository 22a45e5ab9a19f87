package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-fanout-nosql/internal/application/dispatch"
	"github.com/go-fanout-nosql/internal/application/fanout"
	"github.com/go-fanout-nosql/internal/application/ingest"
	"github.com/go-fanout-nosql/internal/application/notification"
	"github.com/go-fanout-nosql/internal/application/resolver"
	"github.com/go-fanout-nosql/internal/application/trigger"
	"github.com/go-fanout-nosql/internal/domain"
	jwtinfra "github.com/go-fanout-nosql/internal/infrastructure/jwt"
	"github.com/go-fanout-nosql/internal/infrastructure/memory"
	"github.com/go-fanout-nosql/internal/transport/http/middleware"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type sentPush struct {
	Token string
	Msg   domain.PushMessage
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []sentPush
}

func (r *recordingTransport) Send(_ context.Context, token string, msg domain.PushMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentPush{Token: token, Msg: msg})
	return nil
}

func (r *recordingTransport) all() []sentPush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentPush(nil), r.sent...)
}

// --- helpers ---

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type fixture struct {
	store     *memory.Store
	transport *recordingTransport
	triggers  *TriggerHandler
	feed      *NotificationHandler
}

func newFixture(t *testing.T, users ...*domain.User) *fixture {
	t.Helper()
	store := memory.NewStore(0)
	for _, u := range users {
		require.NoError(t, store.Put(context.Background(), u))
	}
	tr := &recordingTransport{}
	var mu sync.Mutex
	clock := t0
	orch := fanout.NewOrchestrator(fanout.OrchestratorDeps{
		Resolver:   resolver.NewResolver(store),
		Store:      store,
		Dispatcher: dispatch.NewDispatcher(dispatch.DispatcherDeps{Transport: tr, Timeout: time.Second}),
		Clock: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	})
	svc := notification.NewService(notification.ServiceDeps{Feed: store, Channels: store, Users: store, Transport: tr})
	return &fixture{
		store:     store,
		transport: tr,
		triggers:  NewTriggerHandler(ingest.NewIngestor(trigger.NewAdapter(store.Contents()), orch)),
		feed:      NewNotificationHandler(svc),
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// asUser injects claims the way middleware.Auth does.
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithClaims(r.Context(), &jwtinfra.Claims{UserID: userID}))
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}
