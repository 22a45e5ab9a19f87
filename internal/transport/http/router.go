package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-fanout-nosql/internal/application/notification"
	"github.com/go-fanout-nosql/internal/application/ingest"
	"github.com/go-fanout-nosql/internal/config"
	"github.com/go-fanout-nosql/internal/infrastructure/google"
	jwtinfra "github.com/go-fanout-nosql/internal/infrastructure/jwt"
	"github.com/go-fanout-nosql/internal/infrastructure/metrics"
	"github.com/go-fanout-nosql/internal/transport/http/handler"
	appmiddleware "github.com/go-fanout-nosql/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Users       UserStore
	Transport   PushTransport
	Ingestor    *ingest.Ingestor
	JWTProvider *jwtinfra.Provider

	// TriggerVerifier, when set, requires a Google-signed ID token on the
	// trigger routes in addition to the shared secret.
	TriggerVerifier *google.Verifier

	Metrics  *metrics.Collector
	Registry *prometheus.Registry
}

// NewRouter builds and returns the application router. Background work owned
// by the router stops when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	if deps.Metrics != nil {
		r.Use(appmiddleware.CountRequests(deps.Metrics.HTTPRequests))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = appmiddleware.Unavailable("authentication unavailable")
	}

	// Trigger deliveries come in bursts from a handful of hosts.
	triggerRL := appmiddleware.NewRateLimiter(rate.Limit(50), 200)
	go func() {
		<-ctx.Done()
		triggerRL.Stop()
	}()

	notifSvc := notification.NewService(notification.ServiceDeps{
		Feed:      deps.Users,
		Channels:  deps.Users,
		Users:     deps.Users,
		Transport: deps.Transport,
	})

	healthH := handler.NewHealthHandler()
	triggerH := handler.NewTriggerHandler(deps.Ingestor)
	notifH := handler.NewNotificationHandler(notifSvc)

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		// ── Trigger ingress (shared secret) ─────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(triggerRL.Limit)
			r.Use(appmiddleware.TriggerSecret(cfg.TriggerSecret))
			if deps.TriggerVerifier != nil {
				r.Use(appmiddleware.TriggerIdentity(deps.TriggerVerifier))
			}

			r.Post("/triggers/user-updated", triggerH.UserUpdated)
			r.Post("/triggers/comment-created", triggerH.CommentCreated)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Post("/notifications/read", notifH.MarkRead)
			r.Post("/notifications/read-all", notifH.MarkAllRead)
			r.Put("/users/me/push-channel", notifH.RegisterPushChannel)
			r.Delete("/users/me/push-channel", notifH.ClearPushChannel)
			r.Post("/users/me/push-channel/test", notifH.TestPush)
		})
	})

	return r
}
