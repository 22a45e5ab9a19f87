package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-fanout-nosql/internal/application/dispatch"
	"github.com/go-fanout-nosql/internal/application/fanout"
	"github.com/go-fanout-nosql/internal/application/ingest"
	"github.com/go-fanout-nosql/internal/application/resolver"
	"github.com/go-fanout-nosql/internal/application/trigger"
	"github.com/go-fanout-nosql/internal/config"
	"github.com/go-fanout-nosql/internal/domain"
	"github.com/go-fanout-nosql/internal/infrastructure/breaker"
	"github.com/go-fanout-nosql/internal/infrastructure/dynamo"
	"github.com/go-fanout-nosql/internal/infrastructure/fcm"
	"github.com/go-fanout-nosql/internal/infrastructure/google"
	jwtinfra "github.com/go-fanout-nosql/internal/infrastructure/jwt"
	"github.com/go-fanout-nosql/internal/infrastructure/logpush"
	"github.com/go-fanout-nosql/internal/infrastructure/memory"
	"github.com/go-fanout-nosql/internal/infrastructure/metrics"
	"github.com/go-fanout-nosql/internal/infrastructure/pubsub"
	"github.com/go-fanout-nosql/internal/infrastructure/sns"
	transporthttp "github.com/go-fanout-nosql/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// userStore is everything the binary needs from the user table: the router's
// view plus the feed append and channel revocation used by the orchestrator.
type userStore interface {
	transporthttp.UserStore
	AppendNotification(ctx context.Context, recipientID string, entry domain.NotificationEntry) error
	RevokePushChannel(ctx context.Context, userID, channel string) error
}

type contentStore interface {
	Get(ctx context.Context, ref string) (*domain.Content, error)
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, contents := newStores(ctx, cfg)

	transport, err := newPushTransport(ctx, cfg)
	if err != nil {
		slog.Error("push transport unavailable", "provider", cfg.PushProvider, "err", err)
		os.Exit(1)
	}
	if cfg.PushBreakerFailures > 0 {
		transport = breaker.NewTransport(transport, breaker.Config{
			Name:       cfg.PushProvider,
			Failures:   uint(cfg.PushBreakerFailures),
			Executions: uint(2 * cfg.PushBreakerFailures),
			Delay:      cfg.PushBreakerDelay,
		})
	}

	// JWT provider (optional: feed routes answer 503 without it).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		slog.Warn("JWT provider not available", "err", err)
	}

	var triggerVerifier *google.Verifier
	if cfg.TriggerAudience != "" {
		triggerVerifier = google.NewVerifier(cfg.TriggerAudience, cfg.TriggerServiceAccount)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	orch := fanout.NewOrchestrator(fanout.OrchestratorDeps{
		Resolver: resolver.NewResolver(users),
		Store:    users,
		Channels: users,
		Dispatcher: dispatch.NewDispatcher(dispatch.DispatcherDeps{
			Transport:    transport,
			Timeout:      cfg.PushTimeout,
			DeepLinkBase: cfg.DeepLinkBaseURL,
		}),
		Metrics:     collector,
		Concurrency: cfg.FanoutConcurrency,
	})
	ingestor := ingest.NewIngestor(trigger.NewAdapter(contents), orch)

	if cfg.PubSubSubscription != "" {
		sub, err := pubsub.NewSubscriber(ctx, cfg.PubSubProjectID, cfg.PubSubSubscription, cfg.PubSubCredentialsPath, ingestor)
		if err != nil {
			slog.Error("pubsub subscriber unavailable", "err", err)
			os.Exit(1)
		}
		defer sub.Close()
		go func() {
			if err := sub.Run(ctx); err != nil {
				slog.Error("pubsub subscriber stopped", "err", err)
			}
		}()
	}

	deps := &transporthttp.Deps{
		Users:           users,
		Transport:       transport,
		Ingestor:        ingestor,
		JWTProvider:     jwtProvider,
		TriggerVerifier: triggerVerifier,
		Metrics:         collector,
		Registry:        reg,
	}
	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
			"store", cfg.StoreBackend, "push", cfg.PushProvider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newStores(ctx context.Context, cfg *config.Config) (userStore, contentStore) {
	if cfg.StoreBackend == "memory" {
		slog.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore(cfg.NotificationRetention)
		return store, store.Contents()
	}
	// Bootstrap DynamoDB tables (creates them if they don't exist).
	client := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
	return dynamo.NewUserRepo(client, cfg.DynamoTables.Users, cfg.NotificationRetention),
		dynamo.NewContentRepo(client, cfg.DynamoTables.Contents)
}

func newPushTransport(ctx context.Context, cfg *config.Config) (transporthttp.PushTransport, error) {
	switch cfg.PushProvider {
	case "fcm":
		t, err := fcm.NewTransport(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			return nil, err
		}
		return t, nil
	case "sns":
		s, err := sns.NewSender(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "log":
		return logpush.NewTransport(slog.Default()), nil
	default:
		return nil, fmt.Errorf("unknown push provider %q", cfg.PushProvider)
	}
}
