// Package breaker guards a push transport with a circuit breaker so that an
// unreachable provider fails fast instead of holding every fan-out for the
// full push timeout.
package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/go-fanout-nosql/internal/domain"
)

type pushTransport interface {
	Send(ctx context.Context, token string, msg domain.PushMessage) error
}

// Config trips the breaker when Failures of the last Executions sends failed
// and keeps it open for Delay before probing again. Sends rejected with
// domain.ErrChannelRevoked do not count as failures.
type Config struct {
	Name       string
	Failures   uint
	Executions uint
	Delay      time.Duration
}

func DefaultConfig(name string) Config {
	return Config{Name: name, Failures: 5, Executions: 10, Delay: 30 * time.Second}
}

type Transport struct {
	next pushTransport
	cb   circuitbreaker.CircuitBreaker[any]
}

func NewTransport(next pushTransport, cfg Config) *Transport {
	if cfg.Executions == 0 {
		cfg.Executions = 10
	}
	if cfg.Failures == 0 || cfg.Failures > cfg.Executions {
		cfg.Failures = cfg.Executions
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 30 * time.Second
	}
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(cfg.Failures, cfg.Executions).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(1).
		HandleIf(func(_ any, err error) bool {
			return err != nil && !errors.Is(err, domain.ErrChannelRevoked)
		}).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("push circuit breaker state change", "transport", cfg.Name,
				"from", stateName(e.OldState), "to", stateName(e.NewState))
		}).
		Build()
	return &Transport{next: next, cb: cb}
}

// Send forwards to the wrapped transport. While the circuit is open it returns
// circuitbreaker.ErrOpen without calling it.
func (t *Transport) Send(ctx context.Context, token string, msg domain.PushMessage) error {
	_, err := failsafe.With(t.cb).Get(func() (any, error) {
		return nil, t.next.Send(ctx, token, msg)
	})
	return err
}

func (t *Transport) IsOpen() bool {
	return t.cb.IsOpen()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}
