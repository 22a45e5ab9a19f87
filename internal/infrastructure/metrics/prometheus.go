package metrics

import (
	"errors"

	"github.com/go-fanout-nosql/internal/application/dispatch"
	"github.com/go-fanout-nosql/internal/application/fanout"
	"github.com/go-fanout-nosql/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the fan-out counters and implements fanout.Metrics.
type Collector struct {
	Events       *prometheus.CounterVec
	Pushes       *prometheus.CounterVec
	Appends      *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// NewCollector creates the counters and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_events_total",
				Help: "Domain events by kind and terminal state",
			},
			[]string{"kind", "state"},
		),
		Pushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_push_total",
				Help: "Push dispatch outcomes",
			},
			[]string{"status", "reason"},
		),
		Appends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_append_total",
				Help: "Feed append outcomes",
			},
			[]string{"result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
	}
	reg.MustRegister(c.Events, c.Pushes, c.Appends, c.HTTPRequests)
	return c
}

func (c *Collector) Event(kind domain.NotificationKind, state fanout.State) {
	c.Events.WithLabelValues(string(kind), string(state)).Inc()
}

func (c *Collector) Push(out dispatch.Outcome) {
	reason := string(out.Reason)
	if reason == "" {
		reason = "none"
	}
	c.Pushes.WithLabelValues(string(out.Status), reason).Inc()
}

func (c *Collector) Append(err error) {
	c.Appends.WithLabelValues(appendResult(err)).Inc()
}

func appendResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrDuplicateEvent):
		return "duplicate"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
