// Package metrics exposes prometheus metrics for auth storage calls and
// activity events.
package metrics

import (
	"context"
	"time"

	auth "github.com/goliatone/go-auth-core"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK                  = "ok"
	OutcomeNotFound            = "not_found"
	OutcomeDuplicateKey        = "duplicate_key"
	OutcomeConstraintViolation = "constraint_violation"
	OutcomeTransient           = "transient"
	OutcomeError               = "error"
)

// Collector holds the auth metrics registered on a prometheus.Registerer.
type Collector struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	activity   *prometheus.CounterVec
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_adapter_operations_total",
			Help: "Storage adapter calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_adapter_operation_duration_seconds",
			Help:    "Storage adapter call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		activity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_activity_events_total",
			Help: "Activity events by type.",
		}, []string{"event_type"}),
	}

	reg.MustRegister(
		c.operations,
		c.latency,
		c.activity,
	)

	return c
}

// Record implements auth.ActivitySink.
func (c *Collector) Record(_ context.Context, event auth.ActivityEvent) error {
	c.activity.WithLabelValues(string(event.EventType)).Inc()
	return nil
}

func (c *Collector) observe(operation string, start time.Time, err error) {
	c.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	c.operations.WithLabelValues(operation, Outcome(err)).Inc()
}

// Outcome maps an adapter error to its outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case auth.IsUserNotFound(err), auth.IsKeyNotFound(err), auth.IsSessionNotFound(err):
		return OutcomeNotFound
	case auth.IsDuplicateKey(err):
		return OutcomeDuplicateKey
	case auth.IsConstraintViolation(err):
		return OutcomeConstraintViolation
	case auth.IsTransient(err):
		return OutcomeTransient
	default:
		return OutcomeError
	}
}
