// Package metrics holds the Prometheus collectors for checkout reconciliation,
// the sign-in callback, username allocation and subscription sync.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op.
type Metrics struct {
	reconcile        *prometheus.CounterVec
	callback         *prometheus.CounterVec
	callbackDuration prometheus.Histogram
	username         *prometheus.CounterVec
	sync             *prometheus.CounterVec
}

// MustNew registers the collectors with reg (the default registerer when nil).
// Collectors already registered under the same name are reused, so building
// two services against one registry does not panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membergate",
			Subsystem: "checkout",
			Name:      "reconcile_total",
			Help:      "Checkout confirmations by outcome.",
		}, []string{"outcome"}),
		callback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membergate",
			Subsystem: "auth",
			Name:      "callback_total",
			Help:      "Sign-in callbacks by final step and error tag.",
		}, []string{"step", "tag"}),
		callbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "membergate",
			Subsystem: "auth",
			Name:      "callback_duration_seconds",
			Help:      "Time to route one sign-in callback.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		username: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membergate",
			Subsystem: "profiles",
			Name:      "username_attempts_total",
			Help:      "Username write attempts by result.",
		}, []string{"result"}),
		sync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membergate",
			Subsystem: "billing",
			Name:      "subscription_sync_total",
			Help:      "Subscription syncs by outcome.",
		}, []string{"outcome"}),
	}
	m.reconcile = registerCounterVec(reg, m.reconcile)
	m.callback = registerCounterVec(reg, m.callback)
	m.username = registerCounterVec(reg, m.username)
	m.sync = registerCounterVec(reg, m.sync)
	if err := reg.Register(m.callbackDuration); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			panic(err)
		}
		m.callbackDuration = already.ExistingCollector.(prometheus.Histogram)
	}
	return m
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

// IncReconcile counts one checkout confirmation outcome (a status or an error kind).
func (m *Metrics) IncReconcile(outcome string) {
	if m == nil {
		return
	}
	m.reconcile.WithLabelValues(outcome).Inc()
}

// ObserveCallback records where a callback ended and how long it took.
func (m *Metrics) ObserveCallback(step, tag string, d time.Duration) {
	if m == nil {
		return
	}
	m.callback.WithLabelValues(step, tag).Inc()
	m.callbackDuration.Observe(d.Seconds())
}

func (m *Metrics) IncUsernameAttempt(result string) {
	if m == nil {
		return
	}
	m.username.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSync(outcome string) {
	if m == nil {
		return
	}
	m.sync.WithLabelValues(outcome).Inc()
}
