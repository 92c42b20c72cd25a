// Package metrics exposes bridge activity as Prometheus collectors. A
// Metrics value is both an instance.Observer and a bridge.Recorder.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/event"
	"github.com/wippyai/tox-bridge/instance"
)

const namespace = "toxbridge"

// Metrics holds the collectors, registered on their own registry so several
// bridges in one process (or one test binary) do not collide.
type Metrics struct {
	registry *prometheus.Registry

	sessionsLive     prometheus.Gauge
	lifecycleTotal   *prometheus.CounterVec
	teardownErrors   prometheus.Counter
	drainsTotal      *prometheus.CounterVec
	drainSeconds     prometheus.Histogram
	drainBatch       prometheus.Histogram
	eventsTotal      *prometheus.CounterVec
	invokesTotal     *prometheus.CounterVec
	invokeSeconds    *prometheus.HistogramVec
	injectsTotal     *prometheus.CounterVec
	invalidEnumTotal *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_live",
			Help:      "Sessions currently registered (active or killed).",
		}),
		lifecycleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session lifecycle transitions by type.",
		}, []string{"transition"}),
		teardownErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teardown_errors_total",
			Help:      "Native teardowns that reported an error.",
		}),
		drainsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drains_total",
			Help:      "Drain calls by result kind.",
		}, []string{"result"}),
		drainSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_duration_seconds",
			Help:      "Time spent in Drain, including the native step.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		drainBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "drain_batch_events",
			Help:      "Events returned per successful drain.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_drained_total",
			Help:      "Drained events by kind.",
		}, []string{"kind"}),
		invokesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invokes_total",
			Help:      "Native action calls by action and result kind.",
		}, []string{"action", "result"}),
		invokeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoke_duration_seconds",
			Help:      "Time spent in Invoke.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"action"}),
		injectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "injects_total",
			Help:      "Injected events by kind and result kind.",
		}, []string{"kind", "result"}),
		invalidEnumTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_enum_total",
			Help:      "Native callbacks that carried an unknown enumeration value.",
		}, []string{"kind", "field"}),
	}

	m.registry.MustRegister(
		m.sessionsLive,
		m.lifecycleTotal,
		m.teardownErrors,
		m.drainsTotal,
		m.drainSeconds,
		m.drainBatch,
		m.eventsTotal,
		m.invokesTotal,
		m.invokeSeconds,
		m.injectsTotal,
		m.invalidEnumTotal,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	if k := errors.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// OnInstanceEvent implements instance.Observer.
func (m *Metrics) OnInstanceEvent(e instance.Event) {
	m.lifecycleTotal.WithLabelValues(e.Type.String()).Inc()
	switch e.Type {
	case instance.EventCreated:
		m.sessionsLive.Inc()
	case instance.EventKilled:
		if e.Err != nil {
			m.teardownErrors.Inc()
		}
	case instance.EventFinalized:
		m.sessionsLive.Dec()
	}
}

// ObserveDrain implements bridge.Recorder.
func (m *Metrics) ObserveDrain(events []event.Event, elapsed time.Duration, err error) {
	m.drainsTotal.WithLabelValues(result(err)).Inc()
	m.drainSeconds.Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	m.drainBatch.Observe(float64(len(events)))
	for _, e := range events {
		m.eventsTotal.WithLabelValues(e.Kind().String()).Inc()
	}
}

// ObserveInvoke implements bridge.Recorder.
func (m *Metrics) ObserveInvoke(action string, elapsed time.Duration, err error) {
	m.invokesTotal.WithLabelValues(action, result(err)).Inc()
	m.invokeSeconds.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveInject implements bridge.Recorder.
func (m *Metrics) ObserveInject(kind event.Kind, err error) {
	m.injectsTotal.WithLabelValues(kind.String(), result(err)).Inc()
}

// ObserveInvalidEnum implements bridge.Recorder.
func (m *Metrics) ObserveInvalidEnum(kind event.Kind, field string) {
	m.invalidEnumTotal.WithLabelValues(kind.String(), field).Inc()
}
