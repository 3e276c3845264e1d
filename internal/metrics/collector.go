// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector exposes the service metrics.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	sessionsActive  prometheus.Gauge
	sessionsCreated prometheus.Counter
	sessionsClosed  prometheus.Counter
	sessionsEvicted prometheus.Counter
	sessionsExpired prometheus.Counter

	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
}

// NewCollector registers the metric set on the given registerer. Tests pass
// a private registry; the server passes prometheus.DefaultRegisterer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	c := &Collector{}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.sessionsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Number of live browser sessions",
	})
	c.sessionsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Total number of sessions created",
	})
	c.sessionsClosed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_closed_total",
		Help:      "Total number of sessions closed by request",
	})
	c.sessionsEvicted = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_evicted_total",
		Help:      "Total number of sessions evicted at capacity",
	})
	c.sessionsExpired = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Total number of sessions collected after their TTL",
	})

	c.commandsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of executed action commands",
		},
		[]string{"api", "outcome"},
	)
	c.commandDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Action command duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"api"},
	)

	return c
}

// RecordHTTPRequest counts one served request.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand counts one action command by outcome.
func (c *Collector) RecordCommand(api string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.commandsTotal.WithLabelValues(api, outcome).Inc()
	c.commandDuration.WithLabelValues(api).Observe(duration.Seconds())
}

// SessionCreated implements session.Recorder.
func (c *Collector) SessionCreated() {
	c.sessionsCreated.Inc()
	c.sessionsActive.Inc()
}

// SessionClosed implements session.Recorder.
func (c *Collector) SessionClosed() {
	c.sessionsClosed.Inc()
	c.sessionsActive.Dec()
}

// SessionEvicted implements session.Recorder.
func (c *Collector) SessionEvicted() {
	c.sessionsEvicted.Inc()
	c.sessionsActive.Dec()
}

// SessionExpired implements session.Recorder.
func (c *Collector) SessionExpired() {
	c.sessionsExpired.Inc()
	c.sessionsActive.Dec()
}
