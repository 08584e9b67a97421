// Package metrics exposes Prometheus metrics for the load-balanced client.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minilb"

// Collector records call, attempt and retry metrics. A nil *Collector is a
// valid no-op collector. It is safe for concurrent use.
type Collector struct {
	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callsInFlight *prometheus.GaugeVec

	attemptsTotal *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec

	roundTripsTotal   *prometheus.CounterVec
	roundTripDuration *prometheus.HistogramVec
}

// NewCollector creates a collector on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector using the supplied registerer.
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of client calls by final result",
			},
			[]string{"service", "method", "result"},
		),
		callDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Duration of client calls in seconds, retries included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method"},
		),
		callsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "calls_in_flight",
				Help:      "Number of client calls currently executing",
			},
			[]string{"service"},
		),
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of attempts by failure phase (ok on success)",
			},
			[]string{"service", "phase"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retries by target choice",
			},
			[]string{"service", "target"},
		),
		roundTripsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "round_trips_total",
				Help:      "Total number of transport round trips",
			},
			[]string{"method", "host", "status_code"},
		),
		roundTripDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "round_trip_duration_seconds",
				Help:      "Time to response headers of transport round trips",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "host"},
		),
	}
}

// Call result labels.
const (
	ResultSuccess     = "success"
	ResultError       = "error"
	ResultConfigError = "config_error"
)

// RecordCall records the outcome and duration of a whole call.
func (c *Collector) RecordCall(service, method, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.callsTotal.WithLabelValues(service, method, result).Inc()
	c.callDuration.WithLabelValues(service, method).Observe(d.Seconds())
}

// CallStarted increments the in-flight gauge and returns the matching decrement.
func (c *Collector) CallStarted(service string) func() {
	if c == nil {
		return func() {}
	}
	g := c.callsInFlight.WithLabelValues(service)
	g.Inc()
	return g.Dec
}

// RecordAttempt counts one attempt. phase is "ok" for a successful attempt.
func (c *Collector) RecordAttempt(service, phase string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(service, phase).Inc()
}

// RecordRetry counts a retry towards target ("same_server" or "next_server").
func (c *Collector) RecordRetry(service, target string) {
	if c == nil {
		return
	}
	c.retriesTotal.WithLabelValues(service, target).Inc()
}

// RecordRoundTrip records one transport exchange. statusCode is 0 when no
// response was received.
func (c *Collector) RecordRoundTrip(method, host string, statusCode int, d time.Duration) {
	if c == nil {
		return
	}
	c.roundTripsTotal.WithLabelValues(method, host, strconv.Itoa(statusCode)).Inc()
	c.roundTripDuration.WithLabelValues(method, host).Observe(d.Seconds())
}
