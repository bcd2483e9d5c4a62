// Package metrics exposes Prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records request and authentication metrics.
type Collector struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	authAttempts   *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitfav_http_requests_total",
			Help: "HTTP responses by method, route template and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gitfav_http_request_duration_seconds",
			Help:    "HTTP request latency by route template.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitfav_auth_attempts_total",
			Help: "Login and registration attempts by outcome.",
		}, []string{"flow", "outcome"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gitfav_gate_rejections_total",
			Help: "Requests rejected by the bearer token gate.",
		}, []string{"reason"}),
	}

	reg.MustRegister(c.requests, c.latency, c.authAttempts, c.gateRejections)
	return c
}

// ObserveRequest records one finished HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(route).Observe(d.Seconds())
}

// RecordAuthAttempt counts a login or register attempt.
func (c *Collector) RecordAuthAttempt(flow string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	c.authAttempts.WithLabelValues(flow, outcome).Inc()
}

// RecordGateRejection counts a request refused by the token gate.
func (c *Collector) RecordGateRejection(reason string) {
	c.gateRejections.WithLabelValues(reason).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
