// Package metrics exposes the gateway's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every gateway metric.
const namespace = "relay"

// Collector owns the gateway metric families.
//
// Metrics:
//   - relay_requests_total: relayed requests by provider, egress and upstream status
//   - relay_upstream_latency_seconds: upstream call latency by provider
//   - relay_credentials: credential counts by provider and state
//   - relay_proxy_pool_size: current egress pool size
//   - relay_syncs_total: sync engine cycles by result
//   - relay_quota_resets_total: quota resets by provider
type Collector struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	credentials *prometheus.GaugeVec
	proxyPool   prometheus.Gauge
	syncs       *prometheus.CounterVec
	resets      *prometheus.CounterVec
}

// NewCollector creates and registers the gateway metrics on a fresh
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Relayed requests by provider, egress mode and upstream status",
			},
			[]string{"provider", "egress", "status"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_latency_seconds",
				Help:      "Upstream call latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),

		credentials: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "credentials",
				Help:      "Credential counts by provider and state",
			},
			[]string{"provider", "state"},
		),

		proxyPool: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "proxy_pool_size",
				Help:      "Current number of egress proxy endpoints",
			},
		),

		syncs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "syncs_total",
				Help:      "Credential sync cycles by result",
			},
			[]string{"result"},
		),

		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_resets_total",
				Help:      "Quota resets by provider",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(c.requests, c.latency, c.credentials, c.proxyPool, c.syncs, c.resets)
	return c
}

// RecordRequest counts one relayed request and its upstream latency.
func (c *Collector) RecordRequest(provider, egress string, status int, latency time.Duration) {
	c.requests.WithLabelValues(provider, egress, strconv.Itoa(status)).Inc()
	c.latency.WithLabelValues(provider).Observe(latency.Seconds())
}

// SetCredentialCounts updates the per-provider credential gauges.
func (c *Collector) SetCredentialCounts(provider string, valid, invalid, cooldown int) {
	c.credentials.WithLabelValues(provider, "valid").Set(float64(valid))
	c.credentials.WithLabelValues(provider, "invalid").Set(float64(invalid))
	c.credentials.WithLabelValues(provider, "cooldown").Set(float64(cooldown))
}

// SetProxyPoolSize updates the egress pool gauge.
func (c *Collector) SetProxyPoolSize(n int) {
	c.proxyPool.Set(float64(n))
}

// RecordSync counts one sync cycle.
func (c *Collector) RecordSync(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.syncs.WithLabelValues(result).Inc()
}

// RecordReset counts one quota reset.
func (c *Collector) RecordReset(provider string) {
	c.resets.WithLabelValues(provider).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
