// Package metrics provides Prometheus metrics collection for the gateway
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Proxy gateway metrics
var (
	// ProxyRequestsTotal counts forwarded proxy requests by outcome
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeboard",
			Name:      "proxy_requests_total",
			Help:      "Total number of proxy gateway requests",
		},
		[]string{"method", "status"},
	)

	// ProxyUpstreamDuration tracks upstream call latency
	ProxyUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lifeboard",
			Name:      "proxy_upstream_duration_seconds",
			Help:      "Upstream request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"host"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lifeboard",
			Name:      "proxy_rate_limited_total",
			Help:      "Total number of rate limited requests",
		},
	)
)

// OAuth broker metrics
var (
	// OAuthFlowsTotal counts broker operations by step and outcome
	OAuthFlowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lifeboard",
			Name:      "oauth_flows_total",
			Help:      "Total number of OAuth broker operations",
		},
		[]string{"provider", "step", "outcome"}, // step: start, callback, handoff, refresh
	)

	// HandoffsParkedTotal counts token payloads parked by the callback
	HandoffsParkedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lifeboard",
			Name:      "oauth_handoffs_parked_total",
			Help:      "Total token handoffs parked by the OAuth callback",
		},
	)

	// HandoffsDeliveredTotal counts token payloads delivered to a client.
	// Parked minus delivered includes entries that expired undelivered.
	HandoffsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lifeboard",
			Name:      "oauth_handoffs_delivered_total",
			Help:      "Total token handoffs delivered to a client",
		},
	)
)

// Handler returns a gin handler serving the Prometheus metrics endpoint
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordProxyRequest records one proxy request outcome
func RecordProxyRequest(method string, status int, host string, upstream time.Duration) {
	ProxyRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	if upstream > 0 {
		ProxyUpstreamDuration.WithLabelValues(host).Observe(upstream.Seconds())
	}
}

// RecordOAuthFlow records one broker operation outcome
func RecordOAuthFlow(provider, step, outcome string) {
	OAuthFlowsTotal.WithLabelValues(provider, step, outcome).Inc()
}
