// Package metrics exposes Prometheus collectors for outbound Slack calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slackpost"

// Metrics owns a private registry so tests and multiple instances never
// collide on the default one.
type Metrics struct {
	reg *prometheus.Registry

	SlackRequests *prometheus.CounterVec
	SlackDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		SlackRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slack_api_requests_total",
			Help:      "Total outbound Slack API requests by method and outcome",
		}, []string{"method", "outcome"}),
		SlackDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slack_api_request_duration_seconds",
			Help:      "Outbound Slack API request duration in seconds",
			Buckets:   []float64{0.1, 0.3, 0.5, 0.7, 1.0, 3.0, 5.0, 7.0, 10.0},
		}, []string{"method"}),
	}

	m.reg.MustRegister(m.SlackRequests, m.SlackDuration)
	return m
}

// ObserveSlackCall records one Slack request. It is safe on a nil *Metrics.
func (m *Metrics) ObserveSlackCall(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SlackRequests.WithLabelValues(method, outcome).Inc()
	m.SlackDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
