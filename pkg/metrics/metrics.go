// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	ChatRequests    *prometheus.CounterVec
	ChatDuration    prometheus.Histogram
	SafetyBlocks    *prometheus.CounterVec
	FallbackTrips   prometheus.Counter
	ModelSelections *prometheus.CounterVec
	ImageRequests   *prometheus.CounterVec
}

// New registers the gateway collectors on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_chat_requests_total",
			Help: "Chat requests by outcome code (ok or error code).",
		}, []string{"outcome"}),
		ChatDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptgate_chat_duration_seconds",
			Help:    "End-to-end chat request latency.",
			Buckets: prometheus.DefBuckets,
		}),
		SafetyBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_safety_blocks_total",
			Help: "Requests blocked by the safety gate, by category and check kind.",
		}, []string{"category", "kind"}),
		FallbackTrips: factory.NewCounter(prometheus.CounterOpts{
			Name: "promptgate_fallback_trips_total",
			Help: "Generations that fell back past the first candidate model.",
		}),
		ModelSelections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_model_selections_total",
			Help: "Generations served, by model ID.",
		}, []string{"model"}),
		ImageRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "promptgate_image_requests_total",
			Help: "Image pipeline runs by outcome.",
		}, []string{"outcome"}),
	}
}
