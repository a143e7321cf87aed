package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "promptlab",
		Subsystem: "ai",
		Name:      "request_duration_seconds",
		Help:      "Duration of AI evaluation and generation requests",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 120},
	}, []string{"provider", "operation"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "promptlab",
		Subsystem: "ai",
		Name:      "request_failures_total",
		Help:      "Number of failed AI requests",
	}, []string{"provider", "operation"})
)
