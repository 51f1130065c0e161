package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coinradar",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of radar API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinradar",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by radar API endpoint",
		},
		[]string{"endpoint"},
	)

	FeedbackReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coinradar",
			Subsystem: "api",
			Name:      "feedback_total",
			Help:      "Feedback submissions by outcome and result",
		},
		[]string{"outcome", "result"},
	)
)

// Register adds the API collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, FeedbackReceived)
	})
}
