package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	jobsProcessedTotal    *prometheus.CounterVec
	jobAttemptsHistogram  prometheus.Histogram
	repairAttemptsCounter prometheus.Counter
	queueDepthGauge       prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors for the API and the
// grading pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oku_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oku_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		jobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oku_grading_jobs_total",
			Help: "Grading jobs finished per worker outcome.",
		}, []string{"outcome"})

		jobAttemptsHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oku_grading_job_attempts",
			Help:    "Attempts consumed by jobs reaching a terminal state.",
			Buckets: []float64{1, 2, 3, 4, 5},
		})

		repairAttemptsCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oku_grading_repair_attempts_total",
			Help: "Number of JSON repair passes attempted on model output.",
		})

		queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oku_grading_queue_depth",
			Help: "Jobs waiting in the grading queue (pending plus delayed).",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			jobsProcessedTotal,
			jobAttemptsHistogram,
			repairAttemptsCounter,
			queueDepthGauge,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// JobsProcessed exposes the per-outcome job counter.
func JobsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return jobsProcessedTotal
}

// JobAttempts exposes the terminal attempt-count histogram.
func JobAttempts() prometheus.Histogram {
	RegisterMetrics()
	return jobAttemptsHistogram
}

// RepairAttempts exposes the repair pass counter.
func RepairAttempts() prometheus.Counter {
	RegisterMetrics()
	return repairAttemptsCounter
}

// QueueDepth exposes the waiting-jobs gauge.
func QueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return queueDepthGauge
}
