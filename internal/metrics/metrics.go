// Package metrics exposes prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics bundles every collector the gateway records into, all registered on
// a single private registry served at /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	// Stats aggregates min/avg/max latencies per operation for the /stats
	// endpoint, independent of the prometheus registry.
	Stats *Collector

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RunnerFlushes   *prometheus.CounterVec
	RunnerBatchSize *prometheus.HistogramVec

	JobsSubmitted prometheus.Counter
	JobsFinished  *prometheus.CounterVec
	JobsInflight  prometheus.Gauge
}

// New creates and registers all gateway collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		Stats:    NewCollector(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictgate_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predictgate_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RunnerFlushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictgate_runner_flushes_total",
			Help: "Scoring flushes by runner policy.",
		}, []string{"policy"}),
		RunnerBatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "predictgate_runner_batch_size",
			Help:    "Number of vectors scored per flush, by runner policy.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1000},
		}, []string{"policy"}),
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "predictgate_jobs_submitted_total",
			Help: "Batch jobs accepted for processing.",
		}),
		JobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "predictgate_jobs_finished_total",
			Help: "Batch jobs reaching a terminal status.",
		}, []string{"status"}),
		JobsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "predictgate_jobs_inflight",
			Help: "Jobs currently pending or processing.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.RunnerFlushes,
		m.RunnerBatchSize,
		m.JobsSubmitted,
		m.JobsFinished,
		m.JobsInflight,
	)

	return m
}
