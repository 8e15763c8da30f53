// Package metrics provides Prometheus metrics for the mirror engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the mirror engine.
type Metrics struct {
	PartitionsFetched *prometheus.CounterVec
	PartitionsSkipped *prometheus.CounterVec
	PartitionsFailed  *prometheus.CounterVec

	BytesFetched  *prometheus.CounterVec
	RetryAttempts *prometheus.CounterVec

	FetchDuration  *prometheus.HistogramVec
	PartitionBytes *prometheus.HistogramVec

	InFlightFetches  prometheus.Gauge
	BandwidthCeiling prometheus.Gauge
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // e.g. ":9090"
}

var defaultMetrics *Metrics

// Init initializes the package-level metrics. Call once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "unifier_mirror"
	}

	m := &Metrics{
		PartitionsFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partitions_fetched_total",
				Help:      "Total number of partitions fetched successfully",
			},
			[]string{"dataset", "transport"},
		),
		PartitionsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partitions_skipped_total",
				Help:      "Total number of partitions skipped (already mirrored)",
			},
			[]string{"dataset", "transport"},
		),
		PartitionsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "partitions_failed_total",
				Help:      "Total number of partitions that exhausted retries",
			},
			[]string{"dataset", "transport"},
		),
		BytesFetched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bytes_fetched_total",
				Help:      "Total payload bytes written to the mirror",
			},
			[]string{"dataset", "transport"},
		),
		RetryAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retry_attempts_total",
				Help:      "Total number of fetch retry attempts",
			},
			[]string{"dataset", "transport"},
		),
		FetchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Time to fetch one partition",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~400s
			},
			[]string{"dataset", "transport"},
		),
		PartitionBytes: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "partition_bytes",
				Help:      "Size of fetched partitions in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 12), // 1KB to ~16GB
			},
			[]string{"dataset", "transport"},
		),
		InFlightFetches: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_fetches",
				Help:      "Number of transfers currently in flight",
			},
		),
		BandwidthCeiling: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bandwidth_ceiling_bytes_per_second",
				Help:      "Configured run-wide byte-rate ceiling (0 = unlimited)",
			},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance, or nil if Init was not called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer serves /metrics and /health. Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// Labels is a convenience type for metric labels.
type Labels struct {
	Dataset   string
	Transport string
}

// IncPartitionsFetched increments the fetched counter.
func (m *Metrics) IncPartitionsFetched(l Labels) {
	m.PartitionsFetched.WithLabelValues(l.Dataset, l.Transport).Inc()
}

// IncPartitionsSkipped increments the skipped counter.
func (m *Metrics) IncPartitionsSkipped(l Labels) {
	m.PartitionsSkipped.WithLabelValues(l.Dataset, l.Transport).Inc()
}

// IncPartitionsFailed increments the failed counter.
func (m *Metrics) IncPartitionsFailed(l Labels) {
	m.PartitionsFailed.WithLabelValues(l.Dataset, l.Transport).Inc()
}

// AddBytesFetched adds to the payload byte counter.
func (m *Metrics) AddBytesFetched(l Labels, n float64) {
	m.BytesFetched.WithLabelValues(l.Dataset, l.Transport).Add(n)
}

// IncRetryAttempts increments the retry counter.
func (m *Metrics) IncRetryAttempts(l Labels) {
	m.RetryAttempts.WithLabelValues(l.Dataset, l.Transport).Inc()
}

// ObserveFetchDuration records one transfer's duration.
func (m *Metrics) ObserveFetchDuration(l Labels, seconds float64) {
	m.FetchDuration.WithLabelValues(l.Dataset, l.Transport).Observe(seconds)
}

// ObservePartitionBytes records one fetched partition's size.
func (m *Metrics) ObservePartitionBytes(l Labels, bytes float64) {
	m.PartitionBytes.WithLabelValues(l.Dataset, l.Transport).Observe(bytes)
}

// IncInFlight increments the in-flight gauge.
func (m *Metrics) IncInFlight() { m.InFlightFetches.Inc() }

// DecInFlight decrements the in-flight gauge.
func (m *Metrics) DecInFlight() { m.InFlightFetches.Dec() }

// SetBandwidthCeiling records the configured ceiling.
func (m *Metrics) SetBandwidthCeiling(bytesPerSec float64) {
	m.BandwidthCeiling.Set(bytesPerSec)
}
