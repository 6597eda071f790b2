package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for repository operations.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Batch execution paths.
const (
	PathDirect   = "direct"
	PathCombined = "combined"
)

// MetricsCollector provides Prometheus metrics for repository operations and
// batch loading. A nil *MetricsCollector records nothing.
type MetricsCollector struct {
	operationDuration *prometheus.HistogramVec
	batchSize         *prometheus.HistogramVec
	batchExecutions   *prometheus.CounterVec
	partitionFailures *prometheus.CounterVec
	pendingRequests   *prometheus.GaugeVec
}

// NewMetricsCollector creates a new Prometheus metrics collector.
// If registry is nil, uses the default Prometheus registry.
func NewMetricsCollector(registry prometheus.Registerer) *MetricsCollector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &MetricsCollector{
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "sietch_operation_duration_seconds",
				Help: "Repository operation duration in seconds",
				Buckets: []float64{
					0.0005, // 500us
					0.001,  // 1ms
					0.005,  // 5ms
					0.01,   // 10ms
					0.05,   // 50ms
					0.1,    // 100ms
					0.5,    // 500ms
					1.0,    // 1s
					5.0,    // 5s
				},
			},
			[]string{"entity", "operation", "outcome"},
		),

		batchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sietch_loader_batch_size",
				Help:    "Number of requests coalesced into one batch",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
			},
			[]string{"loader_key"},
		),

		batchExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sietch_loader_batches_total",
				Help: "Total number of executed batches by execution path",
			},
			[]string{"loader_key", "path"},
		),

		partitionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sietch_loader_partition_failures_total",
				Help: "Total number of requests that failed while their batch result was partitioned",
			},
			[]string{"loader_key"},
		),

		pendingRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sietch_loader_pending_requests",
				Help: "Number of queued requests waiting for dispatch",
			},
			[]string{"loader_key"},
		),
	}
}

// RecordOperation records the duration of a repository operation.
func (m *MetricsCollector) RecordOperation(entity, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(entity, operation, outcome).Observe(duration.Seconds())
}

// RecordBatch records one batch execution.
// path: PathDirect or PathCombined
func (m *MetricsCollector) RecordBatch(loaderKey, path string, size int) {
	if m == nil {
		return
	}
	m.batchSize.WithLabelValues(loaderKey).Observe(float64(size))
	m.batchExecutions.WithLabelValues(loaderKey, path).Inc()
}

// IncrementPartitionFailures increments the partition failure counter.
func (m *MetricsCollector) IncrementPartitionFailures(loaderKey string) {
	if m == nil {
		return
	}
	m.partitionFailures.WithLabelValues(loaderKey).Inc()
}

// AddPendingRequests moves the pending request gauge by delta.
func (m *MetricsCollector) AddPendingRequests(loaderKey string, delta int) {
	if m == nil {
		return
	}
	m.pendingRequests.WithLabelValues(loaderKey).Add(float64(delta))
}
