package gpucore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements MetricsCollector on top of a Prometheus
// registry. Metrics are labeled by memory space and allocation type so
// per-subsystem memory pressure shows up directly in dashboards.
type PrometheusCollector struct {
	allocTotal    *prometheus.CounterVec
	allocErrors   *prometheus.CounterVec
	allocBytes    *prometheus.CounterVec
	allocDuration prometheus.Histogram
	deallocTotal  *prometheus.CounterVec
	deallocBytes  *prometheus.CounterVec
	syncTotal     prometheus.Counter
	syncErrors    prometheus.Counter
	syncDuration  prometheus.Histogram
}

// NewPrometheusCollector registers gpucore metrics with reg. Passing nil
// uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		allocTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpucore_alloc_total",
			Help: "Total allocation attempts",
		}, []string{"space", "type"}),
		allocErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpucore_alloc_errors_total",
			Help: "Total failed allocations",
		}, []string{"space", "type"}),
		allocBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpucore_alloc_bytes_total",
			Help: "Total bytes allocated",
		}, []string{"space", "type"}),
		allocDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpucore_alloc_duration_seconds",
			Help:    "Allocation latency",
			Buckets: prometheus.ExponentialBuckets(1e-7, 10, 8),
		}),
		deallocTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpucore_dealloc_total",
			Help: "Total deallocations",
		}, []string{"space"}),
		deallocBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gpucore_dealloc_bytes_total",
			Help: "Total bytes returned",
		}, []string{"space"}),
		syncTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpucore_stream_sync_total",
			Help: "Total default-stream synchronizations",
		}),
		syncErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gpucore_stream_sync_errors_total",
			Help: "Total failed stream synchronizations",
		}),
		syncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gpucore_stream_sync_duration_seconds",
			Help:    "Stream synchronization latency",
			Buckets: prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
	}
}

// RecordAlloc implements MetricsCollector.
func (p *PrometheusCollector) RecordAlloc(space MemorySpace, typ AllocType, size int64, duration time.Duration, err error) {
	labels := prometheus.Labels{"space": space.String(), "type": typ.String()}
	p.allocTotal.With(labels).Inc()
	p.allocDuration.Observe(duration.Seconds())
	if err != nil {
		p.allocErrors.With(labels).Inc()
		return
	}
	p.allocBytes.With(labels).Add(float64(size))
}

// RecordDealloc implements MetricsCollector.
func (p *PrometheusCollector) RecordDealloc(space MemorySpace, size int64) {
	labels := prometheus.Labels{"space": space.String()}
	p.deallocTotal.With(labels).Inc()
	p.deallocBytes.With(labels).Add(float64(size))
}

// RecordStreamSync implements MetricsCollector.
func (p *PrometheusCollector) RecordStreamSync(duration time.Duration, err error) {
	p.syncTotal.Inc()
	p.syncDuration.Observe(duration.Seconds())
	if err != nil {
		p.syncErrors.Inc()
	}
}
