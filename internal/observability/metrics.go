package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes used as the "result" label.
const (
	ResultOK              = "ok"
	ResultValidationError = "validation_error"
	ResultStoreError      = "store_error"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	intervalsReturned  prometheus.Histogram
	storeReadsTotal    *prometheus.CounterVec
	snapshotsTotal     *prometheus.CounterVec
	eventsAppended     prometheus.Counter
	filterSkippedReads prometheus.Counter
}

// NewMetrics creates and registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statusline_requests_total",
			Help: "Status and ingest requests by transport and result",
		}, []string{"transport", "result"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "statusline_request_duration_seconds",
			Help:    "Request latency by transport",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"transport"}),
		intervalsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "statusline_intervals_returned",
			Help:    "Number of intervals in each successful status response",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		storeReadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statusline_store_reads_total",
			Help: "Event store reads by operation and result",
		}, []string{"op", "result"}),
		snapshotsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statusline_snapshots_total",
			Help: "Snapshot attempts by result",
		}, []string{"result"}),
		eventsAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "statusline_events_appended_total",
			Help: "Events accepted by the ingest path",
		}),
		filterSkippedReads: factory.NewCounter(prometheus.CounterOpts{
			Name: "statusline_filter_skipped_reads_total",
			Help: "Store reads answered by the entity bloom filter",
		}),
	}
}

// ObserveRequest records one request's outcome and latency.
func (m *Metrics) ObserveRequest(transport, result string, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(transport, result).Inc()
	m.requestDuration.WithLabelValues(transport).Observe(elapsed.Seconds())
}

// ObserveIntervals records the size of a successful status response.
func (m *Metrics) ObserveIntervals(n int) {
	m.intervalsReturned.Observe(float64(n))
}

// ObserveStoreRead records one store read.
func (m *Metrics) ObserveStoreRead(op string, err error) {
	result := ResultOK
	if err != nil {
		result = "error"
	}
	m.storeReadsTotal.WithLabelValues(op, result).Inc()
}

// ObserveSnapshot records one snapshot attempt.
func (m *Metrics) ObserveSnapshot(err error) {
	result := ResultOK
	if err != nil {
		result = "error"
	}
	m.snapshotsTotal.WithLabelValues(result).Inc()
}

// AddEventsAppended counts accepted events.
func (m *Metrics) AddEventsAppended(n int) {
	m.eventsAppended.Add(float64(n))
}

// AddFilterSkipped counts reads short-circuited by the entity filter.
func (m *Metrics) AddFilterSkipped(n uint64) {
	m.filterSkippedReads.Add(float64(n))
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
