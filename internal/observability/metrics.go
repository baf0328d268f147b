package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sf_incidents"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion
// and the dashboard view model.
type Metrics struct {
	// Source fetch metrics.
	PagesFetched      prometheus.Counter
	RecordsFetched    prometheus.Counter
	PageFetchDuration prometheus.Histogram

	// Ingestion metrics.
	IngestRuns      *prometheus.CounterVec // labels: outcome={success,unavailable,empty}
	IngestDuration  prometheus.Histogram
	RecordsDropped  *prometheus.CounterVec // labels: reason
	SnapshotRecords prometheus.Gauge

	// Cache metrics.
	SnapshotCache *prometheus.CounterVec // labels: result={hit,miss}
	ViewCache     *prometheus.CounterVec // labels: result={hit,miss}

	// Publication metrics.
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.PagesFetched,
		m.RecordsFetched,
		m.PageFetchDuration,
		m.IngestRuns,
		m.IngestDuration,
		m.RecordsDropped,
		m.SnapshotRecords,
		m.SnapshotCache,
		m.ViewCache,
		m.RecordsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_pages_fetched_total",
			Help:      "Pages successfully fetched from the DataSF API.",
		}),
		RecordsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_records_fetched_total",
			Help:      "Raw records received from the incident source.",
		}),
		PageFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_page_fetch_duration_seconds",
			Help:      "Duration of a single DataSF page request.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		IngestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingestion runs by outcome.",
		}, []string{"outcome"}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete fetch-normalize ingestion run.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records excluded during normalization by reason.",
		}, []string{"reason"}),
		SnapshotRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_records",
			Help:      "Incidents held in the current snapshot.",
		}),
		SnapshotCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_total",
			Help:      "Snapshot cache lookups by result.",
		}, []string{"result"}),
		ViewCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "view_cache_total",
			Help:      "Dashboard view cache lookups by result.",
		}, []string{"result"}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Normalized incidents written to the Kafka topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Snapshot publications that failed.",
		}),
	}
}
