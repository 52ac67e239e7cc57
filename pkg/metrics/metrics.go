package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote API
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickrharvest_queries_total",
			Help: "Total number of remote API calls",
		},
		[]string{"method", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flickrharvest_query_duration_seconds",
			Help:    "Remote API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Harvest engine
	PartitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickrharvest_partitions_total",
			Help: "Partition decisions by kind",
		},
		[]string{"decision"},
	)

	RecordsHarvested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flickrharvest_records_harvested_total",
			Help: "Records appended to accumulators",
		},
	)

	DuplicatesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flickrharvest_duplicates_removed_total",
			Help: "Records dropped by deduplication",
		},
	)

	AssetDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickrharvest_asset_downloads_total",
			Help: "Asset download attempts",
		},
		[]string{"variant", "status"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickrharvest_cache_lookups_total",
			Help: "Response cache lookups",
		},
		[]string{"backend", "result"},
	)

	HarvestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickrharvest_harvests_total",
			Help: "Completed harvest runs by outcome",
		},
		[]string{"outcome"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flickrharvest_queue_depth",
			Help: "Regions waiting in the work queue of the most recent active harvest",
		},
	)

	// HTTP control surface
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flickrharvest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flickrharvest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// ObserveQuery records one remote API call. It matches flickr.CallObserver.
func ObserveQuery(method, status string, took time.Duration) {
	QueriesTotal.WithLabelValues(method, status).Inc()
	if status != "cached" {
		QueryDuration.WithLabelValues(method).Observe(took.Seconds())
	}
}

// ObserveCache records a cache lookup
func ObserveCache(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(backend, result).Inc()
}
