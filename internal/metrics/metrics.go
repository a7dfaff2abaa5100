package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImagesEncodedTotal counts images passed through an encoder block
	ImagesEncodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aematch_images_encoded_total",
			Help: "Total number of images encoded, by encoder block",
		},
		[]string{"encoder"},
	)

	// EncodeDurationSeconds measures a single encoder forward pass
	EncodeDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aematch_encode_duration_seconds",
			Help:    "Duration of a single image encoding",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"encoder"},
	)

	// DatasetRows reports the number of samples loaded per dataset position
	DatasetRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aematch_dataset_rows",
			Help: "Number of samples loaded per dataset",
		},
		[]string{"dataset"},
	)

	// NeighborQueriesTotal counts nearest neighbor queries by index kind and status
	NeighborQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aematch_neighbor_queries_total",
			Help: "Total number of nearest neighbor queries",
		},
		[]string{"index", "status"},
	)

	// NeighborDistance observes the distance of every returned neighbor
	NeighborDistance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aematch_neighbor_distance",
			Help:    "Euclidean distance between a query and its returned neighbors",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		},
	)

	// GridRendersTotal counts rendered image grids
	GridRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aematch_grid_renders_total",
			Help: "Total number of image grids rendered",
		},
		[]string{"status"},
	)

	// StageDurationSeconds measures each pipeline stage
	StageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aematch_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// CacheHitsTotal counts LRU cache hits
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aematch_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// CacheMissesTotal counts LRU cache misses
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aematch_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// CacheEvictionsTotal counts entries dropped to stay within capacity
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aematch_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache"},
	)

	// CacheSize tracks the number of cached entries
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aematch_cache_size",
			Help: "Current number of cached entries",
		},
		[]string{"cache"},
	)
)

// WriteTextfile writes every registered collector to path in the text
// exposition format, for node_exporter's textfile collector or manual review.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
