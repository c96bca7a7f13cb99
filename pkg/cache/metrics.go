package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chidata_cache_hits_total",
			Help: "Total number of table cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chidata_cache_misses_total",
			Help: "Total number of table cache misses",
		},
	)

	// CacheSize tracks the encoded size of the last stored entry
	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chidata_cache_size_bytes",
			Help: "Encoded size in bytes of the most recently cached table",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chidata_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
