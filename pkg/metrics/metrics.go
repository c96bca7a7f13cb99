// Package metrics provides the Prometheus registry, HTTP server metrics and
// the /metrics handler for chidata.
// Component metrics are defined in their respective packages (client,
// pagination, cache, ratelimit) to avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by chidata.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer exposes the metrics registered with Registry.
var Gatherer = prometheus.DefaultGatherer

var (
	// HTTPRequests counts served requests by route and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chidata_http_requests_total",
		Help: "HTTP requests served by route and status code",
	}, []string{"route", "status"})

	// HTTPDuration observes request latency by route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chidata_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Throttle Metrics (pkg/ratelimit):
//   - chidata_throttle_cooldown_seconds (Gauge): Remaining cooldown after a 429
//   - chidata_throttle_blocks_total (Counter): Requests blocked locally during cooldown
//   - chidata_throttle_responses_total (Counter): 429 responses received from the portal
//
// Cache Metrics (pkg/cache):
//   - chidata_cache_hits_total (Counter): Table cache hits
//   - chidata_cache_misses_total (Counter): Table cache misses
//   - chidata_cache_size_bytes (Gauge): Size of the last stored entry
//   - chidata_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - chidata_requests_total{resource, status} (Counter): Upstream requests by resource and HTTP status
//   - chidata_request_duration_seconds{resource} (Histogram): Upstream request duration
//   - chidata_errors_total{class} (Counter): Errors by class (client, server, throttled, network, decode)
//
// Retry Metrics (pkg/client):
//   - chidata_retries_total{error_class} (Counter): Retry attempts by error class
//   - chidata_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - chidata_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Fetch Metrics (pkg/pagination):
//   - chidata_fetches_total{resource, result} (Counter): Paginated fetches by outcome (ok, transport, validation)
//   - chidata_fetch_pages_total{resource} (Counter): Pages requested
//   - chidata_fetch_records_total{resource} (Counter): Records returned by successful fetches
//
// HTTP Metrics (this package):
//   - chidata_http_requests_total{route, status} (Counter)
//   - chidata_http_request_duration_seconds{route} (Histogram)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(chidata_cache_hits_total[5m])) /
//   (sum(rate(chidata_cache_hits_total[5m])) + sum(rate(chidata_cache_misses_total[5m])))
//
//   # Failed Fetches
//   sum by (result) (rate(chidata_fetches_total{result!="ok"}[5m]))
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(chidata_request_duration_seconds_bucket[5m]))
