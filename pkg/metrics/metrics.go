// Package metrics provides the centralized Prometheus metrics registry for
// the inference gateway. All metrics are defined in their respective packages
// (client, cache, gateway) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - infergw_cache_hits_total{backend} (Counter): Cache hits by backend
//   - infergw_cache_misses_total (Counter): Cache misses, expiry included
//   - infergw_cache_writes_total (Counter): Successful cache writes
//   - infergw_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - infergw_requests_total{status} (Counter): Upstream requests by HTTP status
//   - infergw_request_duration_seconds (Histogram): Upstream request duration
//   - infergw_failures_total{class} (Counter): Attempt failures by class
//
// Retry Metrics (pkg/client):
//   - infergw_retries_total{class} (Counter): Retry attempts by failure class
//   - infergw_retry_backoff_seconds{class} (Histogram): Backoff duration by failure class
//   - infergw_retries_exhausted_total{class} (Counter): Requests that exhausted max attempts
//
// Gateway Metrics (pkg/gateway):
//   - infergw_respond_total{outcome} (Counter): Respond calls by outcome
//     (validation, cache_hit, transport)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(infergw_cache_hits_total[5m])) /
//   (sum(rate(infergw_cache_hits_total[5m])) + sum(rate(infergw_cache_misses_total[5m])))
//
//   # Failure Rate by Class
//   rate(infergw_failures_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(infergw_request_duration_seconds_bucket[5m]))
//
//   # Share of Replies Served Without Network
//   sum(rate(infergw_respond_total{outcome="cache_hit"}[5m])) /
//   sum(rate(infergw_respond_total[5m]))
