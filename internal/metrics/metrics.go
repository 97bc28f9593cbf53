// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_pages_fetched_total",
			Help: "List pages fetched, labeled by content type and outcome.",
		},
		[]string{"content_type", "outcome"},
	)

	recordsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_records_inserted_total",
			Help: "Records newly inserted into the store, labeled by content type.",
		},
		[]string{"content_type"},
	)

	antiBotDetectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_anti_bot_detected_total",
			Help: "Responses rejected by content validation as decoy data.",
		},
	)

	fetchDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harvester_fetch_duration_seconds",
			Help:    "Wall time of one validated list fetch including attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)

	proxyPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_proxy_pool_size",
			Help: "Endpoints currently in the proxy pool.",
		},
	)

	proxyEvictedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_proxy_evicted_total",
			Help: "Proxy endpoints evicted from the pool, labeled by reason.",
		},
		[]string{"reason"},
	)

	poolRefillsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harvester_proxy_pool_refills_total",
			Help: "Refill cycles started.",
		},
	)
)

// PageFetched counts one finished page fetch.
func PageFetched(contentType, outcome string) {
	pagesFetchedTotal.WithLabelValues(contentType, outcome).Inc()
}

// RecordsInserted counts newly stored records.
func RecordsInserted(contentType string, n int) {
	if n > 0 {
		recordsInsertedTotal.WithLabelValues(contentType).Add(float64(n))
	}
}

// AntiBotDetected counts one decoy-content rejection.
func AntiBotDetected() {
	antiBotDetectedTotal.Inc()
}

// ObserveFetchDuration records the wall time of one validated fetch.
func ObserveFetchDuration(d time.Duration) {
	fetchDurationSeconds.Observe(d.Seconds())
}

// SetPoolSize publishes the current proxy pool size.
func SetPoolSize(n int) {
	proxyPoolSize.Set(float64(n))
}

// ProxyEvicted counts one pool eviction.
func ProxyEvicted(reason string) {
	proxyEvictedTotal.WithLabelValues(reason).Inc()
}

// PoolRefill counts one refill cycle.
func PoolRefill() {
	poolRefillsTotal.Inc()
}
