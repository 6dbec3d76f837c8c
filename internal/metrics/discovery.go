package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Discovery Prometheus metrics.
var (
	DiscoveryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_requests_total",
			Help:      "Discovery requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	DiscoveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Time spent ranking discounts, excluding HTTP overhead",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	DiscoveryResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_results",
			Help:      "Number of discounts returned per request",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"mode"},
	)

	// DiscoveryDanglingTotal counts index hits with no catalog record.
	DiscoveryDanglingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_dangling_ids_total",
			Help:      "Ranked ids dropped because the catalog has no matching record",
		},
	)

	IPLocatorLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ip_locator_lookups_total",
			Help:      "IP geolocation lookups by outcome",
		},
		[]string{"outcome"}, // success, http_error, bad_status, malformed, network, throttled
	)
)

var registerDiscovery sync.Once

// RegisterDiscoveryMetrics registers discovery and geolocation metrics. Safe to call repeatedly.
func RegisterDiscoveryMetrics() {
	registerDiscovery.Do(func() {
		prometheus.MustRegister(
			DiscoveryRequestsTotal,
			DiscoveryDuration,
			DiscoveryResults,
			DiscoveryDanglingTotal,
			IPLocatorLookupsTotal,
		)
	})
}
