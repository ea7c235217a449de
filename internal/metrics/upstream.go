package metrics

import "github.com/prometheus/client_golang/prometheus"

// Upstream billing API Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagemeter",
			Name:      "upstream_requests_total",
			Help:      "Total number of upstream billing API requests",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "usagemeter",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream billing API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	ReportCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "usagemeter",
			Name:      "report_cache_total",
			Help:      "Report cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var upstreamMetricsRegistered bool

// RegisterUpstreamMetrics registers Prometheus upstream metrics. Must be called once from main.
func RegisterUpstreamMetrics() {
	if upstreamMetricsRegistered {
		return
	}
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(ReportCacheTotal)
	upstreamMetricsRegistered = true
}
