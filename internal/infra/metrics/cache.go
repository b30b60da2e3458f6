package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, cacheEvictionsTotal) }

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks result cache hits and misses per backend.",
		},
		[]string{"cache", "result"}, // e.g., cache="memory", result="hit"
	)

	cacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evicted_jobs_total",
			Help: "Jobs evicted from the result cache by the horizon janitor.",
		},
		[]string{"cache"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func AddCacheEvictions(cacheName string, n int) {
	cacheEvictionsTotal.WithLabelValues(norm(cacheName)).Add(float64(n))
}
