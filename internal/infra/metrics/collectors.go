package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(collectorRunsTotal, collectorDuration, collectorItemsTotal, keywordOutcomesTotal, upstreamRequestsTotal)
}

var (
	collectorRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_runs_total",
			Help: "Collector runs by source kind and classified outcome.",
		},
		[]string{"source", "status"},
	)

	collectorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_duration_seconds",
			Help:    "Collector run time per source kind.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"source"},
	)

	collectorItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_items_total",
			Help: "Items extracted per source kind.",
		},
		[]string{"source"},
	)

	keywordOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_keyword_outcomes_total",
			Help: "Per-keyword extraction outcomes for multi-keyword collectors.",
		},
		[]string{"source", "status"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_upstream_requests_total",
			Help: "Outbound collector requests by host class and result.",
		},
		[]string{"collector", "result"}, // result: ok, rate_limited, http_error, network_error
	)
)

// ObserveCollector records one finished collector run. Competitor slots are
// folded into a single "competitor" label.
func ObserveCollector(source, status string, items int, d time.Duration) {
	src := sourceLabel(source)
	collectorRunsTotal.WithLabelValues(src, norm(status)).Inc()
	collectorDuration.WithLabelValues(src).Observe(d.Seconds())
	collectorItemsTotal.WithLabelValues(src).Add(float64(items))
}

func IncKeywordOutcome(source, status string) {
	keywordOutcomesTotal.WithLabelValues(sourceLabel(source), norm(status)).Inc()
}

func IncUpstreamRequest(collector, result string) {
	upstreamRequestsTotal.WithLabelValues(norm(collector), norm(result)).Inc()
}

func sourceLabel(source string) string {
	s := norm(source)
	if len(s) > len("competitor_") && s[:len("competitor_")] == "competitor_" {
		return "competitor"
	}
	return s
}
