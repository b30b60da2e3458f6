package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(researchJobsTotal, researchJobDuration, researchJobsInFlight) }

var (
	researchJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_jobs_total",
			Help: "Research jobs by lifecycle event.",
		},
		[]string{"status"}, // 'queued', 'completed', 'failed', 'rejected'
	)

	researchJobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "research_job_duration_seconds",
			Help:    "Wall time from dispatch to finalize.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 900, 1800},
		},
		[]string{"status"},
	)

	researchJobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "research_jobs_in_flight",
			Help: "Jobs currently dispatched and not yet finalized.",
		},
	)
)

func IncResearchJob(status string) {
	researchJobsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveResearchJob(status string, d time.Duration) {
	researchJobDuration.WithLabelValues(norm(status)).Observe(d.Seconds())
}

func JobStarted()  { researchJobsInFlight.Inc() }
func JobFinished() { researchJobsInFlight.Dec() }
