package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ImprovementJobsTotal counts finished improvement jobs by outcome
	ImprovementJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karasu_improvement_jobs_total",
			Help: "Total number of content improvement jobs by terminal status",
		},
		[]string{"content_type", "status", "error_kind"},
	)

	// ImprovementJobDuration tracks time from job start to terminal event
	ImprovementJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "karasu_improvement_job_duration_seconds",
			Help:    "Content improvement job duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		},
		[]string{"content_type", "status"},
	)

	// ImprovementScoreIncrease tracks the quality score gained per completed job
	ImprovementScoreIncrease = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "karasu_improvement_score_increase",
			Help:    "Quality score increase of completed improvements",
			Buckets: []float64{-20, -10, 0, 5, 10, 20, 30, 40, 60, 80},
		},
		[]string{"content_type"},
	)

	// ContentStoreRetriesTotal counts retries of content store writes
	ContentStoreRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karasu_content_store_retries_total",
			Help: "Total number of retried content store writes",
		},
		[]string{"content_type", "error_type"},
	)

	// ContentStoreWritesTotal counts content store writes by final outcome
	ContentStoreWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karasu_content_store_writes_total",
			Help: "Total number of content store writes by outcome",
		},
		[]string{"content_type", "outcome"},
	)

	// ImprovementRateLimitedTotal counts improvement runs refused by the rate limiter
	ImprovementRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "karasu_improvement_rate_limited_total",
			Help: "Total number of improvement runs refused by the per-admin rate limit",
		},
	)

	// ProgressStreamsActive tracks open SSE progress streams
	ProgressStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "karasu_progress_streams_active",
			Help: "Number of open progress event streams",
		},
	)
)
