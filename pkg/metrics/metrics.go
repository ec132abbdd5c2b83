package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JobsInQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrape_jobs_in_queue",
			Help: "Current number of job ids waiting in the dispatch queue.",
		},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scrape_jobs_running",
			Help: "Number of scrape jobs currently executing.",
		},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_jobs_total",
			Help: "Total number of finished scrape jobs.",
		},
		[]string{"status"}, // completed, failed, cancelled
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrape_job_duration_seconds",
			Help:    "Wall-clock duration of scrape jobs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	TargetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_targets_total",
			Help: "Total number of processed targets.",
		},
		[]string{"status"}, // completed, failed
	)

	ResultsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_results_stored_total",
			Help: "Total number of results persisted.",
		},
	)

	SchedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total number of scheduler polling ticks.",
		},
	)

	SchedulesFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_executions_total",
			Help: "Total number of schedule executions by outcome.",
		},
		[]string{"status"}, // running, failed, skipped
	)

	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts.",
		},
		[]string{"event", "outcome"}, // outcome: success, failure
	)

	WebhookDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "Duration of webhook POSTs.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)
