package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Executor metrics

	ExecutorConnectDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fleetrun",
		Name:      "executor_connect_duration_seconds",
		Help:      "Time spent establishing and authenticating an SSH connection.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	})

	ExecutorRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleetrun",
		Name:      "executor_run_duration_seconds",
		Help:      "Duration of a single-host script execution, by terminal status.",
		Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"status"})

	ExecutorRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetrun",
		Name:      "executor_runs_total",
		Help:      "Total single-host executions, by terminal status.",
	}, []string{"status"})

	// Job runner metrics

	JobRunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleetrun",
		Name:      "job_runs_in_flight",
		Help:      "Number of ad-hoc jobs currently fanning out across hosts.",
	})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetrun",
		Name:      "jobs_completed_total",
		Help:      "Total ad-hoc jobs finished, by rolled-up outcome.",
	}, []string{"outcome"})

	// Cron scheduler metrics

	SchedulerTriggersInstalled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleetrun",
		Name:      "scheduler_triggers_installed",
		Help:      "Number of cron triggers currently installed in the scheduler.",
	})

	SchedulerFiresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetrun",
		Name:      "scheduler_fires_total",
		Help:      "Total scheduler trigger fires, by outcome (ran, skipped_missing, skipped_disabled, skipped_locked).",
	}, []string{"outcome"})

	SchedulerFireDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fleetrun",
		Name:      "scheduler_fire_duration_seconds",
		Help:      "Time taken for one scheduled-job fire, including fan-out and retention sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// Retention sweeper metrics

	RetentionRowsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fleetrun",
		Name:      "retention_rows_deleted_total",
		Help:      "Total cron HostLog rows removed by the retention sweeper.",
	})

	// Process lifecycle

	ProcessStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fleetrun",
		Name:      "process_start_time_seconds",
		Help:      "Unix timestamp when the orchestrator process started.",
	})

	// Ambient admin HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fleetrun",
		Name:      "http_request_duration_seconds",
		Help:      "Admin HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fleetrun",
		Name:      "http_requests_total",
		Help:      "Total admin HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ExecutorConnectDuration,
		ExecutorRunDuration,
		ExecutorRunsTotal,
		JobRunsInFlight,
		JobsCompletedTotal,
		SchedulerTriggersInstalled,
		SchedulerFiresTotal,
		SchedulerFireDuration,
		RetentionRowsDeletedTotal,
		ProcessStartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
