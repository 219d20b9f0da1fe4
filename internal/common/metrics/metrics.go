// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	RequirementsDerived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requirements_derived_total",
			Help: "Document requirements emitted, by category",
		},
		[]string{"category"},
	)

	DerivationWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "derivation_warnings_total",
			Help: "Warnings raised while deriving requirements, by code",
		},
		[]string{"code"},
	)

	DegradedRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "derivation_degraded_runs_total",
			Help: "Runs that fell back to plain deduplication or recovered from a panic",
		},
	)

	RegistryLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_loads_total",
			Help: "Registry load attempts, by source and result",
		},
		[]string{"source", "result"},
	)

	RegistryInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registry_info",
			Help: "Currently active registry version (value is always 1)",
		},
		[]string{"version"},
	)
)
