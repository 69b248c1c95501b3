// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tranche-workers/internal/models"
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
)

var (
	AllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pooling_allocations_total",
			Help: "Allocation runs by criterion and outcome",
		},
		[]string{"criterion", "outcome"},
	)

	AllocationLoansAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pooling_loans_admitted_total",
			Help: "Loans admitted per tranche",
		},
		[]string{"tranche"},
	)

	AllocationBudgetSpent = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pooling_budget_spent",
			Help:    "Budget spent per tranche and run",
			Buckets: prometheus.ExponentialBuckets(1000, 10, 7),
		},
		[]string{"tranche"},
	)

	SnapshotSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pooling_snapshot_loans",
			Help:    "Loans per allocation snapshot",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	ThresholdLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pooling_threshold_lookups_total",
			Help: "Threshold config lookups by cache layer that answered",
		},
		[]string{"source"},
	)

	ThresholdInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pooling_threshold_invalidations_total",
			Help: "Threshold cache invalidations by trigger",
		},
		[]string{"trigger"},
	)
)

// Allocation outcomes.
const (
	OutcomeAllocated = "allocated"
	OutcomeEmpty     = "empty"
	OutcomeError     = "error"
)

// ObserveAllocation records the per-tranche figures of a finished run.
func ObserveAllocation(result *models.AllocationResult) {
	if result == nil {
		return
	}
	outcome := OutcomeAllocated
	if result.TotalAllocated() == 0 {
		outcome = OutcomeEmpty
	}
	AllocationsTotal.WithLabelValues(result.Criterion, outcome).Inc()

	for _, t := range result.Details() {
		AllocationLoansAdmitted.WithLabelValues(string(t.TrancheName)).Add(float64(t.LoansAllocated))
		AllocationBudgetSpent.WithLabelValues(string(t.TrancheName)).Observe(t.BudgetSpent)
	}
}
