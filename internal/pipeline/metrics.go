// Prometheus instrumentation for the pipeline. Collectors are registered
// in init() and served by `revpilot serve` at /metrics.

package pipeline

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revpilot_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"status"}, // completed|failed
	)

	mtxVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revpilot_verdicts_total",
			Help: "Strategy-level gating verdicts issued",
		},
		[]string{"verdict"},
	)

	mtxReconciles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revpilot_reconciles_total",
			Help: "Human reconciliations by outcome",
		},
		[]string{"outcome"}, // executed|rejected|not_found
	)

	mtxApprovalDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "revpilot_approval_queue_depth",
			Help: "Decisions awaiting human approval",
		},
	)

	mtxHoldDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "revpilot_hold_queue_depth",
			Help: "Decisions held for manual review",
		},
	)
)

func init() {
	prometheus.MustRegister(mtxRuns, mtxVerdicts, mtxReconciles)
	prometheus.MustRegister(mtxApprovalDepth, mtxHoldDepth)
}

func (o *Orchestrator) observeQueueDepths() {
	pending, held := o.queues.Depths()
	mtxApprovalDepth.Set(float64(pending))
	mtxHoldDepth.Set(float64(held))
}
