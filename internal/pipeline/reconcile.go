package pipeline

import (
	"context"
	"fmt"

	"github.com/rohankatakam/revenuepilot/internal/guardian"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// ReconcileStatus is the outcome category of a reconciliation
type ReconcileStatus string

const (
	ReconcileExecuted ReconcileStatus = "executed"
	ReconcileRejected ReconcileStatus = "rejected"
	ReconcileNotFound ReconcileStatus = "not_found"
)

// ReconcileOutcome reports what happened to a queued decision
type ReconcileOutcome struct {
	Status    ReconcileStatus          `json:"status"`
	AccountID string                   `json:"account_id"`
	RiskScore float64                  `json:"risk_score,omitempty"`
	Notes     string                   `json:"notes,omitempty"`
	Execution *models.ExecutionSummary `json:"execution,omitempty"`
}

// QueueState is the read-only projection of both gating queues
type QueueState struct {
	Pending []guardian.StrategyDecision `json:"pending"`
	Held    []guardian.StrategyDecision `json:"held"`
}

// Reconcile applies a human decision to the queued strategy for accountID.
// An unknown account yields a not-found outcome, never an error. On a
// match the decision leaves its queue; if approved, the original strategy
// is dispatched to the executor immediately, otherwise nothing executes.
// Reconcile only needs the queue lock and never blocks on in-flight runs.
func (o *Orchestrator) Reconcile(ctx context.Context, accountID string, approved bool, notes string) (ReconcileOutcome, error) {
	decision, ok := o.queues.Take(accountID)
	if !ok {
		mtxReconciles.WithLabelValues(string(ReconcileNotFound)).Inc()
		return ReconcileOutcome{Status: ReconcileNotFound, AccountID: accountID}, nil
	}
	o.observeQueueDepths()

	if !approved {
		mtxReconciles.WithLabelValues(string(ReconcileRejected)).Inc()
		o.logger.WithFields(logrus.Fields{
			"account": accountID,
			"score":   decision.OverallScore,
		}).Info("Strategy rejected")
		return ReconcileOutcome{
			Status:    ReconcileRejected,
			AccountID: accountID,
			RiskScore: decision.OverallScore,
			Notes:     notes,
		}, nil
	}

	execution, err := o.executor.Execute(ctx, []models.Strategy{decision.Strategy})
	if err != nil {
		return ReconcileOutcome{}, fmt.Errorf("execute approved strategy: %w", err)
	}

	mtxReconciles.WithLabelValues(string(ReconcileExecuted)).Inc()
	o.logger.WithFields(logrus.Fields{
		"account": accountID,
		"score":   decision.OverallScore,
	}).Info("Approved strategy executed")

	return ReconcileOutcome{
		Status:    ReconcileExecuted,
		AccountID: accountID,
		RiskScore: decision.OverallScore,
		Notes:     notes,
		Execution: &execution,
	}, nil
}

// QueueSnapshot returns the current contents of both queues without
// mutating order or membership
func (o *Orchestrator) QueueSnapshot() QueueState {
	pending, held := o.queues.Snapshot()
	return QueueState{Pending: pending, Held: held}
}

// QueueDepths exposes queue lengths for health reporting
func (o *Orchestrator) QueueDepths() (pending, held int) {
	return o.queues.Depths()
}
