package pipeline

import (
	"context"

	"github.com/rohankatakam/revenuepilot/internal/models"
)

// DataSource fetches per-account risk signal bundles
type DataSource interface {
	Fetch(ctx context.Context, accounts []models.Account) ([]models.SignalBundle, error)
}

// RiskAssessor scores fetched signal bundles per account
type RiskAssessor interface {
	Assess(ctx context.Context, bundles []models.SignalBundle) ([]models.RiskAssessment, error)
}

// StrategyPlanner builds recovery strategies for high-risk accounts
type StrategyPlanner interface {
	Plan(ctx context.Context, highRisk []models.RiskAssessment) ([]models.Strategy, error)
}

// Executor dispatches outbound actions for cleared strategies.
// It is invoked twice per run lifecycle: once with the bulk auto-execute
// list during EXECUTE, and with singleton lists from Reconcile.
type Executor interface {
	Execute(ctx context.Context, strategies []models.Strategy) (models.ExecutionSummary, error)
}

// AuditPayload is the audit collaborator's output; opaque to the core
// beyond being stored under a run identifier.
type AuditPayload map[string]interface{}

// AuditInput carries all prior-stage outputs to the audit collaborator
type AuditInput struct {
	Data       []models.SignalBundle    `json:"data"`
	Risk       []models.RiskAssessment  `json:"risk"`
	Strategies []models.Strategy        `json:"strategies"`
	Gating     GatingSummary            `json:"gating"`
	Execution  models.ExecutionSummary  `json:"execution"`
}

// Auditor records a completed run and produces its audit payload
type Auditor interface {
	Record(ctx context.Context, input AuditInput) (AuditPayload, error)
}
