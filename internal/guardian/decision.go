package guardian

import (
	"github.com/rohankatakam/revenuepilot/internal/models"
)

// Factor is one applied scoring delta, kept for audit and explainability
type Factor struct {
	Label string  `json:"label"`
	Delta float64 `json:"delta"`
}

// StepDecision is the engine's output for a single action step
type StepDecision struct {
	Ordinal int               `json:"step"`
	Kind    models.ActionKind `json:"action"`
	Score   float64           `json:"score"`
	Verdict models.Verdict    `json:"verdict"`
	Factors []Factor          `json:"factors"`
}

// StrategyDecision is the aggregated engine output for a whole strategy.
//
// Steps preserves every step-level decision for explainability. Because the
// overall verdict uses worst-of aggregation, individual step verdicts may be
// less severe than the overall one; they are informational and must not be
// treated as independently actionable.
type StrategyDecision struct {
	AccountID         string         `json:"account_id"`
	AccountName       string         `json:"account_name"`
	StrategyType      string         `json:"strategy_type"`
	EstimatedRecovery float64        `json:"estimated_recovery"`
	OverallScore      float64        `json:"overall_score"`
	OverallVerdict    models.Verdict `json:"overall_verdict"`
	Steps             []StepDecision `json:"steps"`

	// Back-references: the strategy is needed to execute after approval,
	// the risk context for audit.
	Strategy    models.Strategy       `json:"-"`
	RiskContext models.RiskAssessment `json:"-"`
}
