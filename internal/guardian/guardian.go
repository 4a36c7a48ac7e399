// Package guardian scores proposed outbound actions for risk and routes
// them to execution, human approval, or manual review.
//
// Scoring is a fixed deterministic formula: a base risk per action kind
// plus bonuses from the strategy and the account risk context, capped at
// 1.0. Identical inputs always produce an identical score and factor list.
package guardian

import (
	"fmt"
	"math"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// Config holds scoring and classification configuration
type Config struct {
	// Verdict thresholds: score < AutoExecuteBelow auto-executes,
	// score >= HoldAt is held for review, everything between needs approval.
	AutoExecuteBelow float64
	HoldAt           float64

	// Base risk per action kind; kinds not in the table use DefaultBaseRisk.
	BaseRisk        map[models.ActionKind]float64
	DefaultBaseRisk float64

	// Bonuses
	ToneBonus            float64 // urgent or escalated tone
	LargeRecoveryBonus   float64 // estimated recovery above LargeRecoveryAmount
	MediumRecoveryBonus  float64 // estimated recovery above MediumRecoveryAmount
	LargeRecoveryAmount  float64
	MediumRecoveryAmount float64
	HighRiskBonus        float64
	MediumRiskBonus      float64
	EscalationBonus      float64
	LowProbabilityBonus  float64 // recovery probability below LowProbability
	MidProbabilityBonus  float64 // recovery probability below MidProbability
	LowProbability       float64
	MidProbability       float64
}

// DefaultConfig returns the default guardian configuration
func DefaultConfig() *Config {
	return &Config{
		AutoExecuteBelow: 0.40,
		HoldAt:           0.70,

		BaseRisk: map[models.ActionKind]float64{
			models.ActionChatPost:        0.10,
			models.ActionCalendarInvite:  0.15,
			models.ActionRecordUpdate:    0.20,
			models.ActionGenericOffer:    0.25,
			models.ActionMessageSend:     0.30,
			models.ActionIncentiveOffer:  0.45,
			models.ActionEscalationRoute: 0.50,
			models.ActionFeeWaiver:       0.55,
		},
		DefaultBaseRisk: 0.40,

		ToneBonus:            0.15,
		LargeRecoveryBonus:   0.30,
		MediumRecoveryBonus:  0.15,
		LargeRecoveryAmount:  50_000,
		MediumRecoveryAmount: 10_000,
		HighRiskBonus:        0.20,
		MediumRiskBonus:      0.05,
		EscalationBonus:      0.15,
		LowProbabilityBonus:  0.25,
		MidProbabilityBonus:  0.10,
		LowProbability:       0.30,
		MidProbability:       0.50,
	}
}

// Engine evaluates strategies against the gating policy
type Engine struct {
	logger *logrus.Logger
	config *Config
}

// NewEngine creates a new guardian engine
func NewEngine(logger *logrus.Logger, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		logger: logger,
		config: config,
	}
}

// EmptyContext returns the safest-default risk context for an account whose
// assessment is missing: no tier matches, so no bonus is ever applied.
func EmptyContext(accountID string) models.RiskAssessment {
	return models.RiskAssessment{
		AccountID:           accountID,
		RiskLevel:           models.RiskLevelLow,
		RecoveryProbability: 1.0,
	}
}

// ScoreAction scores a single action step in the context of its strategy
// and account. The returned factor list records every applied delta in
// application order; omitted deltas are not recorded.
func (e *Engine) ScoreAction(step models.ActionStep, strategy models.Strategy, riskCtx models.RiskAssessment) (float64, []Factor) {
	var factors []Factor
	score := 0.0

	base, ok := e.config.BaseRisk[step.Kind]
	if !ok {
		base = e.config.DefaultBaseRisk
	}
	score += base
	factors = append(factors, Factor{
		Label: fmt.Sprintf("base risk for %s", step.Kind),
		Delta: base,
	})

	if step.Tone == "urgent" || step.Tone == "escalated" {
		score += e.config.ToneBonus
		factors = append(factors, Factor{
			Label: fmt.Sprintf("%s tone", step.Tone),
			Delta: e.config.ToneBonus,
		})
	}

	switch {
	case strategy.EstimatedRecovery > e.config.LargeRecoveryAmount:
		score += e.config.LargeRecoveryBonus
		factors = append(factors, Factor{
			Label: fmt.Sprintf("recovery value above $%.0f", e.config.LargeRecoveryAmount),
			Delta: e.config.LargeRecoveryBonus,
		})
	case strategy.EstimatedRecovery > e.config.MediumRecoveryAmount:
		score += e.config.MediumRecoveryBonus
		factors = append(factors, Factor{
			Label: fmt.Sprintf("recovery value above $%.0f", e.config.MediumRecoveryAmount),
			Delta: e.config.MediumRecoveryBonus,
		})
	}

	switch riskCtx.RiskLevel {
	case models.RiskLevelHigh:
		score += e.config.HighRiskBonus
		factors = append(factors, Factor{
			Label: "account risk HIGH",
			Delta: e.config.HighRiskBonus,
		})
	case models.RiskLevelMedium:
		score += e.config.MediumRiskBonus
		factors = append(factors, Factor{
			Label: "account risk MEDIUM",
			Delta: e.config.MediumRiskBonus,
		})
	}

	if riskCtx.EscalationRequired {
		score += e.config.EscalationBonus
		factors = append(factors, Factor{
			Label: "escalation required",
			Delta: e.config.EscalationBonus,
		})
	}

	switch {
	case riskCtx.RecoveryProbability < e.config.LowProbability:
		score += e.config.LowProbabilityBonus
		factors = append(factors, Factor{
			Label: fmt.Sprintf("recovery probability below %.0f%%", e.config.LowProbability*100),
			Delta: e.config.LowProbabilityBonus,
		})
	case riskCtx.RecoveryProbability < e.config.MidProbability:
		score += e.config.MidProbabilityBonus
		factors = append(factors, Factor{
			Label: fmt.Sprintf("recovery probability below %.0f%%", e.config.MidProbability*100),
			Delta: e.config.MidProbabilityBonus,
		})
	}

	return round2(math.Min(1.0, score)), factors
}

// Classify maps a risk score to its verdict
func (e *Engine) Classify(score float64) models.Verdict {
	if score < e.config.AutoExecuteBelow {
		return models.VerdictAutoExecute
	}
	if score < e.config.HoldAt {
		return models.VerdictApprovalRequired
	}
	return models.VerdictHoldForReview
}

// EvaluateStrategy scores every step of a strategy and aggregates with the
// worst-of rule: the overall score is the maximum step score and the overall
// verdict is derived from it alone. A single high-risk step therefore forces
// review of the entire strategy. A strategy with no steps auto-executes.
func (e *Engine) EvaluateStrategy(strategy models.Strategy, riskCtx models.RiskAssessment) StrategyDecision {
	decision := StrategyDecision{
		AccountID:         strategy.AccountID,
		AccountName:       strategy.AccountName,
		StrategyType:      strategy.Type,
		EstimatedRecovery: strategy.EstimatedRecovery,
		Steps:             make([]StepDecision, 0, len(strategy.Steps)),
		Strategy:          strategy,
		RiskContext:       riskCtx,
	}

	overall := 0.0
	for _, step := range strategy.Steps {
		score, factors := e.ScoreAction(step, strategy, riskCtx)
		decision.Steps = append(decision.Steps, StepDecision{
			Ordinal: step.Ordinal,
			Kind:    step.Kind,
			Score:   score,
			Verdict: e.Classify(score),
			Factors: factors,
		})
		if score > overall {
			overall = score
		}
	}

	decision.OverallScore = overall
	decision.OverallVerdict = e.Classify(overall)

	e.logger.WithFields(logrus.Fields{
		"account": strategy.AccountID,
		"steps":   len(strategy.Steps),
		"score":   decision.OverallScore,
		"verdict": decision.OverallVerdict,
	}).Debug("Strategy evaluated")

	return decision
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
