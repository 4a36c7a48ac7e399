// Package assess implements the heuristic account risk scorer. It is a
// fixed formula over fetched signals, not a predictive model.
package assess

import (
	"context"
	"math"
	"time"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// Config holds risk scoring configuration
type Config struct {
	// Per-signal score caps; no single signal can dominate the score
	OverdueCap  float64
	UsageCap    float64
	ContractCap float64
	PaymentCap  float64

	// Level thresholds over the combined score
	HighThreshold   float64
	MediumThreshold float64

	// Scores above this require escalation regardless of level
	EscalationThreshold float64
}

// DefaultConfig returns default assessment configuration
func DefaultConfig() *Config {
	return &Config{
		OverdueCap:          0.40,
		UsageCap:            0.30,
		ContractCap:         0.20,
		PaymentCap:          0.10,
		HighThreshold:       0.70,
		MediumThreshold:     0.40,
		EscalationThreshold: 0.85,
	}
}

// Assessor scores accounts for churn and recovery risk
type Assessor struct {
	logger *logrus.Logger
	config *Config
	now    func() time.Time
}

// NewAssessor creates a new risk assessor
func NewAssessor(logger *logrus.Logger, config *Config) *Assessor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Assessor{
		logger: logger,
		config: config,
		now:    time.Now,
	}
}

// Assess scores every signal bundle. It never fails: missing signal data
// simply contributes nothing to the score.
func (a *Assessor) Assess(ctx context.Context, bundles []models.SignalBundle) ([]models.RiskAssessment, error) {
	results := make([]models.RiskAssessment, 0, len(bundles))

	for _, bundle := range bundles {
		score := a.riskScore(bundle)
		results = append(results, models.RiskAssessment{
			AccountID:           bundle.AccountID,
			AccountName:         bundle.AccountName,
			AnnualValue:         bundle.AnnualValue,
			RiskScore:           score,
			RiskLevel:           a.riskLevel(score),
			RecoveryProbability: a.recoveryProbability(bundle),
			EscalationRequired:  score > a.config.EscalationThreshold,
			Signals: models.AccountSignals{
				Overdue:        bundle.OverdueInvoices,
				UsageDrop:      bundle.UsageDrop,
				ContractEnding: a.contractStatus(bundle.ContractEnd),
				PaymentDelays:  bundle.PaymentDelays,
			},
		})
	}

	a.logger.WithFields(logrus.Fields{
		"accounts": len(results),
	}).Info("Risk assessment completed")

	return results, nil
}

// riskScore combines the four signal components, each capped so no single
// signal dominates, then caps the total at 1.0
func (a *Assessor) riskScore(bundle models.SignalBundle) float64 {
	score := 0.0

	if bundle.OverdueInvoices.HasOverdue {
		score += math.Min(a.config.OverdueCap, float64(bundle.OverdueInvoices.DaysOverdue)/100)
	}

	score += math.Min(a.config.UsageCap, bundle.UsageDrop.DropPercent/100)

	if days := a.daysUntilContractEnd(bundle.ContractEnd); days != nil {
		switch {
		case *days <= 0:
			score += 0.20 // already expired
		case *days <= 30:
			score += 0.15
		case *days <= 90:
			score += 0.10
		case *days <= 180:
			score += 0.05
		}
	}

	score += math.Min(a.config.PaymentCap, float64(bundle.PaymentDelays.LatePaymentsLast6M)*0.025)

	return round4(math.Min(1.0, score))
}

// recoveryProbability starts from a slightly optimistic prior and walks it
// down as the signals worsen, clamped to [0,1]
func (a *Assessor) recoveryProbability(bundle models.SignalBundle) float64 {
	prob := 0.65

	days := bundle.OverdueInvoices.DaysOverdue
	if days > 60 {
		prob -= 0.20
	} else if days > 30 {
		prob -= 0.10
	}

	drop := bundle.UsageDrop.DropPercent
	if drop > 50 {
		prob -= 0.15
	} else if drop > 25 {
		prob -= 0.07
	}

	prob -= float64(bundle.PaymentDelays.LatePaymentsLast6M) * 0.02

	return round4(math.Max(0.0, math.Min(1.0, prob)))
}

func (a *Assessor) riskLevel(score float64) models.RiskLevel {
	if score >= a.config.HighThreshold {
		return models.RiskLevelHigh
	}
	if score >= a.config.MediumThreshold {
		return models.RiskLevelMedium
	}
	return models.RiskLevelLow
}

func (a *Assessor) contractStatus(contractEnd string) models.ContractStatus {
	days := a.daysUntilContractEnd(contractEnd)
	return models.ContractStatus{
		ContractEnd:  contractEnd,
		DaysUntilEnd: days,
		EndingSoon:   days != nil && *days >= 0 && *days <= 90,
	}
}

// daysUntilContractEnd returns nil when the date is missing or malformed;
// negative values mean the contract already expired
func (a *Assessor) daysUntilContractEnd(contractEnd string) *int {
	if contractEnd == "" {
		return nil
	}
	end, err := time.Parse("2006-01-02", contractEnd)
	if err != nil {
		return nil
	}
	days := int(end.Sub(a.now().UTC()).Hours() / 24)
	return &days
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
