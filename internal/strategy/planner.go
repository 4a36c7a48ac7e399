// Package strategy builds multi-step recovery plans for high-risk accounts.
// Each dominant risk signal maps to a fixed plan builder; new signal kinds
// are added by extending the SignalKind enumeration and the builder table
// together.
package strategy

import (
	"context"
	"math"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// builder constructs the plan outline for one dominant signal
type builder func(assessment models.RiskAssessment) outline

// outline is the signal-specific part of a strategy before the
// account-level fields are filled in
type outline struct {
	Type         string
	Steps        []models.ActionStep
	TimelineDays int
	Priority     models.Priority
}

// Planner designs recovery strategies from risk assessments
type Planner struct {
	logger   *logrus.Logger
	builders map[models.SignalKind]builder
}

// NewPlanner creates a planner with the built-in strategy templates
func NewPlanner(logger *logrus.Logger) *Planner {
	p := &Planner{logger: logger}
	p.builders = map[models.SignalKind]builder{
		models.SignalOverdueInvoice:  p.invoiceRecovery,
		models.SignalUsageDrop:       p.reengagement,
		models.SignalContractRenewal: p.renewal,
	}
	return p
}

// Plan builds one strategy per high-risk account. Accounts without a
// recognized dominant signal fall back to general outreach.
func (p *Planner) Plan(ctx context.Context, highRisk []models.RiskAssessment) ([]models.Strategy, error) {
	strategies := make([]models.Strategy, 0, len(highRisk))

	for _, assessment := range highRisk {
		signal := primarySignal(assessment)
		build, ok := p.builders[signal]
		if !ok {
			build = p.generalOutreach
		}
		o := build(assessment)

		strategies = append(strategies, models.Strategy{
			AccountID:         assessment.AccountID,
			AccountName:       assessment.AccountName,
			RiskLevel:         assessment.RiskLevel,
			PrimarySignal:     signal,
			Type:              o.Type,
			Steps:             o.Steps,
			EstimatedRecovery: estimateRecovery(assessment),
			Priority:          o.Priority,
			TimelineDays:      o.TimelineDays,
		})
	}

	p.logger.WithFields(logrus.Fields{
		"strategies": len(strategies),
	}).Info("Strategies created")

	return strategies, nil
}

// primarySignal determines the dominant risk driver for an account
func primarySignal(assessment models.RiskAssessment) models.SignalKind {
	signals := assessment.Signals

	if signals.Overdue.HasOverdue && signals.Overdue.DaysOverdue > 0 {
		return models.SignalOverdueInvoice
	}
	if signals.UsageDrop.DropPercent > 20 {
		return models.SignalUsageDrop
	}
	if signals.ContractEnding.EndingSoon {
		return models.SignalContractRenewal
	}
	return models.SignalDefault
}

// estimateRecovery is the larger of the full overdue amount and 20% of
// annual value, rounded to cents
func estimateRecovery(assessment models.RiskAssessment) float64 {
	overdue := assessment.Signals.Overdue.Amount
	return math.Round(math.Max(overdue, assessment.AnnualValue*0.20)*100) / 100
}

func (p *Planner) invoiceRecovery(assessment models.RiskAssessment) outline {
	daysOverdue := assessment.Signals.Overdue.DaysOverdue

	tone := "friendly_reminder"
	escalationDelay := "+3_days"
	if daysOverdue >= 30 {
		tone = "urgent"
		escalationDelay = "+1_day"
	}

	steps := []models.ActionStep{
		{
			Ordinal:   1,
			Kind:      models.ActionMessageSend,
			Recipient: "finance_contact",
			Tone:      tone,
			Timing:    "immediate",
			Template:  "overdue_invoice_reminder",
		},
	}

	// Significantly overdue accounts get a late-fee waiver incentive
	if daysOverdue > 45 {
		steps = append(steps, models.ActionStep{
			Ordinal:   len(steps) + 1,
			Kind:      models.ActionFeeWaiver,
			OfferType: "late_fee_waiver",
			Terms:     "Payment within 5 business days",
			Timing:    "after_step_1",
		})
	}

	steps = append(steps,
		models.ActionStep{
			Ordinal:   len(steps) + 1,
			Kind:      models.ActionMessageSend,
			Recipient: "executive_sponsor",
			Tone:      "escalated",
			Timing:    escalationDelay,
			Template:  "payment_escalation",
		},
		models.ActionStep{
			Ordinal: len(steps) + 2,
			Kind:    models.ActionChatPost,
			Channel: "internal-finance",
			Message: "Consider escalating to collections if no response within 48h.",
			Timing:  "+7_days",
		},
	)

	// Past 60 days the plan also routes the account to collections
	if daysOverdue > 60 {
		steps = append(steps, models.ActionStep{
			Ordinal:   len(steps) + 1,
			Kind:      models.ActionEscalationRoute,
			Recipient: "collections_team",
			Timing:    "+10_days",
		})
	}

	timeline := 7
	priority := models.PriorityMedium
	if daysOverdue >= 30 {
		timeline = 3
	}
	if daysOverdue > 45 {
		priority = models.PriorityHigh
	}

	return outline{
		Type:         "invoice_recovery",
		Steps:        steps,
		TimelineDays: timeline,
		Priority:     priority,
	}
}

func (p *Planner) reengagement(assessment models.RiskAssessment) outline {
	drop := assessment.Signals.UsageDrop.DropPercent

	steps := []models.ActionStep{
		{
			Ordinal:   1,
			Kind:      models.ActionMessageSend,
			Recipient: "power_user",
			Timing:    "immediate",
			Template:  "usage_drop_alert",
		},
		{
			Ordinal:   2,
			Kind:      models.ActionGenericOffer,
			OfferType: "training_session",
			Terms:     "free_workshop",
			Timing:    "+2_days",
		},
		{
			Ordinal:   3,
			Kind:      models.ActionMessageSend,
			Recipient: "executive_sponsor",
			Timing:    "+7_days",
			Template:  "executive_check_in",
		},
	}

	priority := models.PriorityMedium
	if drop > 50 {
		priority = models.PriorityHigh
		// Severe decline warrants a retention incentive
		steps = append(steps, models.ActionStep{
			Ordinal:   4,
			Kind:      models.ActionIncentiveOffer,
			OfferType: "renewal_discount",
			Terms:     "10% off next renewal on a 12-month commitment",
			Timing:    "+10_days",
		})
	}

	return outline{
		Type:         "reengagement",
		Steps:        steps,
		TimelineDays: 5,
		Priority:     priority,
	}
}

func (p *Planner) renewal(assessment models.RiskAssessment) outline {
	return outline{
		Type: "contract_renewal",
		Steps: []models.ActionStep{
			{
				Ordinal:   1,
				Kind:      models.ActionRecordUpdate,
				Recipient: "crm",
				Message:   "Renewal opportunity opened",
				Timing:    "immediate",
			},
			{
				Ordinal:   2,
				Kind:      models.ActionMessageSend,
				Recipient: "executive_sponsor",
				Timing:    "immediate",
				Template:  "renewal_intro",
			},
			{
				Ordinal:   3,
				Kind:      models.ActionCalendarInvite,
				Recipient: "executive_sponsor",
				Subject:   "Contract Renewal Discussion",
				Timing:    "+3_days",
			},
		},
		TimelineDays: 14,
		Priority:     models.PriorityHigh,
	}
}

func (p *Planner) generalOutreach(assessment models.RiskAssessment) outline {
	return outline{
		Type: "general_outreach",
		Steps: []models.ActionStep{
			{
				Ordinal:   1,
				Kind:      models.ActionMessageSend,
				Recipient: "primary_contact",
				Timing:    "immediate",
				Template:  "account_health_check",
			},
		},
		TimelineDays: 7,
		Priority:     models.PriorityLow,
	}
}
