// Package report tracks measurable outcomes across pipeline runs and
// produces executive summaries with actionable recommendations.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/rohankatakam/revenuepilot/internal/pipeline"
	"github.com/sirupsen/logrus"
)

// Config controls auditing behaviour
type Config struct {
	// TrailPath appends one JSONL entry per run when non-empty
	TrailPath string

	// HoursSavedPerAccount estimates analyst hours saved per account processed
	HoursSavedPerAccount int

	// TopAccounts caps the ranked high-risk list in each report
	TopAccounts int

	// SevereOverdueDays flags accounts for a collections recommendation
	SevereOverdueDays int

	// HighDropPercent flags accounts for a proactive check-in recommendation
	HighDropPercent float64
}

// DefaultConfig returns default auditing configuration
func DefaultConfig() *Config {
	return &Config{
		HoursSavedPerAccount: 2,
		TopAccounts:          5,
		SevereOverdueDays:    60,
		HighDropPercent:      40,
	}
}

// Metrics accumulates outcome totals across runs
type Metrics struct {
	Runs                int     `json:"runs"`
	TotalRiskIdentified int     `json:"total_risk_identified"`
	StrategiesCreated   int     `json:"strategies_created"`
	StrategiesExecuted  int     `json:"strategies_executed"`
	PendingApproval     int     `json:"pending_approval"`
	EstimatedRecovery   float64 `json:"estimated_recovery"`
	HumanTimeSavedHours int     `json:"human_time_saved_hours"`
}

// ExecutiveSummary is the headline view of a single run
type ExecutiveSummary struct {
	AccountsAnalyzed         int     `json:"accounts_analyzed"`
	HighRiskAccounts         int     `json:"high_risk_accounts"`
	MediumRiskAccounts       int     `json:"medium_risk_accounts"`
	TotalAtRiskRevenue       float64 `json:"total_at_risk_revenue"`
	ImmediateActionsRequired int     `json:"immediate_actions_required"`
}

// TopAccount is one entry in the ranked high-risk list
type TopAccount struct {
	AccountID   string           `json:"account_id"`
	AccountName string           `json:"account_name"`
	RiskScore   float64          `json:"risk_score"`
	RiskLevel   models.RiskLevel `json:"risk_level"`
}

// Report is the executive-level summary of one run
type Report struct {
	ExecutiveSummary ExecutiveSummary `json:"executive_summary"`
	TopAccounts      []TopAccount     `json:"top_accounts"`
	Recommendations  []string         `json:"recommendations"`
}

// TrailEntry is one JSONL audit trail record
type TrailEntry struct {
	AuditID    string                  `json:"audit_id"`
	Timestamp  time.Time               `json:"timestamp"`
	Risk       []models.RiskAssessment `json:"risk_assessment"`
	Strategies []models.Strategy       `json:"strategies"`
	Gating     pipeline.GatingSummary  `json:"gating"`
	Execution  models.ExecutionSummary `json:"execution"`
}

// Auditor records run outcomes. Metrics accumulate across runs rather
// than being overwritten each time.
type Auditor struct {
	logger *logrus.Logger
	config *Config

	mu          sync.Mutex
	metrics     Metrics
	entries     int
	lastAuditID string
}

// NewAuditor creates a new auditor
func NewAuditor(logger *logrus.Logger, config *Config) *Auditor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Auditor{
		logger: logger,
		config: config,
	}
}

// Record folds one run into the cumulative metrics, builds its executive
// report and, when a trail path is configured, appends a JSONL entry.
func (a *Auditor) Record(ctx context.Context, input pipeline.AuditInput) (pipeline.AuditPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New()
	auditID := fmt.Sprintf("audit_%x", id[:4])

	runRecovery := 0.0
	for _, strategy := range input.Strategies {
		runRecovery += strategy.EstimatedRecovery
	}

	a.mu.Lock()
	a.metrics.Runs++
	a.metrics.TotalRiskIdentified += len(input.Risk)
	a.metrics.StrategiesCreated += len(input.Strategies)
	a.metrics.StrategiesExecuted += input.Execution.AutoExecuted
	a.metrics.PendingApproval += input.Gating.PendingApproval
	a.metrics.EstimatedRecovery += runRecovery
	a.metrics.HumanTimeSavedHours += len(input.Risk) * a.config.HoursSavedPerAccount
	a.entries++
	a.lastAuditID = auditID
	metrics := a.metrics
	entries := a.entries
	a.mu.Unlock()

	rep := a.buildReport(input, runRecovery)

	if a.config.TrailPath != "" {
		entry := TrailEntry{
			AuditID:    auditID,
			Timestamp:  time.Now().UTC(),
			Risk:       input.Risk,
			Strategies: input.Strategies,
			Gating:     input.Gating,
			Execution:  input.Execution,
		}
		if err := a.appendTrail(entry); err != nil {
			return nil, fmt.Errorf("append audit trail: %w", err)
		}
	}

	a.logger.WithFields(logrus.Fields{
		"audit_id":         auditID,
		"accounts":         len(input.Risk),
		"high_risk":        rep.ExecutiveSummary.HighRiskAccounts,
		"at_risk_revenue":  rep.ExecutiveSummary.TotalAtRiskRevenue,
		"pending_approval": input.Gating.PendingApproval,
	}).Info("Audit complete")

	return pipeline.AuditPayload{
		"audit_id": auditID,
		"metrics":  metrics,
		"report":   rep,
		"log_summary": map[string]interface{}{
			"total_entries": entries,
			"latest_entry":  auditID,
		},
	}, nil
}

// Metrics returns a copy of the cumulative metrics
func (a *Auditor) Metrics() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

func (a *Auditor) buildReport(input pipeline.AuditInput, runRecovery float64) Report {
	var high []models.RiskAssessment
	mediumCount := 0
	for _, risk := range input.Risk {
		switch risk.RiskLevel {
		case models.RiskLevelHigh:
			high = append(high, risk)
		case models.RiskLevelMedium:
			mediumCount++
		}
	}

	immediate := 0
	for _, strategy := range input.Strategies {
		if strategy.Priority == models.PriorityHigh {
			immediate++
		}
	}

	top := make([]TopAccount, 0, len(high))
	for _, risk := range high {
		top = append(top, TopAccount{
			AccountID:   risk.AccountID,
			AccountName: risk.AccountName,
			RiskScore:   risk.RiskScore,
			RiskLevel:   risk.RiskLevel,
		})
	}
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].RiskScore > top[j].RiskScore
	})
	if len(top) > a.config.TopAccounts {
		top = top[:a.config.TopAccounts]
	}

	return Report{
		ExecutiveSummary: ExecutiveSummary{
			AccountsAnalyzed:         len(input.Risk),
			HighRiskAccounts:         len(high),
			MediumRiskAccounts:       mediumCount,
			TotalAtRiskRevenue:       math.Round(runRecovery*100) / 100,
			ImmediateActionsRequired: immediate,
		},
		TopAccounts:     top,
		Recommendations: a.recommendations(input.Risk),
	}
}

func (a *Auditor) recommendations(risks []models.RiskAssessment) []string {
	var recs []string

	severeOverdue := 0
	highDrop := 0
	expiring := 0
	for _, risk := range risks {
		if risk.Signals.Overdue.DaysOverdue > a.config.SevereOverdueDays {
			severeOverdue++
		}
		if risk.Signals.UsageDrop.DropPercent > a.config.HighDropPercent {
			highDrop++
		}
		if risk.Signals.ContractEnding.EndingSoon {
			expiring++
		}
	}

	if severeOverdue > 0 {
		recs = append(recs, fmt.Sprintf(
			"Escalate %d account(s) with invoices >%d days overdue to collections immediately.",
			severeOverdue, a.config.SevereOverdueDays))
	}
	if highDrop > 0 {
		recs = append(recs, fmt.Sprintf(
			"Schedule proactive check-in calls for %d account(s) showing >%.0f%% usage decline.",
			highDrop, a.config.HighDropPercent))
	}
	if expiring > 0 {
		recs = append(recs, fmt.Sprintf(
			"Initiate renewal conversations for %d account(s) with contracts expiring within 90 days.",
			expiring))
	}

	if len(recs) == 0 {
		recs = append(recs, "No immediate critical actions identified. Continue monitoring.")
	}
	return recs
}

func (a *Auditor) appendTrail(entry TrailEntry) error {
	dir := filepath.Dir(a.config.TrailPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(a.config.TrailPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(entry)
}
