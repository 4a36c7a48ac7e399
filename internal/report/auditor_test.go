package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/rohankatakam/revenuepilot/internal/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func assessment(id string, score float64, level models.RiskLevel) models.RiskAssessment {
	return models.RiskAssessment{
		AccountID:   id,
		AccountName: "Account " + id,
		RiskScore:   score,
		RiskLevel:   level,
	}
}

func sampleInput() pipeline.AuditInput {
	return pipeline.AuditInput{
		Risk: []models.RiskAssessment{
			assessment("acc_001", 0.82, models.RiskLevelHigh),
			assessment("acc_002", 0.55, models.RiskLevelMedium),
			assessment("acc_003", 0.15, models.RiskLevelLow),
		},
		Strategies: []models.Strategy{
			{AccountID: "acc_001", EstimatedRecovery: 45000, Priority: models.PriorityHigh},
		},
		Gating: pipeline.GatingSummary{
			AutoExecute:     0,
			PendingApproval: 1,
		},
		Execution: models.ExecutionSummary{AutoExecuted: 0},
	}
}

func TestRecordAccumulatesMetrics(t *testing.T) {
	auditor := NewAuditor(quietLogger(), nil)

	_, err := auditor.Record(context.Background(), sampleInput())
	require.NoError(t, err)
	_, err = auditor.Record(context.Background(), sampleInput())
	require.NoError(t, err)

	metrics := auditor.Metrics()
	assert.Equal(t, 2, metrics.Runs)
	assert.Equal(t, 6, metrics.TotalRiskIdentified)
	assert.Equal(t, 2, metrics.StrategiesCreated)
	assert.Equal(t, 0, metrics.StrategiesExecuted)
	assert.Equal(t, 2, metrics.PendingApproval)
	assert.Equal(t, 90000.0, metrics.EstimatedRecovery)
	assert.Equal(t, 12, metrics.HumanTimeSavedHours)
}

func TestRecordPayloadShape(t *testing.T) {
	auditor := NewAuditor(quietLogger(), nil)

	payload, err := auditor.Record(context.Background(), sampleInput())
	require.NoError(t, err)

	auditID, ok := payload["audit_id"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^audit_[0-9a-f]{8}$`, auditID)

	rep, ok := payload["report"].(Report)
	require.True(t, ok)
	assert.Equal(t, 3, rep.ExecutiveSummary.AccountsAnalyzed)
	assert.Equal(t, 1, rep.ExecutiveSummary.HighRiskAccounts)
	assert.Equal(t, 1, rep.ExecutiveSummary.MediumRiskAccounts)
	assert.Equal(t, 45000.0, rep.ExecutiveSummary.TotalAtRiskRevenue)
	assert.Equal(t, 1, rep.ExecutiveSummary.ImmediateActionsRequired)
}

func TestTopAccountsRankedAndCapped(t *testing.T) {
	auditor := NewAuditor(quietLogger(), nil)

	input := pipeline.AuditInput{}
	for i := 0; i < 7; i++ {
		input.Risk = append(input.Risk, assessment(
			fmt.Sprintf("acc_%03d", i), 0.70+float64(i)*0.02, models.RiskLevelHigh))
	}

	payload, err := auditor.Record(context.Background(), input)
	require.NoError(t, err)

	rep := payload["report"].(Report)
	require.Len(t, rep.TopAccounts, 5)
	assert.Equal(t, "acc_006", rep.TopAccounts[0].AccountID)
	for i := 1; i < len(rep.TopAccounts); i++ {
		assert.GreaterOrEqual(t, rep.TopAccounts[i-1].RiskScore, rep.TopAccounts[i].RiskScore)
	}
}

func TestRecommendations(t *testing.T) {
	auditor := NewAuditor(quietLogger(), nil)

	risk := assessment("acc_001", 0.85, models.RiskLevelHigh)
	risk.Signals.Overdue = models.OverdueInvoices{HasOverdue: true, DaysOverdue: 67}
	risk.Signals.UsageDrop = models.UsageDrop{DropPercent: 45}
	risk.Signals.ContractEnding = models.ContractStatus{EndingSoon: true}

	payload, err := auditor.Record(context.Background(), pipeline.AuditInput{
		Risk: []models.RiskAssessment{risk},
	})
	require.NoError(t, err)

	rep := payload["report"].(Report)
	require.Len(t, rep.Recommendations, 3)
	assert.Contains(t, rep.Recommendations[0], "collections")
	assert.Contains(t, rep.Recommendations[1], "check-in")
	assert.Contains(t, rep.Recommendations[2], "renewal")
}

func TestRecommendationsFallback(t *testing.T) {
	auditor := NewAuditor(quietLogger(), nil)

	payload, err := auditor.Record(context.Background(), pipeline.AuditInput{
		Risk: []models.RiskAssessment{assessment("acc_001", 0.10, models.RiskLevelLow)},
	})
	require.NoError(t, err)

	rep := payload["report"].(Report)
	require.Len(t, rep.Recommendations, 1)
	assert.Contains(t, rep.Recommendations[0], "Continue monitoring")
}

func TestTrailAppendsJSONL(t *testing.T) {
	trail := filepath.Join(t.TempDir(), "audit", "trail.jsonl")
	config := DefaultConfig()
	config.TrailPath = trail
	auditor := NewAuditor(quietLogger(), config)

	_, err := auditor.Record(context.Background(), sampleInput())
	require.NoError(t, err)
	_, err = auditor.Record(context.Background(), sampleInput())
	require.NoError(t, err)

	f, err := os.Open(trail)
	require.NoError(t, err)
	defer f.Close()

	var entries []TrailEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry TrailEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].AuditID, entries[1].AuditID)
	assert.Len(t, entries[0].Risk, 3)
	assert.Equal(t, 1, entries[0].Gating.PendingApproval)
}
