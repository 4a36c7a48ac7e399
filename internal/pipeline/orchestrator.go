// Package pipeline sequences the revenue-recovery stages, gates every
// proposed strategy through the guardian engine, and reconciles human
// approval decisions back into execution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rohankatakam/revenuepilot/internal/guardian"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNoAccounts is returned when Run is called with an empty account list
var ErrNoAccounts = errors.New("no accounts provided")

// Config holds orchestrator configuration
type Config struct {
	// Accounts whose assessed risk score exceeds this threshold get a
	// recovery strategy; the rest are dropped from the run.
	HighRiskThreshold float64
}

// DefaultConfig returns default orchestrator configuration
func DefaultConfig() *Config {
	return &Config{
		HighRiskThreshold: 0.70,
	}
}

// GatingSummary is the run-level record of where every strategy went
type GatingSummary struct {
	AutoExecute     int                `json:"auto_execute"`
	PendingApproval int                `json:"pending_approval"`
	HeldForReview   int                `json:"held_for_review"`
	Queued          []DecisionSnapshot `json:"queued"`
}

// DecisionSnapshot is the audit view of one queued decision
type DecisionSnapshot struct {
	AccountID         string         `json:"account_id"`
	AccountName       string         `json:"account_name"`
	Score             float64        `json:"score"`
	Verdict           models.Verdict `json:"verdict"`
	EstimatedRecovery float64        `json:"estimated_recovery"`
}

// RunResult is the caller-facing outcome of one pipeline run
type RunResult struct {
	RunID            string                  `json:"run_id"`
	AccountsAnalyzed int                     `json:"accounts_analyzed"`
	Gating           GatingSummary           `json:"gating"`
	Execution        models.ExecutionSummary `json:"execution"`
	Audit            AuditPayload            `json:"audit"`
}

// RunRecord is the retained history entry for one run
type RunRecord struct {
	Timestamp        time.Time    `json:"timestamp"`
	AccountsAnalyzed int          `json:"accounts_analyzed"`
	Audit            AuditPayload `json:"audit"`
}

// DispatchRecord is one entry in the append-only stage dispatch trace.
// The trace exists for audit only; nothing consumes it.
type DispatchRecord struct {
	Stage     string    `json:"stage"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Orchestrator drives the FETCH → ASSESS → PLAN → GATE → EXECUTE → AUDIT
// stage sequence and owns the gating queues. Stages for one run never
// overlap; multiple runs may proceed concurrently and share the queues.
type Orchestrator struct {
	logger *logrus.Logger
	config *Config

	data     DataSource
	risk     RiskAssessor
	planner  StrategyPlanner
	executor Executor
	auditor  Auditor

	engine *guardian.Engine
	queues *Queues

	mu      sync.Mutex // guards history and trace
	history map[string]RunRecord
	trace   []DispatchRecord
}

// NewOrchestrator wires the collaborators and the guardian engine
func NewOrchestrator(
	logger *logrus.Logger,
	config *Config,
	engine *guardian.Engine,
	data DataSource,
	risk RiskAssessor,
	planner StrategyPlanner,
	executor Executor,
	auditor Auditor,
) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Orchestrator{
		logger:   logger,
		config:   config,
		data:     data,
		risk:     risk,
		planner:  planner,
		executor: executor,
		auditor:  auditor,
		engine:   engine,
		queues:   NewQueues(),
		history:  make(map[string]RunRecord),
	}
}

// Run processes a batch of accounts through the full pipeline. Any
// collaborator failure aborts the run; gating itself cannot fail.
func (o *Orchestrator) Run(ctx context.Context, accounts []models.Account) (*RunResult, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	start := time.Now()

	bundles, err := o.fetch(ctx, accounts)
	if err != nil {
		mtxRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	assessments, err := o.assess(ctx, bundles)
	if err != nil {
		mtxRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	riskByAccount := make(map[string]models.RiskAssessment, len(assessments))
	for _, a := range assessments {
		riskByAccount[a.AccountID] = a
	}

	strategies, err := o.plan(ctx, assessments)
	if err != nil {
		mtxRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	autoExecute, summary := o.gate(strategies, riskByAccount)

	execution, err := o.execute(ctx, autoExecute)
	if err != nil {
		mtxRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	audit, err := o.audit(ctx, AuditInput{
		Data:       bundles,
		Risk:       assessments,
		Strategies: strategies,
		Gating:     summary,
		Execution:  execution,
	})
	if err != nil {
		mtxRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	runID := uuid.NewString()
	o.mu.Lock()
	o.history[runID] = RunRecord{
		Timestamp:        start,
		AccountsAnalyzed: len(accounts),
		Audit:            audit,
	}
	o.mu.Unlock()

	mtxRuns.WithLabelValues("completed").Inc()
	o.logger.WithFields(logrus.Fields{
		"run_id":       runID,
		"accounts":     len(accounts),
		"strategies":   len(strategies),
		"auto_execute": summary.AutoExecute,
		"pending":      summary.PendingApproval,
		"held":         summary.HeldForReview,
		"duration":     time.Since(start).String(),
	}).Info("Pipeline run completed")

	return &RunResult{
		RunID:            runID,
		AccountsAnalyzed: len(accounts),
		Gating:           summary,
		Execution:        execution,
		Audit:            audit,
	}, nil
}

func (o *Orchestrator) fetch(ctx context.Context, accounts []models.Account) ([]models.SignalBundle, error) {
	o.dispatch("fetch")
	bundles, err := o.data.Fetch(ctx, accounts)
	if err != nil {
		return nil, fmt.Errorf("fetch stage: %w", err)
	}
	return bundles, nil
}

func (o *Orchestrator) assess(ctx context.Context, bundles []models.SignalBundle) ([]models.RiskAssessment, error) {
	o.dispatch("assess")
	assessments, err := o.risk.Assess(ctx, bundles)
	if err != nil {
		return nil, fmt.Errorf("assess stage: %w", err)
	}
	return assessments, nil
}

func (o *Orchestrator) plan(ctx context.Context, assessments []models.RiskAssessment) ([]models.Strategy, error) {
	var highRisk []models.RiskAssessment
	for _, a := range assessments {
		if a.RiskScore > o.config.HighRiskThreshold {
			highRisk = append(highRisk, a)
		}
	}
	if len(highRisk) == 0 {
		return nil, nil
	}

	o.dispatch("plan")
	strategies, err := o.planner.Plan(ctx, highRisk)
	if err != nil {
		return nil, fmt.Errorf("plan stage: %w", err)
	}
	return strategies, nil
}

// gate routes every strategy through the guardian engine. It is total:
// a missing risk assessment falls back to the safest-default context
// rather than failing the run.
func (o *Orchestrator) gate(strategies []models.Strategy, riskByAccount map[string]models.RiskAssessment) ([]models.Strategy, GatingSummary) {
	o.dispatch("gate")

	var autoExecute []models.Strategy
	summary := GatingSummary{Queued: []DecisionSnapshot{}}

	for _, strategy := range strategies {
		riskCtx, ok := riskByAccount[strategy.AccountID]
		if !ok {
			riskCtx = guardian.EmptyContext(strategy.AccountID)
		}

		decision := o.engine.EvaluateStrategy(strategy, riskCtx)
		mtxVerdicts.WithLabelValues(string(decision.OverallVerdict)).Inc()

		switch decision.OverallVerdict {
		case models.VerdictAutoExecute:
			autoExecute = append(autoExecute, strategy)
			summary.AutoExecute++
			continue
		case models.VerdictApprovalRequired:
			summary.PendingApproval++
		case models.VerdictHoldForReview:
			summary.HeldForReview++
		}

		o.queues.Enqueue(decision)
		summary.Queued = append(summary.Queued, DecisionSnapshot{
			AccountID:         decision.AccountID,
			AccountName:       decision.AccountName,
			Score:             decision.OverallScore,
			Verdict:           decision.OverallVerdict,
			EstimatedRecovery: decision.EstimatedRecovery,
		})
	}

	o.observeQueueDepths()
	return autoExecute, summary
}

func (o *Orchestrator) execute(ctx context.Context, strategies []models.Strategy) (models.ExecutionSummary, error) {
	o.dispatch("execute")
	execution, err := o.executor.Execute(ctx, strategies)
	if err != nil {
		return models.ExecutionSummary{}, fmt.Errorf("execute stage: %w", err)
	}
	return execution, nil
}

func (o *Orchestrator) audit(ctx context.Context, input AuditInput) (AuditPayload, error) {
	o.dispatch("audit")
	payload, err := o.auditor.Record(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("audit stage: %w", err)
	}
	return payload, nil
}

func (o *Orchestrator) dispatch(stage string) {
	o.mu.Lock()
	o.trace = append(o.trace, DispatchRecord{
		Stage:     stage,
		TaskID:    uuid.NewString(),
		Timestamp: time.Now().UTC(),
	})
	o.mu.Unlock()
}

// DispatchTrace returns a copy of the stage dispatch trace
func (o *Orchestrator) DispatchTrace() []DispatchRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	trace := make([]DispatchRecord, len(o.trace))
	copy(trace, o.trace)
	return trace
}

// Runs returns a copy of the retained run history keyed by run id
func (o *Orchestrator) Runs() map[string]RunRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	runs := make(map[string]RunRecord, len(o.history))
	for id, record := range o.history {
		runs[id] = record
	}
	return runs
}
