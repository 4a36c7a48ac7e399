package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rohankatakam/revenuepilot/internal/guardian"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// calls records collaborator invocation order across the fakes
type calls struct {
	mu    sync.Mutex
	order []string
}

func (c *calls) add(name string) {
	c.mu.Lock()
	c.order = append(c.order, name)
	c.mu.Unlock()
}

type fakeData struct {
	calls   *calls
	bundles []models.SignalBundle
	err     error
}

func (f *fakeData) Fetch(_ context.Context, accounts []models.Account) ([]models.SignalBundle, error) {
	f.calls.add("fetch")
	if f.err != nil {
		return nil, f.err
	}
	if f.bundles != nil {
		return f.bundles, nil
	}
	bundles := make([]models.SignalBundle, 0, len(accounts))
	for _, a := range accounts {
		bundles = append(bundles, models.SignalBundle{AccountID: a.ID, AccountName: a.Name})
	}
	return bundles, nil
}

type fakeRisk struct {
	calls       *calls
	assessments []models.RiskAssessment
	err         error
}

func (f *fakeRisk) Assess(_ context.Context, bundles []models.SignalBundle) ([]models.RiskAssessment, error) {
	f.calls.add("assess")
	if f.err != nil {
		return nil, f.err
	}
	return f.assessments, nil
}

type fakePlanner struct {
	calls      *calls
	strategies []models.Strategy
	got        []models.RiskAssessment
	err        error
}

func (f *fakePlanner) Plan(_ context.Context, highRisk []models.RiskAssessment) ([]models.Strategy, error) {
	f.calls.add("plan")
	f.got = highRisk
	if f.err != nil {
		return nil, f.err
	}
	return f.strategies, nil
}

type fakeExecutor struct {
	calls   *calls
	mu      sync.Mutex
	batches [][]models.Strategy
	err     error
}

func (f *fakeExecutor) Execute(_ context.Context, strategies []models.Strategy) (models.ExecutionSummary, error) {
	f.calls.add("execute")
	f.mu.Lock()
	f.batches = append(f.batches, strategies)
	f.mu.Unlock()
	if f.err != nil {
		return models.ExecutionSummary{}, f.err
	}
	return models.ExecutionSummary{AutoExecuted: len(strategies)}, nil
}

type fakeAuditor struct {
	calls *calls
	got   AuditInput
	err   error
}

func (f *fakeAuditor) Record(_ context.Context, input AuditInput) (AuditPayload, error) {
	f.calls.add("audit")
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return AuditPayload{"audit_id": "audit_test"}, nil
}

type fixture struct {
	orch     *Orchestrator
	calls    *calls
	data     *fakeData
	risk     *fakeRisk
	planner  *fakePlanner
	executor *fakeExecutor
	auditor  *fakeAuditor
}

func newFixture() *fixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := &calls{}
	f := &fixture{
		calls:    c,
		data:     &fakeData{calls: c},
		risk:     &fakeRisk{calls: c},
		planner:  &fakePlanner{calls: c},
		executor: &fakeExecutor{calls: c},
		auditor:  &fakeAuditor{calls: c},
	}
	f.orch = NewOrchestrator(
		logger, nil,
		guardian.NewEngine(logger, nil),
		f.data, f.risk, f.planner, f.executor, f.auditor,
	)
	return f
}

func highRiskAssessment(id string) models.RiskAssessment {
	return models.RiskAssessment{
		AccountID:           id,
		RiskScore:           0.85,
		RiskLevel:           models.RiskLevelHigh,
		RecoveryProbability: 0.55,
	}
}

// safeStrategy gates to AUTO_EXECUTE even against a HIGH risk context:
// chat_post base 0.10 + HIGH 0.20 = 0.30
func safeStrategy(id string) models.Strategy {
	return models.Strategy{
		AccountID: id,
		Steps:     []models.ActionStep{{Ordinal: 1, Kind: models.ActionChatPost}},
	}
}

// riskyStrategy gates to HUMAN_APPROVAL_REQUIRED:
// message_send base 0.30 + HIGH 0.20 = 0.50
func riskyStrategy(id string) models.Strategy {
	return models.Strategy{
		AccountID: id,
		Steps:     []models.ActionStep{{Ordinal: 1, Kind: models.ActionMessageSend}},
	}
}

// heldStrategy gates to HOLD_FOR_REVIEW:
// fee_waiver base 0.55 + urgent 0.15 + HIGH 0.20 = 0.90
func heldStrategy(id string) models.Strategy {
	return models.Strategy{
		AccountID: id,
		Steps:     []models.ActionStep{{Ordinal: 1, Kind: models.ActionFeeWaiver, Tone: "urgent"}},
	}
}

func accounts(ids ...string) []models.Account {
	out := make([]models.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Account{ID: id, Name: id})
	}
	return out
}

func TestRunStageOrdering(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	f.planner.strategies = []models.Strategy{safeStrategy("acc_1")}

	_, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "assess", "plan", "execute", "audit"}, f.calls.order)
}

func TestRunNoAccounts(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoAccounts)
	assert.Empty(t, f.calls.order)
}

func TestRunGatingPartition(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{
		highRiskAssessment("acc_1"),
		highRiskAssessment("acc_2"),
		highRiskAssessment("acc_3"),
	}
	f.planner.strategies = []models.Strategy{
		safeStrategy("acc_1"),
		riskyStrategy("acc_2"),
		heldStrategy("acc_3"),
	}

	result, err := f.orch.Run(context.Background(), accounts("acc_1", "acc_2", "acc_3"))
	require.NoError(t, err)

	// Every strategy lands in exactly one bucket
	pending, held := f.orch.QueueDepths()
	assert.Equal(t, len(f.planner.strategies), result.Gating.AutoExecute+pending+held)
	assert.Equal(t, 1, result.Gating.AutoExecute)
	assert.Equal(t, 1, result.Gating.PendingApproval)
	assert.Equal(t, 1, result.Gating.HeldForReview)
	require.Len(t, result.Gating.Queued, 2)

	// Only the auto-execute list reaches the executor
	require.Len(t, f.executor.batches, 1)
	require.Len(t, f.executor.batches[0], 1)
	assert.Equal(t, "acc_1", f.executor.batches[0][0].AccountID)
}

func TestRunPlanFiltersHighRiskOnly(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{
		{AccountID: "acc_low", RiskScore: 0.20},
		{AccountID: "acc_mid", RiskScore: 0.70}, // at threshold, not above
		highRiskAssessment("acc_high"),
	}
	f.planner.strategies = []models.Strategy{safeStrategy("acc_high")}

	_, err := f.orch.Run(context.Background(), accounts("acc_low", "acc_mid", "acc_high"))
	require.NoError(t, err)

	require.Len(t, f.planner.got, 1)
	assert.Equal(t, "acc_high", f.planner.got[0].AccountID)
}

func TestRunSkipsPlannerWhenNoHighRisk(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{{AccountID: "acc_1", RiskScore: 0.10}}

	result, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch", "assess", "execute", "audit"}, f.calls.order)
	assert.Zero(t, result.Gating.AutoExecute+result.Gating.PendingApproval+result.Gating.HeldForReview)
}

func TestRunMissingRiskContextGatesWithDefaults(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	// Planner emits a strategy for an account the assessor never scored
	f.planner.strategies = []models.Strategy{safeStrategy("acc_unknown")}

	result, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)

	// chat_post with the default context scores 0.10 and auto-executes
	assert.Equal(t, 1, result.Gating.AutoExecute)
}

func TestRunCollaboratorFailuresAbort(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		setup func(*fixture)
		stage string
	}{
		{"fetch", func(f *fixture) { f.data.err = boom }, "fetch stage"},
		{"assess", func(f *fixture) { f.risk.err = boom }, "assess stage"},
		{"plan", func(f *fixture) { f.planner.err = boom }, "plan stage"},
		{"execute", func(f *fixture) { f.executor.err = boom }, "execute stage"},
		{"audit", func(f *fixture) { f.auditor.err = boom }, "audit stage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
			f.planner.strategies = []models.Strategy{safeStrategy("acc_1")}
			tt.setup(f)

			_, err := f.orch.Run(context.Background(), accounts("acc_1"))
			require.Error(t, err)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.stage)
			assert.Empty(t, f.orch.Runs(), "failed runs are not recorded")
		})
	}
}

func TestRunRecordsHistory(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	f.planner.strategies = []models.Strategy{safeStrategy("acc_1")}

	result, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	runs := f.orch.Runs()
	require.Contains(t, runs, result.RunID)
	assert.Equal(t, 1, runs[result.RunID].AccountsAnalyzed)
	assert.Equal(t, AuditPayload{"audit_id": "audit_test"}, runs[result.RunID].Audit)
}

func TestRunAuditReceivesAllStageOutputs(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	f.planner.strategies = []models.Strategy{riskyStrategy("acc_1")}

	_, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)

	assert.Len(t, f.auditor.got.Data, 1)
	assert.Len(t, f.auditor.got.Risk, 1)
	assert.Len(t, f.auditor.got.Strategies, 1)
	assert.Equal(t, 1, f.auditor.got.Gating.PendingApproval)
}

func TestReconcileApprove(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	f.planner.strategies = []models.Strategy{riskyStrategy("acc_1")}

	_, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)

	pendingBefore, heldBefore := f.orch.QueueDepths()
	require.Equal(t, 1, pendingBefore)

	outcome, err := f.orch.Reconcile(context.Background(), "acc_1", true, "looks fine")
	require.NoError(t, err)

	assert.Equal(t, ReconcileExecuted, outcome.Status)
	assert.Equal(t, 0.50, outcome.RiskScore)
	require.NotNil(t, outcome.Execution)

	pendingAfter, heldAfter := f.orch.QueueDepths()
	assert.Equal(t, pendingBefore-1, pendingAfter)
	assert.Equal(t, heldBefore, heldAfter)

	// The approved strategy was dispatched as a singleton batch
	last := f.executor.batches[len(f.executor.batches)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "acc_1", last[0].AccountID)

	// Immediate repeat finds nothing
	outcome, err = f.orch.Reconcile(context.Background(), "acc_1", true, "")
	require.NoError(t, err)
	assert.Equal(t, ReconcileNotFound, outcome.Status)
}

func TestReconcileRejectNeverExecutes(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	f.planner.strategies = []models.Strategy{heldStrategy("acc_1")}

	_, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)

	executorCallsBefore := len(f.executor.batches)

	outcome, err := f.orch.Reconcile(context.Background(), "acc_1", false, "too aggressive")
	require.NoError(t, err)

	assert.Equal(t, ReconcileRejected, outcome.Status)
	assert.Equal(t, "too aggressive", outcome.Notes)
	assert.Equal(t, 0.90, outcome.RiskScore)
	assert.Nil(t, outcome.Execution)
	assert.Len(t, f.executor.batches, executorCallsBefore, "rejection must not invoke the executor")

	_, held := f.orch.QueueDepths()
	assert.Equal(t, 0, held)
}

func TestReconcileUnknownAccount(t *testing.T) {
	f := newFixture()
	outcome, err := f.orch.Reconcile(context.Background(), "ghost", true, "")
	require.NoError(t, err)
	assert.Equal(t, ReconcileNotFound, outcome.Status)
}

func TestQueueSnapshotIsReadOnly(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{
		highRiskAssessment("acc_1"),
		highRiskAssessment("acc_2"),
	}
	f.planner.strategies = []models.Strategy{
		riskyStrategy("acc_1"),
		heldStrategy("acc_2"),
	}

	_, err := f.orch.Run(context.Background(), accounts("acc_1", "acc_2"))
	require.NoError(t, err)

	snap := f.orch.QueueSnapshot()
	require.Len(t, snap.Pending, 1)
	require.Len(t, snap.Held, 1)

	snap.Pending[0].AccountID = "mutated"

	again := f.orch.QueueSnapshot()
	assert.Equal(t, "acc_1", again.Pending[0].AccountID)
	pending, held := f.orch.QueueDepths()
	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, held)
}

func TestDispatchTraceAppendsPerStage(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	f.planner.strategies = []models.Strategy{safeStrategy("acc_1")}

	_, err := f.orch.Run(context.Background(), accounts("acc_1"))
	require.NoError(t, err)

	trace := f.orch.DispatchTrace()
	require.Len(t, trace, 6)
	stages := make([]string, 0, len(trace))
	for _, rec := range trace {
		require.NotEmpty(t, rec.TaskID)
		stages = append(stages, rec.Stage)
	}
	assert.Equal(t, []string{"fetch", "assess", "plan", "gate", "execute", "audit"}, stages)
}

func TestConcurrentRunsAndReconciles(t *testing.T) {
	f := newFixture()
	f.risk.assessments = []models.RiskAssessment{highRiskAssessment("acc_1")}
	f.planner.strategies = []models.Strategy{safeStrategy("acc_1")}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Run(context.Background(), accounts("acc_1"))
			assert.NoError(t, err)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Reconcile(context.Background(), "acc_1", false, "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, f.orch.Runs(), 8)
}
