package pipeline

import (
	"sync"

	"github.com/rohankatakam/revenuepilot/internal/guardian"
	"github.com/rohankatakam/revenuepilot/internal/models"
)

// Queues holds strategy decisions awaiting human action. Both queues are
// ordered by insertion and guarded by one mutex; they are the only state
// shared across concurrent runs and reconcile calls. Account identifiers
// are assumed unique across both queues at any one time.
type Queues struct {
	mu       sync.Mutex
	approval []guardian.StrategyDecision
	held     []guardian.StrategyDecision

	// account id -> verdict of the queue currently holding it, so
	// membership checks stay O(1) while snapshots keep insertion order
	index map[string]models.Verdict
}

// NewQueues creates an empty queue pair
func NewQueues() *Queues {
	return &Queues{
		index: make(map[string]models.Verdict),
	}
}

// Enqueue appends a decision to the queue matching its verdict.
// AUTO_EXECUTE decisions are never queued.
func (q *Queues) Enqueue(decision guardian.StrategyDecision) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch decision.OverallVerdict {
	case models.VerdictApprovalRequired:
		q.approval = append(q.approval, decision)
		q.index[decision.AccountID] = models.VerdictApprovalRequired
	case models.VerdictHoldForReview:
		q.held = append(q.held, decision)
		q.index[decision.AccountID] = models.VerdictHoldForReview
	}
}

// Take removes and returns the decision for accountID from whichever queue
// holds it. The second return is false when neither queue has a match.
func (q *Queues) Take(accountID string) (guardian.StrategyDecision, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	verdict, ok := q.index[accountID]
	if !ok {
		return guardian.StrategyDecision{}, false
	}
	delete(q.index, accountID)

	if verdict == models.VerdictApprovalRequired {
		decision, rest := remove(q.approval, accountID)
		q.approval = rest
		return decision, true
	}
	decision, rest := remove(q.held, accountID)
	q.held = rest
	return decision, true
}

// Snapshot returns copies of both queues in insertion order
func (q *Queues) Snapshot() (pending, held []guardian.StrategyDecision) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending = make([]guardian.StrategyDecision, len(q.approval))
	copy(pending, q.approval)
	held = make([]guardian.StrategyDecision, len(q.held))
	copy(held, q.held)
	return pending, held
}

// Depths returns the current queue lengths
func (q *Queues) Depths() (pending, held int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.approval), len(q.held)
}

func remove(queue []guardian.StrategyDecision, accountID string) (guardian.StrategyDecision, []guardian.StrategyDecision) {
	for i, d := range queue {
		if d.AccountID == accountID {
			return d, append(queue[:i:i], queue[i+1:]...)
		}
	}
	// index said the decision is here; unreachable unless callers bypass
	// the Queues methods
	return guardian.StrategyDecision{}, queue
}
