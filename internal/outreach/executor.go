// Package outreach executes cleared recovery strategies against the
// outbound channel integrations. Strategies run concurrently; a failure in
// one never aborts its siblings, and every outcome is collected before the
// aggregate result is reported.
package outreach

import (
	"context"
	"sync"
	"time"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Dispatcher sends a single action step over its channel integration
type Dispatcher interface {
	Send(ctx context.Context, step models.ActionStep, strategy models.Strategy) error
}

// Config holds execution configuration
type Config struct {
	// MaxConcurrent bounds how many strategies execute at once
	MaxConcurrent int
	// SendsPerSecond rate-limits outbound sends across all strategies
	SendsPerSecond float64
	SendBurst      int
}

// DefaultConfig returns default execution configuration
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:  4,
		SendsPerSecond: 10,
		SendBurst:      5,
	}
}

// Executor runs strategies through a Dispatcher
type Executor struct {
	logger     *logrus.Logger
	config     *Config
	dispatcher Dispatcher
}

// NewExecutor creates a new executor. A nil dispatcher falls back to the
// logging dispatcher, which records sends without external integrations.
func NewExecutor(logger *logrus.Logger, config *Config, dispatcher Dispatcher) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	if dispatcher == nil {
		dispatcher = NewLogDispatcher(logger, config)
	}
	return &Executor{
		logger:     logger,
		config:     config,
		dispatcher: dispatcher,
	}
}

// Execute runs all strategies concurrently and collects every outcome.
// Per-strategy failures are isolated into the summary's error list; the
// returned error is reserved for failures of the execution machinery
// itself, which currently cannot occur.
func (e *Executor) Execute(ctx context.Context, strategies []models.Strategy) (models.ExecutionSummary, error) {
	results := make([]*models.StrategyResult, len(strategies))
	failures := make([]*models.ExecutionError, len(strategies))
	var mu sync.Mutex

	g := &errgroup.Group{}
	if e.config.MaxConcurrent > 0 {
		g.SetLimit(e.config.MaxConcurrent)
	}

	for i, strategy := range strategies {
		g.Go(func() error {
			result, err := e.executeStrategy(ctx, strategy)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.WithFields(logrus.Fields{
					"account": strategy.AccountID,
					"error":   err,
				}).Error("Strategy execution failed")
				failures[i] = &models.ExecutionError{
					AccountID: strategy.AccountID,
					Error:     err.Error(),
				}
				return nil
			}
			results[i] = &result
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors; failures land in the slots

	summary := models.ExecutionSummary{
		Results: []models.StrategyResult{},
		Errors:  []models.ExecutionError{},
	}
	for i := range strategies {
		if failures[i] != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, *failures[i])
			continue
		}
		summary.AutoExecuted++
		summary.Results = append(summary.Results, *results[i])
	}

	e.logger.WithFields(logrus.Fields{
		"executed": summary.AutoExecuted,
		"failed":   summary.Failed,
	}).Info("Execution summary")

	return summary, nil
}

// executeStrategy runs every step in order. Step-level send failures are
// recorded in the execution log and downgrade the strategy status to
// partial; a context failure aborts the whole strategy.
func (e *Executor) executeStrategy(ctx context.Context, strategy models.Strategy) (models.StrategyResult, error) {
	result := models.StrategyResult{
		AccountID:   strategy.AccountID,
		AccountName: strategy.AccountName,
		Status:      "completed",
	}

	for _, step := range strategy.Steps {
		if err := ctx.Err(); err != nil {
			return models.StrategyResult{}, err
		}

		status := "success"
		if err := e.dispatcher.Send(ctx, step, strategy); err != nil {
			e.logger.WithFields(logrus.Fields{
				"account": strategy.AccountID,
				"step":    step.Ordinal,
				"action":  step.Kind,
				"error":   err,
			}).Warn("Step failed")
			status = "failed"
			result.Status = "partial"
		}

		result.Log = append(result.Log, models.StepResult{
			Ordinal:   step.Ordinal,
			Kind:      step.Kind,
			Status:    status,
			Timestamp: time.Now().UTC(),
		})
	}

	return result, nil
}
