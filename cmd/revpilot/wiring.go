package main

import (
	"fmt"
	"os"

	"github.com/rohankatakam/revenuepilot/internal/assess"
	"github.com/rohankatakam/revenuepilot/internal/config"
	"github.com/rohankatakam/revenuepilot/internal/guardian"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/rohankatakam/revenuepilot/internal/outreach"
	"github.com/rohankatakam/revenuepilot/internal/pipeline"
	"github.com/rohankatakam/revenuepilot/internal/report"
	"github.com/rohankatakam/revenuepilot/internal/signals"
	"github.com/rohankatakam/revenuepilot/internal/strategy"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// app bundles the wired pipeline and the pieces the commands need to
// reach past the orchestrator (cumulative metrics, store shutdown).
type app struct {
	orchestrator *pipeline.Orchestrator
	auditor      *report.Auditor
	store        signals.Store
}

// buildApp wires collaborators from configuration
func buildApp(logger *logrus.Logger, cfg *config.Config) (*app, error) {
	var store signals.Store
	switch cfg.Storage.Type {
	case "postgres":
		s, err := signals.NewPostgresStore(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open signal store: %w", err)
		}
		store = s
	case "sqlite":
		s, err := signals.NewSQLiteStore(cfg.Storage.LocalPath, logger)
		if err != nil {
			return nil, fmt.Errorf("open signal store: %w", err)
		}
		store = s
	case "", "none":
		// Embedded account data only
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}

	guardianConfig := guardian.DefaultConfig()
	guardianConfig.AutoExecuteBelow = cfg.Guardian.AutoExecuteBelow
	guardianConfig.HoldAt = cfg.Guardian.HoldAt

	assessConfig := assess.DefaultConfig()
	assessConfig.HighThreshold = cfg.Assess.HighThreshold
	assessConfig.MediumThreshold = cfg.Assess.MediumThreshold
	assessConfig.EscalationThreshold = cfg.Assess.EscalationThreshold

	outreachConfig := &outreach.Config{
		MaxConcurrent:  cfg.Outreach.MaxConcurrent,
		SendsPerSecond: cfg.Outreach.SendsPerSecond,
		SendBurst:      cfg.Outreach.SendBurst,
	}

	auditConfig := report.DefaultConfig()
	auditConfig.TrailPath = cfg.Audit.TrailPath

	pipelineConfig := &pipeline.Config{
		HighRiskThreshold: cfg.Pipeline.HighRiskThreshold,
	}

	auditor := report.NewAuditor(logger, auditConfig)
	orchestrator := pipeline.NewOrchestrator(
		logger,
		pipelineConfig,
		guardian.NewEngine(logger, guardianConfig),
		signals.NewFetcher(logger, store),
		assess.NewAssessor(logger, assessConfig),
		strategy.NewPlanner(logger),
		outreach.NewExecutor(logger, outreachConfig, nil),
		auditor,
	)

	return &app{
		orchestrator: orchestrator,
		auditor:      auditor,
		store:        store,
	}, nil
}

// Close releases the signal store if one was opened
func (a *app) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// loadAccounts reads an account roster from a YAML file
func loadAccounts(path string) ([]models.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var roster struct {
		Accounts []models.Account `yaml:"accounts"`
	}
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}

	return roster.Accounts, nil
}
