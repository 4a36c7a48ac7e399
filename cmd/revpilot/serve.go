package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/rohankatakam/revenuepilot/internal/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the analysis pipeline over HTTP. Accounts posted to /api/analyze
run through the full pipeline; strategies needing approval are reviewed via
/api/pending-approvals and /api/approve-strategy.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := buildApp(logger, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	api := &apiServer{app: application, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", api.health)
	mux.HandleFunc("POST /api/analyze", api.analyze)
	mux.HandleFunc("GET /api/pending-approvals", api.pendingApprovals)
	mux.HandleFunc("POST /api/approve-strategy", api.approveStrategy)
	mux.HandleFunc("GET /api/metrics", api.metrics)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("HTTP API listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("HTTP API stopped")
	return nil
}

type apiServer struct {
	app    *app
	logger *logrus.Logger
}

type analyzeRequest struct {
	Accounts []models.Account `json:"accounts"`
}

type approvalRequest struct {
	AccountID string `json:"account_id"`
	Approved  bool   `json:"approved"`
	Notes     string `json:"notes,omitempty"`
}

func (s *apiServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "RevenuePilot",
		"stages":  []string{"fetch", "assess", "plan", "gate", "execute", "audit"},
	})
}

func (s *apiServer) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	result, err := s.app.orchestrator.Run(r.Context(), req.Accounts)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoAccounts) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.WithError(err).Error("Pipeline run failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"data":    result,
		"message": fmt.Sprintf("Analysed %d account(s)", len(req.Accounts)),
	})
}

func (s *apiServer) pendingApprovals(w http.ResponseWriter, r *http.Request) {
	state := s.app.orchestrator.QueueSnapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pending": state.Pending,
		"held":    state.Held,
	})
}

func (s *apiServer) approveStrategy(w http.ResponseWriter, r *http.Request) {
	var req approvalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	outcome, err := s.app.orchestrator.Reconcile(r.Context(), req.AccountID, req.Approved, req.Notes)
	if err != nil {
		s.logger.WithError(err).WithField("account_id", req.AccountID).Error("Reconcile failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if outcome.Status == pipeline.ReconcileNotFound {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("no pending strategy found for account %q", req.AccountID))
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (s *apiServer) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.auditor.Metrics())
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
