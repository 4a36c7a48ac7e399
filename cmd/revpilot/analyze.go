package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rohankatakam/revenuepilot/internal/pipeline"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [accounts.yaml]",
	Short: "Run an account roster through the recovery pipeline",
	Long: `Analyzes every account in the roster for revenue risk, plans recovery
strategies for high-risk accounts, and executes the strategies the guardian
clears for automation. Strategies needing human approval are queued; pass
--interactive to review them from the terminal.

With no roster argument the bundled demo roster is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolP("interactive", "i", false, "review pending approvals after the run")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	rosterPath := "testdata/accounts.yaml"
	if len(args) > 0 {
		rosterPath = args[0]
	}
	accounts, err := loadAccounts(rosterPath)
	if err != nil {
		return err
	}

	application, err := buildApp(logger, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	result, err := application.orchestrator.Run(ctx, accounts)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	printRunResult(result)

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive && result.Gating.PendingApproval > 0 {
		if err := reviewPending(ctx, application); err != nil {
			return err
		}
	}

	return nil
}

func printRunResult(result *pipeline.RunResult) {
	fmt.Printf("\nRun %s\n", result.RunID)
	fmt.Printf("  Accounts analyzed:  %d\n", result.AccountsAnalyzed)
	fmt.Printf("  Auto-executed:      %d\n", result.Gating.AutoExecute)
	fmt.Printf("  Pending approval:   %d\n", result.Gating.PendingApproval)
	fmt.Printf("  Held for review:    %d\n", result.Gating.HeldForReview)
	fmt.Printf("  Execution failures: %d\n", result.Execution.Failed)

	if len(result.Gating.Queued) > 0 {
		fmt.Println("\nQueued strategies:")
		for _, decision := range result.Gating.Queued {
			fmt.Printf("  %-12s %-24s score %.2f  %s\n",
				decision.AccountID, decision.AccountName, decision.Score, decision.Verdict)
		}
	}
}

// reviewPending walks the approval queue, asking the operator to approve
// or reject each strategy in turn.
func reviewPending(ctx context.Context, application *app) error {
	reader := bufio.NewReader(os.Stdin)

	for {
		state := application.orchestrator.QueueSnapshot()
		if len(state.Pending) == 0 {
			break
		}
		decision := state.Pending[0]

		fmt.Printf("\n%s (%s) score %.2f, estimated recovery $%.2f\n",
			decision.AccountName, decision.AccountID,
			decision.OverallScore, decision.EstimatedRecovery)
		for _, step := range decision.Strategy.Steps {
			fmt.Printf("  %d. %s (%s)\n", step.Ordinal, step.Kind, step.Timing)
		}
		fmt.Print("Approve? [y/N]: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read approval input: %w", err)
		}
		approved := strings.EqualFold(strings.TrimSpace(line), "y")

		outcome, err := application.orchestrator.Reconcile(
			ctx, decision.AccountID, approved, "reviewed via CLI")
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", decision.AccountID, err)
		}
		fmt.Printf("-> %s\n", outcome.Status)
	}

	fmt.Println("\nApproval queue drained.")
	return nil
}
