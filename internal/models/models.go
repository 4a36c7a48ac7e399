package models

import (
	"time"
)

// RiskLevel represents the account risk severity
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// Verdict is the gating disposition of an action or strategy
type Verdict string

const (
	VerdictAutoExecute      Verdict = "AUTO_EXECUTE"
	VerdictApprovalRequired Verdict = "HUMAN_APPROVAL_REQUIRED"
	VerdictHoldForReview    Verdict = "HOLD_FOR_REVIEW"
)

// ActionKind identifies the type of an outbound action step
type ActionKind string

const (
	ActionMessageSend     ActionKind = "message_send"
	ActionChatPost        ActionKind = "chat_post"
	ActionRecordUpdate    ActionKind = "record_update"
	ActionEscalationRoute ActionKind = "escalation_route"
	ActionIncentiveOffer  ActionKind = "incentive_offer"
	ActionFeeWaiver       ActionKind = "fee_waiver"
	ActionGenericOffer    ActionKind = "generic_offer"
	ActionCalendarInvite  ActionKind = "calendar_invite"
)

// Priority is the declared urgency of a strategy
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SignalKind identifies the dominant risk driver for an account
type SignalKind string

const (
	SignalOverdueInvoice  SignalKind = "overdue_invoice"
	SignalUsageDrop       SignalKind = "usage_drop"
	SignalContractRenewal SignalKind = "contract_renewal"
	SignalDefault         SignalKind = "default"
)

// Account is the caller-supplied description of a revenue account
type Account struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	ContractEnd string  `json:"contract_end,omitempty" yaml:"contract_end,omitempty"` // YYYY-MM-DD
	AnnualValue float64 `json:"annual_value,omitempty" yaml:"annual_value,omitempty"`

	// Optional embedded signal data, used by the fetcher when no backing
	// store is configured (demo rosters, tests).
	OverdueInvoices *OverdueInvoices `json:"overdue_invoices,omitempty" yaml:"overdue_invoices,omitempty"`
	UsageDrop       *UsageDrop       `json:"usage_drop,omitempty" yaml:"usage_drop,omitempty"`
	PaymentDelays   *PaymentDelays   `json:"payment_delays,omitempty" yaml:"payment_delays,omitempty"`
}

// OverdueInvoices summarizes unpaid invoices past their due date
type OverdueInvoices struct {
	HasOverdue  bool     `json:"has_overdue" yaml:"has_overdue" db:"has_overdue"`
	Amount      float64  `json:"amount" yaml:"amount" db:"amount"`
	DaysOverdue int      `json:"days_overdue" yaml:"days_overdue" db:"days_overdue"`
	InvoiceIDs  []string `json:"invoice_ids,omitempty" yaml:"invoice_ids,omitempty"`
}

// UsageDrop summarizes a decline in product usage between two periods
type UsageDrop struct {
	DropPercent    float64 `json:"usage_drop_percent" yaml:"usage_drop_percent" db:"drop_percent"`
	Period         string  `json:"period" yaml:"period" db:"period"`
	PreviousPeriod string  `json:"previous_period" yaml:"previous_period" db:"previous_period"`
}

// PaymentDelays summarizes historical payment behaviour
type PaymentDelays struct {
	LatePaymentsLast6M int     `json:"late_payments_last_6m" yaml:"late_payments_last_6m" db:"late_payments_last_6m"`
	AverageDaysLate    float64 `json:"average_days_late" yaml:"average_days_late" db:"average_days_late"`
}

// ContractStatus describes contract-expiry proximity derived during assessment
type ContractStatus struct {
	ContractEnd  string `json:"contract_end_date,omitempty"`
	DaysUntilEnd *int   `json:"days_until_end,omitempty"`
	EndingSoon   bool   `json:"ending_soon"`
}

// SignalBundle is one account's fetched risk signals
type SignalBundle struct {
	AccountID       string          `json:"account_id"`
	AccountName     string          `json:"account_name"`
	ContractEnd     string          `json:"contract_end,omitempty"`
	AnnualValue     float64         `json:"annual_value"`
	OverdueInvoices OverdueInvoices `json:"overdue_invoices"`
	UsageDrop       UsageDrop       `json:"usage_drop"`
	PaymentDelays   PaymentDelays   `json:"payment_delays"`
}

// RiskAssessment is the per-account output of the risk assessor.
// Guardian consumes it as the account risk context during gating.
type RiskAssessment struct {
	AccountID           string         `json:"account_id"`
	AccountName         string         `json:"account_name"`
	AnnualValue         float64        `json:"annual_value"`
	RiskScore           float64        `json:"risk_score"`
	RiskLevel           RiskLevel      `json:"risk_level"`
	RecoveryProbability float64        `json:"recovery_probability"`
	EscalationRequired  bool           `json:"escalation_required"`
	Signals             AccountSignals `json:"signals"`
}

// AccountSignals groups the signal views attached to an assessment
type AccountSignals struct {
	Overdue        OverdueInvoices `json:"overdue"`
	UsageDrop      UsageDrop       `json:"usage_drop"`
	ContractEnding ContractStatus  `json:"contract_ending"`
	PaymentDelays  PaymentDelays   `json:"payment_delays"`
}

// ActionStep is one atomic outbound action within a strategy.
// Steps are immutable once produced by the planner.
type ActionStep struct {
	Ordinal   int        `json:"step"`
	Kind      ActionKind `json:"action"`
	Recipient string     `json:"recipient,omitempty"`
	Channel   string     `json:"channel,omitempty"`
	Tone      string     `json:"tone,omitempty"`
	Timing    string     `json:"timing"`
	Template  string     `json:"template,omitempty"`
	Message   string     `json:"message,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	OfferType string     `json:"offer_type,omitempty"`
	Terms     string     `json:"terms,omitempty"`
}

// Strategy is a recovery plan for one at-risk account
type Strategy struct {
	AccountID         string       `json:"account_id"`
	AccountName       string       `json:"account_name"`
	RiskLevel         RiskLevel    `json:"risk_level"`
	PrimarySignal     SignalKind   `json:"primary_signal"`
	Type              string       `json:"type"`
	Steps             []ActionStep `json:"steps"`
	EstimatedRecovery float64      `json:"estimated_recovery"`
	Priority          Priority     `json:"priority"`
	TimelineDays      int          `json:"timeline_days"`
}

// StepResult records the outcome of executing one action step
type StepResult struct {
	Ordinal   int        `json:"step"`
	Kind      ActionKind `json:"action"`
	Status    string     `json:"status"` // "success" or "failed"
	Timestamp time.Time  `json:"timestamp"`
}

// StrategyResult records the outcome of executing one strategy
type StrategyResult struct {
	AccountID   string       `json:"account_id"`
	AccountName string       `json:"account_name"`
	Log         []StepResult `json:"execution_log"`
	Status      string       `json:"status"` // "completed" or "partial"
}

// ExecutionError records an isolated per-strategy execution failure
type ExecutionError struct {
	AccountID string `json:"account_id"`
	Error     string `json:"error"`
}

// ExecutionSummary is the execution collaborator's aggregate result
type ExecutionSummary struct {
	AutoExecuted    int              `json:"auto_executed"`
	PendingApproval int              `json:"pending_approval"`
	Failed          int              `json:"failed"`
	Results         []StrategyResult `json:"results"`
	Errors          []ExecutionError `json:"errors"`
}
