package signals

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// PostgresStore serves signals from PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore connects to PostgreSQL
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) OverdueInvoices(ctx context.Context, accountID string) (models.OverdueInvoices, error) {
	var row struct {
		Count       int     `db:"overdue_count"`
		Amount      float64 `db:"amount"`
		DaysOverdue int     `db:"days_overdue"`
	}
	query := `
		SELECT COUNT(*) AS overdue_count,
			COALESCE(SUM(amount), 0) AS amount,
			COALESCE(EXTRACT(DAY FROM NOW() - MIN(due_date))::int, 0) AS days_overdue
		FROM invoices
		WHERE account_id = $1 AND paid = FALSE AND due_date < NOW()
	`

	if err := s.db.GetContext(ctx, &row, query, accountID); err != nil {
		return models.OverdueInvoices{}, fmt.Errorf("query overdue invoices: %w", err)
	}
	if row.Count == 0 {
		return models.OverdueInvoices{}, ErrNotFound
	}

	var invoiceIDs []string
	idQuery := `
		SELECT invoice_id FROM invoices
		WHERE account_id = $1 AND paid = FALSE AND due_date < NOW()
		ORDER BY due_date
	`
	if err := s.db.SelectContext(ctx, &invoiceIDs, idQuery, accountID); err != nil {
		return models.OverdueInvoices{}, fmt.Errorf("query overdue invoice ids: %w", err)
	}

	return models.OverdueInvoices{
		HasOverdue:  true,
		Amount:      row.Amount,
		DaysOverdue: row.DaysOverdue,
		InvoiceIDs:  invoiceIDs,
	}, nil
}

func (s *PostgresStore) UsageDrop(ctx context.Context, accountID string) (models.UsageDrop, error) {
	var drop models.UsageDrop
	query := `
		SELECT drop_percent, period, previous_period
		FROM usage_drops
		WHERE account_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`

	err := s.db.GetContext(ctx, &drop, query, accountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.UsageDrop{}, ErrNotFound
		}
		return models.UsageDrop{}, fmt.Errorf("query usage drop: %w", err)
	}

	return drop, nil
}

func (s *PostgresStore) PaymentDelays(ctx context.Context, accountID string) (models.PaymentDelays, error) {
	var row struct {
		Late            int     `db:"late_payments"`
		AverageDaysLate float64 `db:"average_days_late"`
	}
	query := `
		SELECT COUNT(*) FILTER (WHERE paid_at > due_at) AS late_payments,
			COALESCE(AVG(EXTRACT(DAY FROM paid_at - due_at)) FILTER (WHERE paid_at > due_at), 0) AS average_days_late
		FROM payments
		WHERE account_id = $1 AND paid_at > NOW() - INTERVAL '6 months'
	`

	if err := s.db.GetContext(ctx, &row, query, accountID); err != nil {
		return models.PaymentDelays{}, fmt.Errorf("query payment delays: %w", err)
	}
	if row.Late == 0 {
		return models.PaymentDelays{}, ErrNotFound
	}

	return models.PaymentDelays{
		LatePaymentsLast6M: row.Late,
		AverageDaysLate:    row.AverageDaysLate,
	}, nil
}
