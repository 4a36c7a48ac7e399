package signals

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// SQLiteStore serves signals from SQLite (for local/development)
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore opens (and if needed creates) a SQLite signal database
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		invoice_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		amount REAL NOT NULL,
		due_date DATETIME NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS usage_drops (
		account_id TEXT NOT NULL,
		drop_percent REAL NOT NULL,
		period TEXT,
		previous_period TEXT,
		recorded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payments (
		payment_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		due_at DATETIME NOT NULL,
		paid_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_account ON invoices(account_id);
	CREATE INDEX IF NOT EXISTS idx_usage_drops_account ON usage_drops(account_id);
	CREATE INDEX IF NOT EXISTS idx_payments_account ON payments(account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) OverdueInvoices(ctx context.Context, accountID string) (models.OverdueInvoices, error) {
	var row struct {
		Count       int     `db:"overdue_count"`
		Amount      float64 `db:"amount"`
		DaysOverdue int     `db:"days_overdue"`
	}
	query := `
		SELECT COUNT(*) AS overdue_count,
			COALESCE(SUM(amount), 0) AS amount,
			COALESCE(CAST(julianday('now') - julianday(MIN(due_date)) AS INTEGER), 0) AS days_overdue
		FROM invoices
		WHERE account_id = ? AND paid = FALSE AND due_date < datetime('now')
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
		WHERE account_id = ? AND paid = FALSE AND due_date < datetime('now')
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

func (s *SQLiteStore) UsageDrop(ctx context.Context, accountID string) (models.UsageDrop, error) {
	var drop models.UsageDrop
	query := `
		SELECT drop_percent, period, previous_period
		FROM usage_drops
		WHERE account_id = ?
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

func (s *SQLiteStore) PaymentDelays(ctx context.Context, accountID string) (models.PaymentDelays, error) {
	var row struct {
		Late            int     `db:"late_payments"`
		AverageDaysLate float64 `db:"average_days_late"`
	}
	query := `
		SELECT COUNT(*) AS late_payments,
			COALESCE(AVG(julianday(paid_at) - julianday(due_at)), 0) AS average_days_late
		FROM payments
		WHERE account_id = ?
			AND paid_at > due_at
			AND paid_at > datetime('now', '-6 months')
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
