// Package signals fetches per-account revenue risk signals. Signals come
// from a backing store when one is configured, or from data embedded on
// the account (demo rosters, tests). Missing data degrades to zero-value
// defaults rather than failing the fetch.
package signals

import (
	"context"
	"errors"
	"fmt"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrNotFound indicates the store has no signal rows for an account
var ErrNotFound = errors.New("not found")

// Store backs the fetcher with per-account signal queries
type Store interface {
	OverdueInvoices(ctx context.Context, accountID string) (models.OverdueInvoices, error)
	UsageDrop(ctx context.Context, accountID string) (models.UsageDrop, error)
	PaymentDelays(ctx context.Context, accountID string) (models.PaymentDelays, error)
	Close() error
}

// Fetcher assembles signal bundles for the pipeline
type Fetcher struct {
	logger *logrus.Logger
	store  Store // nil means embedded/default signals only
}

// NewFetcher creates a fetcher. store may be nil.
func NewFetcher(logger *logrus.Logger, store Store) *Fetcher {
	return &Fetcher{
		logger: logger,
		store:  store,
	}
}

// Fetch builds one signal bundle per account. Store lookups that find
// nothing fall back to account-embedded data, then to defaults; genuine
// store failures abort the fetch.
func (f *Fetcher) Fetch(ctx context.Context, accounts []models.Account) ([]models.SignalBundle, error) {
	bundles := make([]models.SignalBundle, 0, len(accounts))

	for _, account := range accounts {
		bundle := models.SignalBundle{
			AccountID:   account.ID,
			AccountName: account.Name,
			ContractEnd: account.ContractEnd,
			AnnualValue: account.AnnualValue,
		}
		if bundle.AccountID == "" {
			bundle.AccountID = "unknown"
		}
		if bundle.AccountName == "" {
			bundle.AccountName = "Unknown"
		}

		if account.OverdueInvoices != nil {
			bundle.OverdueInvoices = *account.OverdueInvoices
		}
		if account.UsageDrop != nil {
			bundle.UsageDrop = *account.UsageDrop
		}
		if account.PaymentDelays != nil {
			bundle.PaymentDelays = *account.PaymentDelays
		}

		if f.store != nil {
			if err := f.fillFromStore(ctx, account, &bundle); err != nil {
				return nil, fmt.Errorf("fetch signals for %s: %w", account.ID, err)
			}
		}

		bundles = append(bundles, bundle)
	}

	f.logger.WithFields(logrus.Fields{
		"accounts": len(bundles),
	}).Info("Risk signals fetched")

	return bundles, nil
}

// fillFromStore overlays store-backed signals onto the bundle. Embedded
// account data already in the bundle is only replaced when the store has
// rows for the account.
func (f *Fetcher) fillFromStore(ctx context.Context, account models.Account, bundle *models.SignalBundle) error {
	overdue, err := f.store.OverdueInvoices(ctx, account.ID)
	switch {
	case err == nil:
		bundle.OverdueInvoices = overdue
	case !errors.Is(err, ErrNotFound):
		return err
	}

	usage, err := f.store.UsageDrop(ctx, account.ID)
	switch {
	case err == nil:
		bundle.UsageDrop = usage
	case !errors.Is(err, ErrNotFound):
		return err
	}

	delays, err := f.store.PaymentDelays(ctx, account.ID)
	switch {
	case err == nil:
		bundle.PaymentDelays = delays
	case !errors.Is(err, ErrNotFound):
		return err
	}

	return nil
}
