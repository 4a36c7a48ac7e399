package signals

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rohankatakam/revenuepilot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	overdue map[string]models.OverdueInvoices
	usage   map[string]models.UsageDrop
	delays  map[string]models.PaymentDelays
	err     error
}

func (s *fakeStore) OverdueInvoices(_ context.Context, accountID string) (models.OverdueInvoices, error) {
	if s.err != nil {
		return models.OverdueInvoices{}, s.err
	}
	if v, ok := s.overdue[accountID]; ok {
		return v, nil
	}
	return models.OverdueInvoices{}, ErrNotFound
}

func (s *fakeStore) UsageDrop(_ context.Context, accountID string) (models.UsageDrop, error) {
	if s.err != nil {
		return models.UsageDrop{}, s.err
	}
	if v, ok := s.usage[accountID]; ok {
		return v, nil
	}
	return models.UsageDrop{}, ErrNotFound
}

func (s *fakeStore) PaymentDelays(_ context.Context, accountID string) (models.PaymentDelays, error) {
	if s.err != nil {
		return models.PaymentDelays{}, s.err
	}
	if v, ok := s.delays[accountID]; ok {
		return v, nil
	}
	return models.PaymentDelays{}, ErrNotFound
}

func (s *fakeStore) Close() error { return nil }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFetchEmbeddedSignals(t *testing.T) {
	fetcher := NewFetcher(quietLogger(), nil)

	accounts := []models.Account{
		{
			ID:          "acc_001",
			Name:        "TechCorp Solutions",
			ContractEnd: "2026-03-15",
			AnnualValue: 120000,
			OverdueInvoices: &models.OverdueInvoices{
				HasOverdue:  true,
				Amount:      45000,
				DaysOverdue: 67,
				InvoiceIDs:  []string{"INV-2025-1123"},
			},
			UsageDrop: &models.UsageDrop{DropPercent: 35},
		},
	}

	bundles, err := fetcher.Fetch(context.Background(), accounts)
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	assert.Equal(t, "acc_001", bundles[0].AccountID)
	assert.Equal(t, "TechCorp Solutions", bundles[0].AccountName)
	assert.Equal(t, 120000.0, bundles[0].AnnualValue)
	assert.True(t, bundles[0].OverdueInvoices.HasOverdue)
	assert.Equal(t, 67, bundles[0].OverdueInvoices.DaysOverdue)
	assert.Equal(t, 35.0, bundles[0].UsageDrop.DropPercent)
}

func TestFetchMissingDataDefaults(t *testing.T) {
	fetcher := NewFetcher(quietLogger(), nil)

	bundles, err := fetcher.Fetch(context.Background(), []models.Account{{ID: "acc_bare", Name: "Bare Inc"}})
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	assert.False(t, bundles[0].OverdueInvoices.HasOverdue)
	assert.Zero(t, bundles[0].OverdueInvoices.Amount)
	assert.Zero(t, bundles[0].UsageDrop.DropPercent)
	assert.Zero(t, bundles[0].PaymentDelays.LatePaymentsLast6M)
}

func TestFetchUnknownAccountIdentity(t *testing.T) {
	fetcher := NewFetcher(quietLogger(), nil)

	bundles, err := fetcher.Fetch(context.Background(), []models.Account{{}})
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	assert.Equal(t, "unknown", bundles[0].AccountID)
	assert.Equal(t, "Unknown", bundles[0].AccountName)
}

func TestFetchStoreOverlaysEmbedded(t *testing.T) {
	store := &fakeStore{
		overdue: map[string]models.OverdueInvoices{
			"acc_001": {HasOverdue: true, Amount: 9000, DaysOverdue: 12},
		},
	}
	fetcher := NewFetcher(quietLogger(), store)

	accounts := []models.Account{{
		ID:   "acc_001",
		Name: "TechCorp Solutions",
		OverdueInvoices: &models.OverdueInvoices{
			HasOverdue: true, Amount: 45000, DaysOverdue: 67,
		},
		UsageDrop: &models.UsageDrop{DropPercent: 35},
	}}

	bundles, err := fetcher.Fetch(context.Background(), accounts)
	require.NoError(t, err)

	// Store rows win over embedded data
	assert.Equal(t, 9000.0, bundles[0].OverdueInvoices.Amount)
	assert.Equal(t, 12, bundles[0].OverdueInvoices.DaysOverdue)
	// Embedded data survives where the store has nothing
	assert.Equal(t, 35.0, bundles[0].UsageDrop.DropPercent)
}

func TestFetchStoreFailureAborts(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	fetcher := NewFetcher(quietLogger(), store)

	_, err := fetcher.Fetch(context.Background(), []models.Account{{ID: "acc_001", Name: "TechCorp"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch signals for acc_001")
}
