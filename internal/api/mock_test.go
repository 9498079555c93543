package api

import (
	"context"
	"time"

	"ratesvc/internal/provider"
	"ratesvc/internal/service"
)

// mockRateService implements service.RateServiceInterface with injectable behavior.
type mockRateService struct {
	getLatestRatesFunc     func(ctx context.Context, providerName, base string) (*provider.RateSnapshot, error)
	convertFunc            func(ctx context.Context, providerName, from, to string, amount float64) (*service.ConversionResult, error)
	getHistoricalRatesFunc func(ctx context.Context, providerName, base string, start, end time.Time, page, pageSize int) (*service.HistoricalResult, error)
	refreshLatestFunc      func(ctx context.Context, providerName, base string) error
}

func (m *mockRateService) GetLatestRates(ctx context.Context, providerName, base string) (*provider.RateSnapshot, error) {
	return m.getLatestRatesFunc(ctx, providerName, base)
}

func (m *mockRateService) Convert(ctx context.Context, providerName, from, to string, amount float64) (*service.ConversionResult, error) {
	return m.convertFunc(ctx, providerName, from, to, amount)
}

func (m *mockRateService) GetHistoricalRates(ctx context.Context, providerName, base string, start, end time.Time, page, pageSize int) (*service.HistoricalResult, error) {
	return m.getHistoricalRatesFunc(ctx, providerName, base, start, end, page, pageSize)
}

func (m *mockRateService) RefreshLatest(ctx context.Context, providerName, base string) error {
	return m.refreshLatestFunc(ctx, providerName, base)
}

// mockEnqueuer implements RefreshEnqueuer.
type mockEnqueuer struct {
	enqueueFunc func(ctx context.Context, providerName, base string) error
	calls       int
}

func (m *mockEnqueuer) EnqueueRefresh(ctx context.Context, providerName, base string) error {
	m.calls++
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, providerName, base)
	}
	return nil
}
