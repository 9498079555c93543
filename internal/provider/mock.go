package provider

import (
	"context"
	"time"
)

var _ CurrencyProvider = (*MockProvider)(nil)

// MockProvider returns fixed rates without any network calls. It is registered
// under the "mock" name so clients can exercise the API without hitting a live
// upstream, and serves as a fallback during upstream outages.
type MockProvider struct{}

// NewMockProvider creates a new MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// GetLatestRates returns a static snapshot for the given base currency.
func (p *MockProvider) GetLatestRates(_ context.Context, base string) (*RateSnapshot, error) {
	return &RateSnapshot{
		Base: base,
		AsOf: time.Now().UTC(),
		Rates: map[string]float64{
			"USD": 1.0,
			"EUR": 0.85,
		},
	}, nil
}

// GetHistoricalRates returns two static entries, one at each end of the range.
func (p *MockProvider) GetHistoricalRates(_ context.Context, base string, start, end time.Time) ([]HistoricalRate, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}
	return []HistoricalRate{
		{
			Date:  start,
			Rates: map[string]float64{"USD": 1.2, "EUR": 0.9},
		},
		{
			Date:  end,
			Rates: map[string]float64{"USD": 1.3, "EUR": 0.88},
		},
	}, nil
}
