package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"ratesvc/internal/cache"
	"ratesvc/internal/config"
	"ratesvc/internal/provider"
)

// Stub provider with per-call counters.
type stubProvider struct {
	latestCalls     int
	historicalCalls int
	latestFunc      func(base string) (*provider.RateSnapshot, error)
	historicalFunc  func(base string, start, end time.Time) ([]provider.HistoricalRate, error)
}

func (s *stubProvider) GetLatestRates(_ context.Context, base string) (*provider.RateSnapshot, error) {
	s.latestCalls++
	return s.latestFunc(base)
}

func (s *stubProvider) GetHistoricalRates(_ context.Context, base string, start, end time.Time) ([]provider.HistoricalRate, error) {
	s.historicalCalls++
	return s.historicalFunc(base, start, end)
}

var testCacheCfg = config.CacheConfig{
	LatestSlidingMin:      5,
	LatestAbsoluteMin:     60,
	HistoricalSlidingMin:  10,
	HistoricalAbsoluteMin: 120,
}

func newTestService(prov provider.CurrencyProvider) *RateService {
	factory := provider.NewFactory(map[string]provider.CurrencyProvider{"stub": prov})
	return NewRateService(
		factory,
		cache.NewMemory[provider.RateSnapshot](),
		cache.NewMemory[[]provider.HistoricalRate](),
		zap.NewNop().Sugar(),
		testCacheCfg,
	)
}

func eurSnapshot() *provider.RateSnapshot {
	return &provider.RateSnapshot{
		Base: "EUR",
		AsOf: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		Rates: map[string]float64{
			"USD": 1.08,
			"GBP": 0.86,
		},
	}
}

func TestGetLatestRates(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches then serves from cache", func(t *testing.T) {
		prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
			return eurSnapshot(), nil
		}}
		svc := newTestService(prov)

		first, err := svc.GetLatestRates(ctx, "stub", "EUR")
		if err != nil {
			t.Fatalf("first call failed: %v", err)
		}
		second, err := svc.GetLatestRates(ctx, "stub", "EUR")
		if err != nil {
			t.Fatalf("second call failed: %v", err)
		}

		if prov.latestCalls != 1 {
			t.Errorf("provider called %d times, want 1 (second call served from cache)", prov.latestCalls)
		}
		if first.Rates["USD"] != second.Rates["USD"] {
			t.Errorf("cached snapshot differs from fetched one")
		}
	})

	t.Run("lowercase base is normalized", func(t *testing.T) {
		prov := &stubProvider{latestFunc: func(base string) (*provider.RateSnapshot, error) {
			if base != "EUR" {
				t.Errorf("provider received base %q, want EUR", base)
			}
			return eurSnapshot(), nil
		}}
		svc := newTestService(prov)

		if _, err := svc.GetLatestRates(ctx, "stub", "eur"); err != nil {
			t.Fatalf("GetLatestRates failed: %v", err)
		}
	})

	t.Run("provider name is case insensitive", func(t *testing.T) {
		prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
			return eurSnapshot(), nil
		}}
		svc := newTestService(prov)

		if _, err := svc.GetLatestRates(ctx, "STUB", "EUR"); err != nil {
			t.Fatalf("GetLatestRates failed: %v", err)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		svc := newTestService(&stubProvider{})

		_, err := svc.GetLatestRates(ctx, "nope", "EUR")
		if !errors.Is(err, provider.ErrUnknownProvider) {
			t.Errorf("err = %v, want ErrUnknownProvider", err)
		}
	})

	t.Run("invalid currency", func(t *testing.T) {
		svc := newTestService(&stubProvider{})

		_, err := svc.GetLatestRates(ctx, "stub", "EURO")
		if !errors.Is(err, ErrInvalidCurrency) {
			t.Errorf("err = %v, want ErrInvalidCurrency", err)
		}
	})

	t.Run("upstream errors are not cached", func(t *testing.T) {
		fail := true
		prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
			if fail {
				return nil, provider.ErrUpstreamUnavailable
			}
			return eurSnapshot(), nil
		}}
		svc := newTestService(prov)

		if _, err := svc.GetLatestRates(ctx, "stub", "EUR"); !errors.Is(err, provider.ErrUpstreamUnavailable) {
			t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
		}

		fail = false
		if _, err := svc.GetLatestRates(ctx, "stub", "EUR"); err != nil {
			t.Fatalf("recovery call failed: %v", err)
		}
		if prov.latestCalls != 2 {
			t.Errorf("provider called %d times, want 2 (the failure must not be cached)", prov.latestCalls)
		}
	})
}

func TestConvert(t *testing.T) {
	ctx := context.Background()

	t.Run("conversion math", func(t *testing.T) {
		prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
			return eurSnapshot(), nil
		}}
		svc := newTestService(prov)

		result, err := svc.Convert(ctx, "stub", "EUR", "USD", 100)
		if err != nil {
			t.Fatalf("Convert failed: %v", err)
		}

		if result.ConversionRate != 1.08 {
			t.Errorf("ConversionRate = %v, want 1.08", result.ConversionRate)
		}
		if result.ConvertedAmount != 108 {
			t.Errorf("ConvertedAmount = %v, want 108", result.ConvertedAmount)
		}
		if result.From != "EUR" || result.To != "USD" || result.Amount != 100 {
			t.Errorf("unexpected echo fields: %+v", result)
		}
	})

	t.Run("second conversion served from cache", func(t *testing.T) {
		prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
			return eurSnapshot(), nil
		}}
		svc := newTestService(prov)

		if _, err := svc.Convert(ctx, "stub", "EUR", "USD", 100); err != nil {
			t.Fatalf("first Convert failed: %v", err)
		}
		if _, err := svc.Convert(ctx, "stub", "EUR", "GBP", 50); err != nil {
			t.Fatalf("second Convert failed: %v", err)
		}
		if prov.latestCalls != 1 {
			t.Errorf("provider called %d times, want 1 (same source currency)", prov.latestCalls)
		}
	})

	t.Run("excluded currencies rejected before any work", func(t *testing.T) {
		for _, excluded := range []string{"TRY", "PLN", "THB", "MXN", "try", "mxn"} {
			prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
				return eurSnapshot(), nil
			}}
			svc := newTestService(prov)

			_, err := svc.Convert(ctx, "stub", "EUR", excluded, 100)
			if !errors.Is(err, ErrExcludedCurrency) {
				t.Errorf("Convert(EUR -> %s) = %v, want ErrExcludedCurrency", excluded, err)
			}
			_, err = svc.Convert(ctx, "stub", excluded, "EUR", 100)
			if !errors.Is(err, ErrExcludedCurrency) {
				t.Errorf("Convert(%s -> EUR) = %v, want ErrExcludedCurrency", excluded, err)
			}
			if prov.latestCalls != 0 {
				t.Errorf("provider was called %d times for excluded currency %s, want 0", prov.latestCalls, excluded)
			}
		}
	})

	t.Run("missing target rate", func(t *testing.T) {
		prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
			return eurSnapshot(), nil
		}}
		svc := newTestService(prov)

		_, err := svc.Convert(ctx, "stub", "EUR", "JPY", 100)
		if !errors.Is(err, ErrRateNotFound) {
			t.Errorf("err = %v, want ErrRateNotFound", err)
		}
	})
}

func TestGetHistoricalRates(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	manyDays := func(n int) []provider.HistoricalRate {
		rates := make([]provider.HistoricalRate, n)
		for i := range rates {
			rates[i] = provider.HistoricalRate{
				Date:  start.AddDate(0, 0, i),
				Rates: map[string]float64{"USD": 1.1},
			}
		}
		return rates
	}

	t.Run("pagination over the full range", func(t *testing.T) {
		prov := &stubProvider{historicalFunc: func(string, time.Time, time.Time) ([]provider.HistoricalRate, error) {
			return manyDays(25), nil
		}}
		svc := newTestService(prov)

		result, err := svc.GetHistoricalRates(ctx, "stub", "EUR", start, start.AddDate(0, 0, 24), 2, 10)
		if err != nil {
			t.Fatalf("GetHistoricalRates failed: %v", err)
		}

		if result.TotalRecords != 25 {
			t.Errorf("TotalRecords = %d, want 25", result.TotalRecords)
		}
		if len(result.Rates) != 10 {
			t.Fatalf("page has %d entries, want 10", len(result.Rates))
		}
		if !result.Rates[0].Date.Equal(start.AddDate(0, 0, 10)) {
			t.Errorf("page 2 starts at %v, want day 11", result.Rates[0].Date)
		}
	})

	t.Run("full sequence cached, pages served without refetch", func(t *testing.T) {
		prov := &stubProvider{historicalFunc: func(string, time.Time, time.Time) ([]provider.HistoricalRate, error) {
			return manyDays(25), nil
		}}
		svc := newTestService(prov)

		end := start.AddDate(0, 0, 24)
		if _, err := svc.GetHistoricalRates(ctx, "stub", "EUR", start, end, 1, 10); err != nil {
			t.Fatalf("page 1 failed: %v", err)
		}
		if _, err := svc.GetHistoricalRates(ctx, "stub", "EUR", start, end, 3, 10); err != nil {
			t.Fatalf("page 3 failed: %v", err)
		}
		if prov.historicalCalls != 1 {
			t.Errorf("provider called %d times, want 1 (pages come from the cached sequence)", prov.historicalCalls)
		}
	})

	t.Run("empty result is not found and not cached", func(t *testing.T) {
		prov := &stubProvider{historicalFunc: func(string, time.Time, time.Time) ([]provider.HistoricalRate, error) {
			return nil, nil
		}}
		svc := newTestService(prov)

		end := start.AddDate(0, 0, 4)
		_, err := svc.GetHistoricalRates(ctx, "stub", "EUR", start, end, 1, 10)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}

		_, _ = svc.GetHistoricalRates(ctx, "stub", "EUR", start, end, 1, 10)
		if prov.historicalCalls != 2 {
			t.Errorf("provider called %d times, want 2 (empty results must not be cached)", prov.historicalCalls)
		}
	})

	t.Run("invalid range", func(t *testing.T) {
		svc := newTestService(&stubProvider{})

		_, err := svc.GetHistoricalRates(ctx, "stub", "EUR", start, start.AddDate(0, 0, -1), 1, 10)
		if !errors.Is(err, provider.ErrInvalidRange) {
			t.Errorf("err = %v, want ErrInvalidRange", err)
		}

		_, err = svc.GetHistoricalRates(ctx, "stub", "EUR", time.Time{}, start, 1, 10)
		if !errors.Is(err, provider.ErrInvalidRange) {
			t.Errorf("zero start err = %v, want ErrInvalidRange", err)
		}
	})
}

func TestRefreshLatest(t *testing.T) {
	ctx := context.Background()

	prov := &stubProvider{latestFunc: func(string) (*provider.RateSnapshot, error) {
		return eurSnapshot(), nil
	}}
	svc := newTestService(prov)

	if err := svc.RefreshLatest(ctx, "stub", "EUR"); err != nil {
		t.Fatalf("RefreshLatest failed: %v", err)
	}
	if prov.latestCalls != 1 {
		t.Fatalf("provider called %d times, want 1", prov.latestCalls)
	}

	// Both read paths are now warm: neither triggers another upstream call.
	if _, err := svc.GetLatestRates(ctx, "stub", "EUR"); err != nil {
		t.Fatalf("GetLatestRates failed: %v", err)
	}
	if _, err := svc.Convert(ctx, "stub", "EUR", "USD", 10); err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if prov.latestCalls != 1 {
		t.Errorf("provider called %d times after refresh, want 1 (refresh warms both caches)", prov.latestCalls)
	}
}

func TestIsValidCurrencyCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"USD", true},
		{"EUR", true},
		{"MXN", true},
		{"usd", true},   // lowercase is accepted and normalized
		{"US", false},   // too short
		{"USDA", false}, // too long
		{"US1", false},  // contains number
		{"US$", false},  // contains special char
		{"", false},     // empty
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			result := IsValidCurrencyCode(tc.code)
			if result != tc.valid {
				t.Errorf("IsValidCurrencyCode(%q) = %v, want %v", tc.code, result, tc.valid)
			}
		})
	}
}

func TestIsExcludedCurrency(t *testing.T) {
	for _, code := range []string{"TRY", "PLN", "THB", "MXN", "try", "Mxn"} {
		if !IsExcludedCurrency(code) {
			t.Errorf("IsExcludedCurrency(%q) = false, want true", code)
		}
	}
	for _, code := range []string{"EUR", "USD", "GBP"} {
		if IsExcludedCurrency(code) {
			t.Errorf("IsExcludedCurrency(%q) = true, want false", code)
		}
	}
}
