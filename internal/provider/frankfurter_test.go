package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ratesvc/internal/correlation"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *FrankfurterProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFrankfurterProvider(srv.URL, nil, 5, zap.NewNop().Sugar())
}

func TestFrankfurterGetLatestRates(t *testing.T) {
	var gotPath, gotQuery string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"EUR","date":"2025-12-01","rates":{"USD":1.0832,"GBP":0.86}}`))
	})

	snapshot, err := p.GetLatestRates(context.Background(), "EUR")
	require.NoError(t, err)

	assert.Equal(t, "/latest", gotPath)
	assert.Equal(t, "base=EUR", gotQuery)
	assert.Equal(t, "EUR", snapshot.Base)
	assert.Equal(t, "2025-12-01", snapshot.AsOf.Format("2006-01-02"))
	assert.Equal(t, 1.0832, snapshot.Rates["USD"])
	assert.Equal(t, 0.86, snapshot.Rates["GBP"])
}

func TestFrankfurterForwardsCorrelationID(t *testing.T) {
	var gotHeader string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(correlation.Header)
		_, _ = w.Write([]byte(`{"base":"EUR","date":"2025-12-01","rates":{}}`))
	})

	ctx := correlation.With(context.Background(), "corr-123")
	_, err := p.GetLatestRates(ctx, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "corr-123", gotHeader)
}

func TestFrankfurterGeneratesCorrelationID(t *testing.T) {
	var gotHeader string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(correlation.Header)
		_, _ = w.Write([]byte(`{"base":"EUR","date":"2025-12-01","rates":{}}`))
	})

	_, err := p.GetLatestRates(context.Background(), "EUR")
	require.NoError(t, err)
	assert.NotEmpty(t, gotHeader, "a correlation ID must be generated when the context has none")
}

func TestFrankfurterUpstreamErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		})

		_, err := p.GetLatestRates(context.Background(), "EUR")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("malformed body", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"base":`))
		})

		_, err := p.GetLatestRates(context.Background(), "EUR")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("connection refused", func(t *testing.T) {
		p := NewFrankfurterProvider("http://127.0.0.1:1", nil, 1, zap.NewNop().Sugar())

		_, err := p.GetLatestRates(context.Background(), "EUR")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})
}

func TestFrankfurterGetHistoricalRates(t *testing.T) {
	t.Run("one call per day with range params", func(t *testing.T) {
		var calls atomic.Int32
		var gotQuery string
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			gotQuery = r.URL.RawQuery
			_, _ = w.Write([]byte(`{"base":"EUR","date":"2024-01-01","rates":{"USD":1.1}}`))
		})

		rates, err := p.GetHistoricalRates(context.Background(), "EUR", day("2024-01-01"), day("2024-01-03"))
		require.NoError(t, err)

		assert.Len(t, rates, 3)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, "start_date=2024-01-01&end_date=2024-01-03&base=EUR", gotQuery)
		for i, hr := range rates {
			assert.Equal(t, day("2024-01-01").AddDate(0, 0, i), hr.Date)
			assert.Equal(t, 1.1, hr.Rates["USD"])
		}
	})

	t.Run("partial range on mid-iteration failure", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 3 {
				http.Error(w, "upstream down", http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"base":"EUR","date":"2024-01-01","rates":{"USD":1.1}}`))
		})

		rates, err := p.GetHistoricalRates(context.Background(), "EUR", day("2024-01-01"), day("2024-01-05"))
		require.NoError(t, err)

		assert.Len(t, rates, 2, "only the days before the failure are returned")
		assert.Equal(t, int32(3), calls.Load(), "iteration stops at the first failed day")
	})

	t.Run("invalid range", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request should be made for an invalid range")
		})

		_, err := p.GetHistoricalRates(context.Background(), "EUR", day("2024-01-05"), day("2024-01-01"))
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestParseDate(t *testing.T) {
	parsed := parseDate("2024-06-15")
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), parsed)

	fallback := parseDate("garbage")
	assert.WithinDuration(t, time.Now().UTC(), fallback, time.Minute)
}

func TestFrankfurterPassesThroughContextCancellation(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.GetLatestRates(ctx, "EUR")
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("cancelled request = %v, want wrapped ErrUpstreamUnavailable", err)
	}
}
