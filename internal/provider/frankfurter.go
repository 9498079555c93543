package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ratesvc/internal/correlation"
	"ratesvc/internal/resilience"
)

var _ CurrencyProvider = (*FrankfurterProvider)(nil)

const dateLayout = "2006-01-02"

// FrankfurterProvider fetches rates from the Frankfurter API.
type FrankfurterProvider struct {
	baseURL string
	client  *http.Client
	log     *zap.SugaredLogger
	agg     *HistoricalAggregator
}

// NewFrankfurterProvider creates a new FrankfurterProvider. The transport is
// expected to be a resilience.Transport so that every outbound call goes
// through the shared retry and circuit-breaker policies.
func NewFrankfurterProvider(baseURL string, transport http.RoundTripper, timeoutSec int, logger *zap.SugaredLogger) *FrankfurterProvider {
	if baseURL == "" {
		baseURL = "https://api.frankfurter.dev/v1"
	}
	p := &FrankfurterProvider{
		baseURL: baseURL,
		client: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(timeoutSec) * time.Second,
		},
		log: logger,
	}
	p.agg = NewHistoricalAggregator(p, logger)
	return p
}

type frankfurterResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// GetLatestRates retrieves the current rates for the given base currency.
func (p *FrankfurterProvider) GetLatestRates(ctx context.Context, base string) (*RateSnapshot, error) {
	reqURL := fmt.Sprintf("%s/latest?base=%s", p.baseURL, base)
	result, err := p.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return &RateSnapshot{
		Base:  result.Base,
		AsOf:  parseDate(result.Date),
		Rates: result.Rates,
	}, nil
}

// GetHistoricalRates collects day-by-day rates over [start, end] inclusive.
// The result may be a prefix of the requested range if an upstream error
// occurs mid-iteration; see HistoricalAggregator.
func (p *FrankfurterProvider) GetHistoricalRates(ctx context.Context, base string, start, end time.Time) ([]HistoricalRate, error) {
	return p.agg.Collect(ctx, base, start, end)
}

// FetchDay retrieves the rates for a single day of a historical range.
// One outbound call is made per requested day; the full range bounds are
// passed along as query parameters, matching the upstream wire contract.
func (p *FrankfurterProvider) FetchDay(ctx context.Context, base string, day, start, end time.Time) (*RateSnapshot, error) {
	reqURL := fmt.Sprintf("%s/latest?start_date=%s&end_date=%s&base=%s",
		p.baseURL, start.Format(dateLayout), end.Format(dateLayout), base)
	result, err := p.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return &RateSnapshot{
		Base:  result.Base,
		AsOf:  day,
		Rates: result.Rates,
	}, nil
}

func (p *FrankfurterProvider) fetch(ctx context.Context, reqURL string) (*frankfurterResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("frankfurter API request creation failed: %w", err)
	}

	corrID := correlation.FromContextOrNew(ctx)
	req.Header.Set(correlation.Header, corrID)
	p.log.Infow("Calling Frankfurter API", "url", reqURL, "correlation_id", corrID)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("frankfurter API request failed: %v: %w", err, ErrUpstreamUnavailable)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("frankfurter API returned status %d: %s: %w", resp.StatusCode, string(body), ErrUpstreamUnavailable)
	}

	var result frankfurterResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode frankfurter API response: %v: %w", err, ErrUpstreamUnavailable)
	}
	return &result, nil
}

// parseDate falls back to the current time when the response date is absent or malformed.
func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}
