// Package service implements the core business logic for rate retrieval,
// conversion, and historical aggregation, with response caching in front of
// the providers.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ratesvc/internal/cache"
	"ratesvc/internal/config"
	"ratesvc/internal/correlation"
	"ratesvc/internal/provider"
)

// RateServiceInterface defines the operations exposed to the HTTP layer.
type RateServiceInterface interface {
	GetLatestRates(ctx context.Context, providerName, base string) (*provider.RateSnapshot, error)
	Convert(ctx context.Context, providerName, from, to string, amount float64) (*ConversionResult, error)
	GetHistoricalRates(ctx context.Context, providerName, base string, start, end time.Time, page, pageSize int) (*HistoricalResult, error)
	RefreshLatest(ctx context.Context, providerName, base string) error
}

// ConversionResult is the outcome of a currency conversion.
type ConversionResult struct {
	From            string    `json:"from"`
	To              string    `json:"to"`
	Amount          float64   `json:"amount"`
	ConvertedAmount float64   `json:"convertedAmount"`
	ConversionRate  float64   `json:"conversionRate"`
	Date            time.Time `json:"date"`
}

// HistoricalResult is one page of an aggregated historical range.
type HistoricalResult struct {
	Base         string
	Start        time.Time
	End          time.Time
	Page         int
	PageSize     int
	TotalRecords int
	Rates        []provider.HistoricalRate
}

// TTLPolicy holds the sliding window and absolute lifetime for one cache operation.
type TTLPolicy struct {
	Sliding  time.Duration
	Absolute time.Duration
}

// RateService orchestrates provider resolution, caching, and pagination.
type RateService struct {
	providers     *provider.Factory
	latestCache   cache.Cache[provider.RateSnapshot]
	historyCache  cache.Cache[[]provider.HistoricalRate]
	log           *zap.SugaredLogger
	latestTTL     TTLPolicy
	historicalTTL TTLPolicy
}

// NewRateService creates a new RateService.
func NewRateService(
	providers *provider.Factory,
	latestCache cache.Cache[provider.RateSnapshot],
	historyCache cache.Cache[[]provider.HistoricalRate],
	logger *zap.SugaredLogger,
	cacheCfg config.CacheConfig,
) *RateService {
	return &RateService{
		providers:    providers,
		latestCache:  latestCache,
		historyCache: historyCache,
		log:          logger,
		latestTTL: TTLPolicy{
			Sliding:  time.Duration(cacheCfg.LatestSlidingMin) * time.Minute,
			Absolute: time.Duration(cacheCfg.LatestAbsoluteMin) * time.Minute,
		},
		historicalTTL: TTLPolicy{
			Sliding:  time.Duration(cacheCfg.HistoricalSlidingMin) * time.Minute,
			Absolute: time.Duration(cacheCfg.HistoricalAbsoluteMin) * time.Minute,
		},
	}
}

func latestCacheKey(providerName, base string) string {
	return fmt.Sprintf("latest:%s:%s", providerName, base)
}

func convertCacheKey(providerName, from string) string {
	return fmt.Sprintf("rates:%s:%s", providerName, from)
}

func historicalCacheKey(providerName, base string, start, end time.Time) string {
	return fmt.Sprintf("historical:%s:%s:%s:%s",
		providerName, base, start.Format("20060102"), end.Format("20060102"))
}

// GetLatestRates returns the current rates for base from the named provider,
// serving from cache within the latest-rates TTL policy.
func (s *RateService) GetLatestRates(ctx context.Context, providerName, base string) (*provider.RateSnapshot, error) {
	base, err := normalizeCurrency(base)
	if err != nil {
		return nil, err
	}

	prov, err := s.providers.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	key := latestCacheKey(providerName, base)
	if snapshot, ok := s.latestCache.Get(ctx, key); ok {
		return &snapshot, nil
	}

	snapshot, err := prov.GetLatestRates(ctx, base)
	if err != nil {
		return nil, err
	}

	s.latestCache.Set(ctx, key, *snapshot, s.latestTTL.Sliding, s.latestTTL.Absolute)
	s.log.Infow("Fetched latest rates",
		"provider", providerName,
		"base", base,
		"correlation_id", correlation.FromContext(ctx),
	)
	return snapshot, nil
}

// Convert converts amount from one currency to another using the named
// provider's latest rates. Conversions involving an excluded currency are
// rejected before any provider, cache, or upstream work happens.
func (s *RateService) Convert(ctx context.Context, providerName, from, to string, amount float64) (*ConversionResult, error) {
	from, err := normalizeCurrency(from)
	if err != nil {
		return nil, err
	}
	to, err = normalizeCurrency(to)
	if err != nil {
		return nil, err
	}

	if IsExcludedCurrency(from) || IsExcludedCurrency(to) {
		return nil, ErrExcludedCurrency
	}

	prov, err := s.providers.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	key := convertCacheKey(providerName, from)
	snapshot, ok := s.latestCache.Get(ctx, key)
	if !ok {
		fetched, err := prov.GetLatestRates(ctx, from)
		if err != nil {
			return nil, err
		}
		snapshot = *fetched
		s.latestCache.Set(ctx, key, snapshot, s.latestTTL.Sliding, s.latestTTL.Absolute)
		s.log.Infow("Fetched rates for conversion",
			"provider", providerName,
			"from", from,
			"correlation_id", correlation.FromContext(ctx),
		)
	}

	rate, ok := snapshot.Rates[to]
	if !ok {
		return nil, fmt.Errorf("%w: no rate for %s", ErrRateNotFound, to)
	}

	return &ConversionResult{
		From:            from,
		To:              to,
		Amount:          amount,
		ConvertedAmount: amount * rate,
		ConversionRate:  rate,
		Date:            snapshot.AsOf,
	}, nil
}

// GetHistoricalRates aggregates day-by-day rates over [start, end], caches the
// full sequence, and returns the requested page. An empty aggregation result
// is reported as ErrNotFound and is not cached.
func (s *RateService) GetHistoricalRates(ctx context.Context, providerName, base string, start, end time.Time, page, pageSize int) (*HistoricalResult, error) {
	base, err := normalizeCurrency(base)
	if err != nil {
		return nil, err
	}
	if start.IsZero() || end.IsZero() || start.After(end) {
		return nil, provider.ErrInvalidRange
	}

	prov, err := s.providers.Resolve(providerName)
	if err != nil {
		return nil, err
	}

	key := historicalCacheKey(providerName, base, start, end)
	rates, ok := s.historyCache.Get(ctx, key)
	if !ok {
		rates, err = prov.GetHistoricalRates(ctx, base, start, end)
		if err != nil {
			return nil, err
		}
		if len(rates) == 0 {
			return nil, fmt.Errorf("%w: no historical data for %s", ErrNotFound, base)
		}
		s.historyCache.Set(ctx, key, rates, s.historicalTTL.Sliding, s.historicalTTL.Absolute)
		s.log.Infow("Fetched historical rates",
			"provider", providerName,
			"base", base,
			"days", len(rates),
			"correlation_id", correlation.FromContext(ctx),
		)
	}

	pageRates, total := Paginate(rates, page, pageSize)
	return &HistoricalResult{
		Base:         base,
		Start:        start,
		End:          end,
		Page:         page,
		PageSize:     pageSize,
		TotalRecords: total,
		Rates:        pageRates,
	}, nil
}

// RefreshLatest fetches the latest rates unconditionally and refreshes both
// cache entries that serve them. Used by the background refresh worker.
func (s *RateService) RefreshLatest(ctx context.Context, providerName, base string) error {
	base, err := normalizeCurrency(base)
	if err != nil {
		return err
	}

	prov, err := s.providers.Resolve(providerName)
	if err != nil {
		return err
	}

	snapshot, err := prov.GetLatestRates(ctx, base)
	if err != nil {
		return err
	}

	s.latestCache.Set(ctx, latestCacheKey(providerName, base), *snapshot, s.latestTTL.Sliding, s.latestTTL.Absolute)
	s.latestCache.Set(ctx, convertCacheKey(providerName, base), *snapshot, s.latestTTL.Sliding, s.latestTTL.Absolute)
	s.log.Infow("Refreshed latest rates",
		"provider", providerName,
		"base", base,
		"correlation_id", correlation.FromContext(ctx),
	)
	return nil
}
