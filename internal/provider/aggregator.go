package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ratesvc/internal/correlation"
)

// DayFetcher retrieves the rates for one calendar day of a historical range.
type DayFetcher interface {
	FetchDay(ctx context.Context, base string, day, start, end time.Time) (*RateSnapshot, error)
}

// HistoricalAggregator drives day-by-day historical fetches over a date range.
// Days are fetched sequentially; on the first failed day the aggregator stops
// and returns whatever was accumulated so far. The fail-fast policy depends on
// ordered, one-at-a-time failure detection, so the loop must not be parallelized.
type HistoricalAggregator struct {
	fetcher DayFetcher
	log     *zap.SugaredLogger
}

// NewHistoricalAggregator creates a new HistoricalAggregator.
func NewHistoricalAggregator(fetcher DayFetcher, logger *zap.SugaredLogger) *HistoricalAggregator {
	return &HistoricalAggregator{
		fetcher: fetcher,
		log:     logger,
	}
}

// Collect fetches rates for each day in [start, end] inclusive. A per-day
// failure is swallowed into a fail-fast stop: the accumulated prefix is
// returned with a nil error, and the caller treats an empty result as
// "not found". Only an invalid range is reported as an error, before any
// fetch is attempted.
func (a *HistoricalAggregator) Collect(ctx context.Context, base string, start, end time.Time) ([]HistoricalRate, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	var rates []HistoricalRate
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		snapshot, err := a.fetcher.FetchDay(ctx, base, day, start, end)
		if err != nil {
			a.log.Warnw("Historical fetch stopped",
				"base", base,
				"date", day.Format(dateLayout),
				"error", err,
				"correlation_id", correlation.FromContext(ctx),
			)
			break
		}
		rates = append(rates, HistoricalRate{Date: day, Rates: snapshot.Rates})
	}
	return rates, nil
}
