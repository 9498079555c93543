// Package provider implements external rate providers for fetching currency exchange rates.
package provider

import (
	"context"
	"errors"
	"time"
)

// CurrencyProvider defines an interface for fetching exchange rates from one upstream source.
type CurrencyProvider interface {
	GetLatestRates(ctx context.Context, base string) (*RateSnapshot, error)
	GetHistoricalRates(ctx context.Context, base string, start, end time.Time) ([]HistoricalRate, error)
}

// RateSnapshot holds the rates for a base currency as of a single date.
// Providers return it fully built; it is never mutated afterwards.
type RateSnapshot struct {
	Base  string             `json:"base"`
	AsOf  time.Time          `json:"as_of"`
	Rates map[string]float64 `json:"rates"`
}

// HistoricalRate holds the rates fetched for one calendar day.
type HistoricalRate struct {
	Date  time.Time          `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// ErrUpstreamUnavailable indicates the upstream could not be reached or
// returned a non-success status, after retries were exhausted.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrInvalidRange indicates a historical request where start is after end.
var ErrInvalidRange = errors.New("invalid date range")

// ErrUnknownProvider indicates a provider name with no registered implementation.
var ErrUnknownProvider = errors.New("unknown provider")
