package service

import (
	"errors"
	"strings"
)

// ErrInvalidCurrency indicates a currency code that is not three ASCII letters.
var ErrInvalidCurrency = errors.New("invalid currency code format")

// ErrExcludedCurrency indicates a conversion involving a currency from the excluded set.
var ErrExcludedCurrency = errors.New("currency conversion involving TRY, PLN, THB, and MXN is not allowed")

// ErrRateNotFound indicates the target currency is absent from an otherwise successful response.
var ErrRateNotFound = errors.New("rate not found")

// ErrNotFound indicates the requested data produced zero usable results.
var ErrNotFound = errors.New("not found")

// excludedCurrencies are rejected for conversion before any cache or upstream work.
var excludedCurrencies = map[string]struct{}{
	"TRY": {},
	"PLN": {},
	"THB": {},
	"MXN": {},
}

// IsExcludedCurrency reports whether conversion involving code is disallowed.
func IsExcludedCurrency(code string) bool {
	_, ok := excludedCurrencies[strings.ToUpper(code)]
	return ok
}

// IsValidCurrencyCode checks whether a string is a valid 3-letter currency code.
func IsValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	code = strings.ToUpper(code)
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func normalizeCurrency(code string) (string, error) {
	if !IsValidCurrencyCode(code) {
		return "", ErrInvalidCurrency
	}
	return strings.ToUpper(code), nil
}
