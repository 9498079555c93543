package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ratesvc/internal/provider"
	"ratesvc/internal/resilience"
	"ratesvc/internal/service"
)

const dateLayout = "2006-01-02"

// LatestRatesResponse represents the latest rates for a base currency.
type LatestRatesResponse struct {
	Amount float64            `json:"amount" example:"1"`
	Base   string             `json:"base" example:"EUR"`
	Date   string             `json:"date" example:"2025-12-01"`
	Rates  map[string]float64 `json:"rates"`
}

// ConvertResponse represents the result of a currency conversion.
type ConvertResponse struct {
	From            string  `json:"from" example:"EUR"`
	To              string  `json:"to" example:"USD"`
	Amount          float64 `json:"amount" example:"100"`
	ConvertedAmount float64 `json:"convertedAmount" example:"108.32"`
	ConversionRate  float64 `json:"conversionRate" example:"1.0832"`
	Date            string  `json:"date" example:"2025-12-01"`
}

// HistoricalRateResponse represents the rates for one day of a historical range.
type HistoricalRateResponse struct {
	Date  string             `json:"date" example:"2024-01-01"`
	Rates map[string]float64 `json:"rates"`
}

// HistoricalResponse represents one page of a historical range.
type HistoricalResponse struct {
	BaseCurrency string                   `json:"baseCurrency" example:"EUR"`
	StartDate    string                   `json:"startDate" example:"2024-01-01"`
	EndDate      string                   `json:"endDate" example:"2024-01-31"`
	Page         int                      `json:"page" example:"1"`
	PageSize     int                      `json:"pageSize" example:"10"`
	TotalRecords int                      `json:"totalRecords" example:"31"`
	Rates        []HistoricalRateResponse `json:"rates"`
}

// RefreshResponse acknowledges an accepted refresh request.
type RefreshResponse struct {
	Provider string `json:"provider" example:"frankfurter"`
	Base     string `json:"base" example:"EUR"`
	Status   string `json:"status" example:"queued"`
}

// HandleGetLatestRates serves GET /api/v1/rates/{provider}.
func HandleGetLatestRates(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		base := r.URL.Query().Get("baseCurrency")
		if base == "" {
			base = "EUR"
		}

		snapshot, err := svc.GetLatestRates(r.Context(), providerName, base)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, LatestRatesResponse{
			Amount: 1,
			Base:   snapshot.Base,
			Date:   snapshot.AsOf.Format(dateLayout),
			Rates:  snapshot.Rates,
		})
	}
}

// HandleConvert serves GET /api/v1/rates/{provider}/convert.
func HandleConvert(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		from := r.URL.Query().Get("from")
		to := r.URL.Query().Get("to")
		amountStr := r.URL.Query().Get("amount")
		if from == "" || to == "" || amountStr == "" {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "from, to and amount query params are required"})
			return
		}
		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "amount must be a number"})
			return
		}

		result, err := svc.Convert(r.Context(), providerName, from, to, amount)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ConvertResponse{
			From:            result.From,
			To:              result.To,
			Amount:          result.Amount,
			ConvertedAmount: result.ConvertedAmount,
			ConversionRate:  result.ConversionRate,
			Date:            result.Date.Format(dateLayout),
		})
	}
}

// HandleGetHistoricalRates serves GET /api/v1/rates/{provider}/historical.
func HandleGetHistoricalRates(svc service.RateServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		base := r.URL.Query().Get("baseCurrency")
		if base == "" {
			base = "EUR"
		}

		start, err := time.Parse(dateLayout, r.URL.Query().Get("startDate"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid date range. Provide valid start and end dates."})
			return
		}
		end, err := time.Parse(dateLayout, r.URL.Query().Get("endDate"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid date range. Provide valid start and end dates."})
			return
		}

		page := queryInt(r, "page", 1)
		pageSize := queryInt(r, "pageSize", 10)

		result, err := svc.GetHistoricalRates(r.Context(), providerName, base, start, end, page, pageSize)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		rates := make([]HistoricalRateResponse, 0, len(result.Rates))
		for _, hr := range result.Rates {
			rates = append(rates, HistoricalRateResponse{
				Date:  hr.Date.Format(dateLayout),
				Rates: hr.Rates,
			})
		}

		writeJSON(w, http.StatusOK, HistoricalResponse{
			BaseCurrency: result.Base,
			StartDate:    result.Start.Format(dateLayout),
			EndDate:      result.End.Format(dateLayout),
			Page:         result.Page,
			PageSize:     result.PageSize,
			TotalRecords: result.TotalRecords,
			Rates:        rates,
		})
	}
}

// RefreshEnqueuer queues a background refresh of the latest rates.
type RefreshEnqueuer interface {
	EnqueueRefresh(ctx context.Context, providerName, base string) error
}

// HandleRequestRefresh serves POST /api/v1/rates/{provider}/refresh.
func HandleRequestRefresh(enq RefreshEnqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerName := chi.URLParam(r, "provider")
		base := r.URL.Query().Get("baseCurrency")
		if base == "" {
			base = "EUR"
		}

		if err := enq.EnqueueRefresh(r.Context(), providerName, base); err != nil {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
			return
		}

		writeJSON(w, http.StatusAccepted, RefreshResponse{
			Provider: providerName,
			Base:     base,
			Status:   "queued",
		})
	}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// writeServiceError maps service-layer errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrUnknownProvider),
		errors.Is(err, provider.ErrInvalidRange),
		errors.Is(err, service.ErrInvalidCurrency),
		errors.Is(err, service.ErrExcludedCurrency):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error: "The exchange rates service is temporarily unavailable. Please try again later.",
		})
	case errors.Is(err, provider.ErrUpstreamUnavailable):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "Unable to fetch exchange rates at this time."})
	case errors.Is(err, service.ErrRateNotFound),
		errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
	}
}
