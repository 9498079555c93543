// Package worker implements background task handlers for rate refreshing.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"ratesvc/internal/service"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskTypeRefreshRates is the Asynq task type for a latest-rates refresh.
const TaskTypeRefreshRates = "rates:refresh"

// RefreshPayload identifies which provider and base currency to refresh.
type RefreshPayload struct {
	Provider string `json:"provider"`
	Base     string `json:"base"`
}

// NewRefreshHandler returns a function to handle rate refresh tasks.
func NewRefreshHandler(svc service.RateServiceInterface, logger *zap.SugaredLogger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Errorw("Invalid task payload", "type", t.Type(), "error", err)
			return nil
		}

		if err := svc.RefreshLatest(ctx, payload.Provider, payload.Base); err != nil {
			logger.Errorw("Rate refresh failed", "provider", payload.Provider, "base", payload.Base, "error", err)
			return err
		}

		logger.Infow("Rate refresh completed", "provider", payload.Provider, "base", payload.Base)
		return nil
	}
}

// AsynqEnqueuer enqueues refresh tasks to an Asynq queue with specific
// configurations for retries and timeouts.
type AsynqEnqueuer struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// NewAsynqEnqueuer creates a new AsynqEnqueuer with the given client, retry limit, and task timeout duration.
func NewAsynqEnqueuer(client *asynq.Client, maxRetry int, timeout time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

// EnqueueRefresh enqueues a rate refresh task for the given provider and base currency.
func (e *AsynqEnqueuer) EnqueueRefresh(ctx context.Context, providerName, base string) error {
	data, err := json.Marshal(RefreshPayload{Provider: providerName, Base: base})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeRefreshRates, data,
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)

	_, err = e.client.EnqueueContext(ctx, task)
	return err
}
