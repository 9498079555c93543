// Package resilience wraps outbound HTTP calls with retry and circuit-breaker policies.
package resilience

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// ErrCircuitOpen indicates the circuit breaker rejected the call without
// attempting the network. Callers must distinguish it from an upstream
// failure so a "temporarily unavailable" response can be returned instead
// of "not found".
var ErrCircuitOpen = errors.New("circuit open")

// errServerError marks a 500-class response so it is handled like a transport failure.
var errServerError = errors.New("upstream server error")

// Config holds the retry and circuit-breaker policy parameters.
type Config struct {
	// MaxAttempts is the total number of tries per call, including the first.
	MaxAttempts int
	// BackoffBase is the delay before the first retry; each subsequent delay doubles.
	BackoffBase time.Duration
	// BreakerFailures is the number of consecutive handled failures that opens the circuit.
	BreakerFailures int
	// BreakerCooldown is how long the circuit stays open before a half-open trial.
	BreakerCooldown time.Duration
}

// DefaultConfig returns the production policy: 5 attempts with 2s/4s/8s/16s
// backoff, circuit opens after 3 consecutive failures for 30 seconds.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     5,
		BackoffBase:     2 * time.Second,
		BreakerFailures: 3,
		BreakerCooldown: 30 * time.Second,
	}
}

var _ http.RoundTripper = (*Transport)(nil)

// Transport is an http.RoundTripper that retries transport failures and
// 500-class responses with exponential backoff, behind a shared circuit
// breaker. One Transport instance is shared by every call to a given
// upstream, so the breaker state is process-wide per provider.
//
// Every retry attempt passes through the breaker and counts toward its
// consecutive-failure tally, so the breaker can open mid-retry-sequence
// and abort the remaining retries with ErrCircuitOpen.
type Transport struct {
	base    http.RoundTripper
	cfg     Config
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     *zap.SugaredLogger
}

// NewTransport creates a Transport around base (http.DefaultTransport if nil).
func NewTransport(name string, base http.RoundTripper, cfg Config, logger *zap.SugaredLogger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	t := &Transport{
		base: base,
		cfg:  cfg,
		log:  logger,
	}
	t.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // single trial call while half-open
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("Circuit state change", "upstream", name, "from", from.String(), "to", to.String())
		},
	})
	return t
}

// RoundTrip sends the request, retrying per the configured policy. Requests
// are expected to be bodyless GETs, which are safe to re-issue.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	attempt := 0

	operation := func() error {
		attempt++
		r, err := t.breaker.Execute(func() (*http.Response, error) {
			return t.attempt(req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				// No retries are consumed while the circuit is open.
				return backoff.Permanent(fmt.Errorf("%s: %w", req.URL.Host, ErrCircuitOpen))
			}
			t.log.Warnw("Upstream attempt failed",
				"url", req.URL.String(),
				"attempt", attempt,
				"error", err,
			)
			return err
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, t.newBackOff(req)); err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt performs one network call. A 500-class response is converted into
// an error so it counts as a handled failure for both retry and breaker.
func (t *Transport) attempt(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		// Drain so the connection can be reused across retries.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
	}
	return resp, nil
}

func (t *Transport) newBackOff(req *http.Request) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.cfg.BackoffBase
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	retries := t.cfg.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), req.Context())
}
