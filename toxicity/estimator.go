// Package toxicity scores text for toxicity through an external estimator
// service. The estimator is an expensive shared resource: Shared hands out
// reference-counted handles so the components gating on toxicity (the
// restriction and the score modifier) reuse one instance and the service
// connection is torn down only when the last holder releases it.
package toxicity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/pkg/retry"
)

// Estimator scores text toxicity in the closed interval [0, 1].
type Estimator interface {
	Score(ctx context.Context, text string) (float64, error)
	Close(ctx context.Context) error
}

const defaultEstimatorTimeout = 10 * time.Second

// HTTPEstimator talks to a scoring service over HTTP. The service contract
// is a single POST endpoint taking {"text": ...} and answering
// {"toxicity": <float>}.
type HTTPEstimator struct {
	endpoint    string
	client      *http.Client
	retryConfig retry.Config
	logger      *slog.Logger
}

// HTTPOption configures an HTTPEstimator.
type HTTPOption func(*HTTPEstimator)

// WithEstimatorTimeout overrides the per-request timeout.
func WithEstimatorTimeout(timeout time.Duration) HTTPOption {
	return func(e *HTTPEstimator) {
		e.client.Timeout = timeout
	}
}

// WithEstimatorRetry overrides the backoff policy for transient failures.
func WithEstimatorRetry(cfg retry.Config) HTTPOption {
	return func(e *HTTPEstimator) {
		e.retryConfig = cfg
	}
}

// WithEstimatorLogger sets the logger for request diagnostics.
func WithEstimatorLogger(logger *slog.Logger) HTTPOption {
	return func(e *HTTPEstimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewHTTPEstimator builds an estimator against the service at endpoint.
func NewHTTPEstimator(endpoint string, opts ...HTTPOption) *HTTPEstimator {
	estimator := &HTTPEstimator{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: defaultEstimatorTimeout},
		retryConfig: retry.Quick(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(estimator)
	}
	estimator.logger = estimator.logger.With("component", "toxicity-estimator")
	return estimator
}

// Score asks the service for the toxicity of text.
func (e *HTTPEstimator) Score(ctx context.Context, text string) (float64, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return 0, errors.WrapInvalid(err, "HTTPEstimator", "Score", "request encoding")
	}

	return retry.DoWithResult(ctx, e.retryConfig, func() (float64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			e.endpoint, bytes.NewReader(payload))
		if err != nil {
			return 0, retry.NonRetryable(errors.WrapInvalid(err,
				"HTTPEstimator", "Score", "request creation"))
		}
		req.Header.Set("Content-Type", "application/json")

		start := time.Now()
		resp, err := e.client.Do(req)
		if err != nil {
			return 0, errors.WrapTransient(err, "HTTPEstimator", "Score", "request execution")
		}
		defer resp.Body.Close()
		e.logger.Debug("toxicity request",
			"status", resp.StatusCode,
			"duration", time.Since(start),
		)

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode <= 299:
			// fall through to decode
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return 0, errors.WrapTransient(
				fmt.Errorf("%w: status %d", errors.ErrServiceUnavailable, resp.StatusCode),
				"HTTPEstimator", "Score", "service response handling")
		default:
			return 0, retry.NonRetryable(errors.WrapInvalid(
				fmt.Errorf("unexpected status %d", resp.StatusCode),
				"HTTPEstimator", "Score", "service response handling"))
		}

		var out struct {
			Toxicity float64 `json:"toxicity"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return 0, retry.NonRetryable(errors.WrapInvalid(err,
				"HTTPEstimator", "Score", "response decoding"))
		}
		return out.Toxicity, nil
	})
}

// Close releases the estimator. The HTTP implementation holds no
// per-instance state beyond its connection pool.
func (e *HTTPEstimator) Close(context.Context) error {
	e.client.CloseIdleConnections()
	return nil
}
