package reasoning

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultMaxRetries        = 2
	defaultInitialRetryDelay = 500 * time.Millisecond
)

// RetryClient wraps a Client with bounded exponential-backoff retries. The
// wrapped client stays single-attempt; this is the caller-side retry policy.
type RetryClient struct {
	inner      Client
	maxRetries uint64
	log        *slog.Logger
}

// NewRetryClient wraps inner so each Complete call is attempted up to
// 1+maxRetries times. maxRetries <= 0 uses the default.
func NewRetryClient(inner Client, maxRetries int, log *slog.Logger) *RetryClient {
	retries := uint64(defaultMaxRetries)
	if maxRetries > 0 {
		retries = uint64(maxRetries)
	}
	return &RetryClient{inner: inner, maxRetries: retries, log: log}
}

// Complete retries the wrapped client on failure. The last error is returned
// unchanged, so ErrUnavailable still matches after exhaustion.
func (c *RetryClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var result string
	attempt := 0

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultInitialRetryDelay

	err := backoff.Retry(func() error {
		attempt++
		text, err := c.inner.Complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			if c.log != nil {
				c.log.Debug("reasoning call failed, may retry", "attempt", attempt, "error", err)
			}
			return err
		}
		result = text
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx))

	if err != nil {
		return "", err
	}
	return result, nil
}
