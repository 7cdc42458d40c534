package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

// Policy bounds how hard a connector is retried.
type Policy struct {
	MaxAttempts int           // total attempts including the first (default: 5)
	BaseDelay   time.Duration // delay before the first retry (default: 1s)
	MaxDelay    time.Duration // ceiling for any single delay (default: 20s)
}

// DefaultPolicy returns 5 attempts with 1s..20s backoff.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 20 * time.Second}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// RetryConnector is a decorator that retries transient failures with
// exponential backoff and jitter before delegating to the wrapped Connector.
type RetryConnector struct {
	inner  model.Connector
	kind   model.ATSKind
	policy Policy
	logger *slog.Logger
}

// NewRetryConnector wraps a Connector with retry logic. Zero policy fields
// fall back to DefaultPolicy.
func NewRetryConnector(inner model.Connector, kind model.ATSKind, policy Policy, logger *slog.Logger) *RetryConnector {
	return &RetryConnector{
		inner:  inner,
		kind:   kind,
		policy: policy.withDefaults(),
		logger: logger,
	}
}

// Fetch attempts the wrapped fetch, retrying on transient errors.
func (c *RetryConnector) Fetch(ctx context.Context, handle string) ([]model.NormalizedPosting, error) {
	postings, err := c.inner.Fetch(ctx, handle)
	if err == nil {
		return postings, nil
	}
	if !isRetryable(ctx, err) {
		return nil, err
	}

	lastErr := err
	for attempt := 1; attempt < c.policy.MaxAttempts; attempt++ {
		delay := c.backoffDelay(attempt, lastErr)

		c.logger.Warn("retrying after transient error",
			"ats", c.kind,
			"handle", handle,
			"attempt", attempt,
			"max_attempts", c.policy.MaxAttempts,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		postings, err = c.inner.Fetch(ctx, handle)
		if err == nil {
			return postings, nil
		}
		if !isRetryable(ctx, err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// backoffDelay computes the delay for a given retry with ±30% jitter, capped
// at MaxDelay. A Retry-After hint (HTTP 429/503) takes precedence.
func (c *RetryConnector) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return min(httpErr.RetryAfter, c.policy.MaxDelay)
	}

	// Exponential: BaseDelay * 2^(attempt-1)
	delay := c.policy.BaseDelay
	for i := 1; i < attempt && delay < c.policy.MaxDelay; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return min(delay, c.policy.MaxDelay)
}

// isRetryable returns true if the error represents a transient failure worth
// retrying. A per-request timeout is transient; the caller's context ending is not.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		return false
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return false
	}

	// Non-HTTP errors (network, DNS, etc.) are retryable.
	return true
}
