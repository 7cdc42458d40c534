package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/hiringradar/internal/model"
)

// ATSRateLimiter paces requests per ATS backend. Each backend gets its own
// token bucket with a burst of one, so consecutive calls to the same vendor
// are at least minDelay apart while different vendors never block each other.
type ATSRateLimiter struct {
	mu        sync.Mutex
	limiters  map[model.ATSKind]*rate.Limiter
	minDelay  time.Duration
	overrides map[model.ATSKind]time.Duration
}

// NewATSRateLimiter creates a limiter enforcing minDelay between requests to
// the same ATS. overrides replaces minDelay for individual vendors.
func NewATSRateLimiter(minDelay time.Duration, overrides map[model.ATSKind]time.Duration) *ATSRateLimiter {
	copied := make(map[model.ATSKind]time.Duration, len(overrides))
	for k, v := range overrides {
		copied[k] = v
	}
	return &ATSRateLimiter{
		limiters:  make(map[model.ATSKind]*rate.Limiter),
		minDelay:  minDelay,
		overrides: copied,
	}
}

// Delay reports the effective spacing for kind.
func (r *ATSRateLimiter) Delay(kind model.ATSKind) time.Duration {
	if d, ok := r.overrides[kind]; ok {
		return d
	}
	return r.minDelay
}

func (r *ATSRateLimiter) limiter(kind model.ATSKind) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[kind]
	if !ok {
		limit := rate.Inf
		if d := r.Delay(kind); d > 0 {
			limit = rate.Every(d)
		}
		l = rate.NewLimiter(limit, 1)
		r.limiters[kind] = l
	}
	return l
}

// Wait blocks until the next request to kind is allowed.
// Returns an error if the context is cancelled while waiting.
func (r *ATSRateLimiter) Wait(ctx context.Context, kind model.ATSKind) error {
	if err := r.limiter(kind).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", kind, err)
	}
	return nil
}

// RateLimitedConnector is a decorator that enforces ATS-level pacing
// before delegating to the wrapped Connector.
type RateLimitedConnector struct {
	inner   model.Connector
	limiter *ATSRateLimiter
	kind    model.ATSKind
}

// NewRateLimitedConnector wraps a Connector with ATS-level rate limiting.
// All connectors targeting the same ATS should share the same limiter instance.
func NewRateLimitedConnector(inner model.Connector, limiter *ATSRateLimiter, kind model.ATSKind) *RateLimitedConnector {
	return &RateLimitedConnector{
		inner:   inner,
		limiter: limiter,
		kind:    kind,
	}
}

// Fetch waits for the limiter, then delegates to the wrapped connector.
func (c *RateLimitedConnector) Fetch(ctx context.Context, handle string) ([]model.NormalizedPosting, error) {
	if err := c.limiter.Wait(ctx, c.kind); err != nil {
		return nil, err
	}
	return c.inner.Fetch(ctx, handle)
}
