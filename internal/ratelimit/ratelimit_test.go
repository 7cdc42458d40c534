package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

func TestWait_SameATS_EnforcesMinDelay(t *testing.T) {
	limiter := NewATSRateLimiter(100*time.Millisecond, nil)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, model.KindGreenhouse); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, model.KindGreenhouse); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_DifferentATS_NoCrossBlocking(t *testing.T) {
	limiter := NewATSRateLimiter(200*time.Millisecond, nil)
	ctx := context.Background()

	if err := limiter.Wait(ctx, model.KindGreenhouse); err != nil {
		t.Fatalf("greenhouse wait: %v", err)
	}

	// Immediately call for lever; should not block.
	start := time.Now()
	if err := limiter.Wait(ctx, model.KindLever); err != nil {
		t.Fatalf("lever wait: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > 50*time.Millisecond {
		t.Errorf("expected lever wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_OverrideDisablesPacing(t *testing.T) {
	limiter := NewATSRateLimiter(time.Second, map[model.ATSKind]time.Duration{
		model.KindSmartRecruiters: 0,
	})
	ctx := context.Background()

	if got := limiter.Delay(model.KindSmartRecruiters); got != 0 {
		t.Fatalf("expected override delay 0, got %v", got)
	}
	if got := limiter.Delay(model.KindAshby); got != time.Second {
		t.Fatalf("expected default delay 1s, got %v", got)
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := limiter.Wait(ctx, model.KindSmartRecruiters); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("expected unpaced waits, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewATSRateLimiter(5*time.Second, nil)

	// First call to consume the burst.
	if err := limiter.Wait(context.Background(), model.KindGreenhouse); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, model.KindGreenhouse); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

type recordingConnector struct {
	called bool
}

func (c *recordingConnector) Fetch(_ context.Context, _ string) ([]model.NormalizedPosting, error) {
	c.called = true
	return nil, nil
}

func TestRateLimitedConnector_WaitsBeforeDelegating(t *testing.T) {
	limiter := NewATSRateLimiter(100*time.Millisecond, nil)
	inner := &recordingConnector{}
	conn := NewRateLimitedConnector(inner, limiter, model.KindGreenhouse)
	ctx := context.Background()

	if _, err := conn.Fetch(ctx, "acme"); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if !inner.called {
		t.Fatal("inner connector was not called on first fetch")
	}

	inner.called = false

	start := time.Now()
	if _, err := conn.Fetch(ctx, "other"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	elapsed := time.Since(start)

	if !inner.called {
		t.Fatal("inner connector was not called on second fetch")
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second fetch, got %v", elapsed)
	}
}
