// Package backoff provides the retry policy shared by every call site
// talking to the generation service: linearly growing waits (base*1,
// base*2, ...) up to a maximum attempt count.
package backoff

import (
	"context"
	"time"
)

// Policy describes bounded retries with linearly increasing delays.
// Sleep is injectable so tests can record waits instead of blocking.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Delay returns the wait before the next attempt after attempt failures.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.Base * time.Duration(attempt)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or
// exhausts MaxAttempts. retryable classifies errors worth another attempt;
// the last error is returned once attempts run out.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) || attempt >= attempts {
			return err
		}
		if sleepErr := p.sleep(ctx, p.Delay(attempt)); sleepErr != nil {
			return sleepErr
		}
	}
}

// Wait blocks for d, honoring ctx cancellation and the injected Sleep.
// Call sites use it for fixed cooldowns between generation calls.
func (p Policy) Wait(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
