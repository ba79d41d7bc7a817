package upload

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds how often one part is attempted.
type RetryPolicy struct {
	// Attempts is the total number of tries per part, including the
	// first. Values below 1 are treated as 1.
	Attempts int
	// Delay is the wait before the first retry.
	Delay time.Duration
	// Multiplier scales the delay for each further retry. Values below
	// 1 are treated as 1 (fixed delay).
	Multiplier float64
}

// DefaultRetryPolicy is one retry after a fixed 10 second delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 2, Delay: 10 * time.Second, Multiplier: 1}
}

// MaxAttempts returns the effective attempt count.
func (p RetryPolicy) MaxAttempts() int {
	return max(p.Attempts, 1)
}

// Backoff returns the wait before the given retry, where retry 1 is the
// second attempt.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		return 0
	}
	m := p.Multiplier
	if m < 1 {
		m = 1
	}
	d := float64(p.Delay)
	for i := 1; i < retry; i++ {
		d *= m
	}
	return time.Duration(d)
}

// Validate rejects policies that cannot be honoured.
func (p RetryPolicy) Validate() error {
	if p.Attempts < 1 {
		return fmt.Errorf("retry attempts must be >= 1, got %d", p.Attempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %s", p.Delay)
	}
	return nil
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
