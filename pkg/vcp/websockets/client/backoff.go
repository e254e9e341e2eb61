package client

import (
	"context"
	"math"
	"time"
)

// Backoff computes the wait between consecutive failed connect attempts.
// With a Factor of 1 or less the delay is constant.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Delay returns the wait after the given failed attempt, counted from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if b.Factor <= 1 || attempt == 1 {
		return b.Initial
	}

	delay := float64(b.Initial) * math.Pow(b.Factor, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
