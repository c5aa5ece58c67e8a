// Package ratelimit implements the cooperative wait used when the source
// issues a flood-wait. One uninterruptible sleep would block both progress
// reporting and cancellation, so the wait is chopped into one-second steps
// that report the remaining time and honor context cancellation.
package ratelimit

import (
	"context"
	"time"
)

// Countdown blocks for wait, invoking tick with the remaining duration at
// each one-second step and once more with zero on completion. It returns
// early with the context error if ctx is cancelled mid-wait.
func Countdown(ctx context.Context, wait time.Duration, tick func(remaining time.Duration)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	remaining := wait
	for remaining > 0 {
		if tick != nil {
			tick(remaining)
		}

		step := time.Second
		if remaining < step {
			step = remaining
		}

		timer := time.NewTimer(step)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
		remaining -= step
	}

	if tick != nil {
		tick(0)
	}
	return nil
}
