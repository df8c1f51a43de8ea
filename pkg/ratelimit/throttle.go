package ratelimit

import (
	"context"
	"time"
)

// Throttle enforces a fixed pause between consecutive operations
type Throttle struct {
	delay time.Duration
}

// NewThrottle creates a throttle; a zero delay disables waiting
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{delay: delay}
}

// Wait sleeps for the configured delay. It returns ctx.Err() early when the
// context is cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(t.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delay returns the configured pause
func (t *Throttle) Delay() time.Duration {
	if t == nil {
		return 0
	}
	return t.delay
}
