package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGateDefaults(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewGate(0).Capacity())
	assert.Equal(t, 3, NewGate(3).Capacity())
}

func TestGateNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	g := NewGate(capacity)

	var (
		current int64
		peak    int64
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt64(&current, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				assert.LessOrEqual(t, g.InFlight(), capacity)
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(capacity))
	assert.Equal(t, 0, g.InFlight())
}

func TestGateReleasesOnError(t *testing.T) {
	g := NewGate(1)
	want := errors.New("request failed")

	err := g.Do(context.Background(), func(ctx context.Context) error { return want })
	require.ErrorIs(t, err, want)
	assert.Equal(t, 0, g.InFlight())

	// The single permit must be available again
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, g.Acquire(ctx))
	g.Release()
}

func TestGateReleasesOnPanic(t *testing.T) {
	g := NewGate(1)

	assert.Panics(t, func() {
		_ = g.Do(context.Background(), func(ctx context.Context) error { panic("boom") })
	})
	assert.Equal(t, 0, g.InFlight())
}

func TestGateAcquireHonoursContext(t *testing.T) {
	g := NewGate(1)
	require.NoError(t, g.Acquire(context.Background()))
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, g.InFlight())
}

func TestThrottleWait(t *testing.T) {
	th := NewThrottle(30 * time.Millisecond)

	start := time.Now()
	require.NoError(t, th.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 30*time.Millisecond, th.Delay())
}

func TestThrottleCancelled(t *testing.T) {
	th := NewThrottle(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, th.Wait(ctx), context.Canceled)
}

func TestThrottleZeroDelay(t *testing.T) {
	var nilThrottle *Throttle
	assert.NoError(t, nilThrottle.Wait(context.Background()))
	assert.NoError(t, NewThrottle(0).Wait(context.Background()))
}
