package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is the number of search requests allowed in flight at once
const DefaultCapacity = 30

// Gate is a counting permit pool bounding concurrent requests
type Gate struct {
	sem      *semaphore.Weighted
	capacity int
	inFlight atomic.Int64
}

// NewGate creates a gate with the given capacity; values below 1 fall back
// to DefaultCapacity
func NewGate(capacity int) *Gate {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a permit is free or ctx is done
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire permit: %w", err)
	}
	g.inFlight.Add(1)
	return nil
}

// Release returns a permit. Releasing more than was acquired panics.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// Do runs fn while holding a permit. The permit is returned when fn
// returns, errors or panics.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn(ctx)
}

// InFlight reports the number of permits currently held
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Capacity reports the fixed number of permits
func (g *Gate) Capacity() int {
	return g.capacity
}
