// Package ratelimit bounds how hard the scraper hits the search endpoint.
//
// Gate caps the number of requests in flight; it wraps a weighted semaphore
// and keeps its own counter so callers can observe how many permits are held.
// Throttle is the fixed pause taken after every search iteration.
//
//	gate := ratelimit.NewGate(30)
//	err := gate.Do(ctx, func(ctx context.Context) error {
//	    return fetch(ctx)
//	})
//
// Waiters on a Gate are not served in any particular order.
package ratelimit
