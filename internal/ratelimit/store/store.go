// Package store provides storage backends for login-attempt tracking.
package store

import (
	"context"
	"time"
)

// Attempt is the per-key rate-limit state.
type Attempt struct {
	// Last is the wall-clock time of the most recent attempt.
	Last time.Time

	// Count is the number of attempts in the current window.
	Count int64
}

// Store is a bounded, TTL-evicting key/value store for rate-limit entries.
// Entries are dropped once their TTL elapses regardless of hit count, so
// scanning traffic cannot grow the store without bound.
type Store interface {
	// Get retrieves the entry for the given key. The boolean reports
	// whether the key was present.
	Get(ctx context.Context, key string) (Attempt, bool, error)

	// Set stores the entry with the given TTL.
	Set(ctx context.Context, key string, attempt Attempt, ttl time.Duration) error

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}
