// Package kvstore provides the TTL'd key-value stores backing preview
// sessions and confirm idempotency records. All mutation is single-key, so
// callers never need cross-key locking; the only atomicity the engine
// relies on is SetNX, which decides the winner when two Confirm calls race
// on one idempotency key.
package kvstore

import "time"

// Store is a key-value map with per-entry TTL. Deleting an absent key is
// a no-op. Implementations must be safe for concurrent use.
type Store interface {
	// Set writes the value with the given lifetime.
	Set(key string, value []byte, ttl time.Duration) error
	// Get returns the value and whether it exists and is unexpired.
	Get(key string) ([]byte, bool, error)
	// Delete removes the key; absent keys are ignored.
	Delete(key string) error
	// SetNX writes only if the key is absent, atomically with respect to
	// concurrent callers. It reports whether this caller won.
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	// Sweep purges expired entries and reports how many went.
	Sweep() int
	// Close releases underlying resources.
	Close() error
}
