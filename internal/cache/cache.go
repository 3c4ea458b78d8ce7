// Package cache provides the key-value capability used to hold remote
// payloads between fetches. Stores follow Redis semantics: Set stores a value
// with no expiry, Expire attaches a TTL to an existing key, and an expired key
// reads as missing.
package cache

import (
	"context"
	"time"
)

// Store is a key-value store with per-key expiry.
type Store interface {
	// Get returns the value for key. ok is false when the key is missing or expired.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	// Set stores val under key and clears any previous expiry.
	Set(ctx context.Context, key string, val []byte) error
	// Expire sets a TTL on key. It is a no-op when the key does not exist.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying connection.
	Close() error
}
