// Package cache provides the read-through result cache sitting in
// front of the durable record store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// Cache stores JSON-serialisable payloads under deterministic keys
// with a bounded TTL. Entries are invalidated on record deletion and
// otherwise expire passively.
type Cache interface {
	// Get unmarshals the cached value into dest, or returns ErrCacheMiss
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores a value with the given TTL
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes all keys matching a glob pattern (use with caution)
	DeletePattern(ctx context.Context, pattern string) error
}
