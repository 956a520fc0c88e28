// Package cache provides the read-through cache used in front of the datastore
// and the inventory provider, with per-domain TTL policy and pattern invalidation.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheNotFound is returned when a cache entry is not found or expired
	ErrCacheNotFound = errors.New("cache entry not found or expired")

	// ErrStoreUnavailable is returned by RedisStore while its circuit breaker is open
	ErrStoreUnavailable = errors.New("cache store unavailable")
)

// Reader defines the interface for reading cache entries
type Reader interface {
	// Get returns the stored value, or ErrCacheNotFound if the key is absent or expired
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether a live entry is stored under key
	Exists(ctx context.Context, key string) (bool, error)
}

// Writer defines the interface for writing cache entries
type Writer interface {
	// SetEx stores value under key for ttl
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys; absent keys are not an error
	Del(ctx context.Context, keys ...string) error
}

// Scanner lists keys matching a glob pattern (`*`, `?`, `[...]`)
type Scanner interface {
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// Store is the backing key/value store behind a Policy
type Store interface {
	Reader
	Writer
	Scanner
}
