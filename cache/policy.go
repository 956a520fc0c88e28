package cache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/nomadstay/internal/metrics"
)

// delBatch bounds the number of keys per DEL during pattern invalidation
const delBatch = 500

// Policy is the read-through layer over a Store. A nil store means caching is
// disabled; every operation then degrades to a direct fetch or a no-op.
// Store errors are logged and never returned.
type Policy struct {
	store  Store
	logger zerolog.Logger
}

// NewPolicy creates a policy over store, which may be nil
func NewPolicy(store Store, logger zerolog.Logger) *Policy {
	return &Policy{
		store:  store,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Enabled reports whether a backing store is configured
func (p *Policy) Enabled() bool {
	return p != nil && p.store != nil
}

// Cached returns the value stored under key, or calls fetch on a miss and
// stores its result for ttl. Any cache failure falls through to fetch; fetch
// errors are returned as-is and nothing is stored. Concurrent misses may each
// call fetch.
func Cached[T any](ctx context.Context, p *Policy, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	domain := domainOf(key)
	if !p.Enabled() {
		metrics.RecordCacheLookup(domain, metrics.ResultDisabled)
		return fetch(ctx)
	}

	v, result := lookup[T](ctx, p, key)
	metrics.RecordCacheLookup(domain, result)
	if result == metrics.ResultHit {
		return v, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	p.Set(ctx, key, v, ttl)
	return v, nil
}

// Get returns the value stored under key and whether it was present
func Get[T any](ctx context.Context, p *Policy, key string) (T, bool) {
	var zero T
	if !p.Enabled() {
		return zero, false
	}
	v, result := lookup[T](ctx, p, key)
	return v, result == metrics.ResultHit
}

func lookup[T any](ctx context.Context, p *Policy, key string) (T, string) {
	var v T
	raw, err := p.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrCacheNotFound):
		return v, metrics.ResultMiss
	case err != nil:
		metrics.RecordStoreError("get")
		p.logger.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return v, metrics.ResultError
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache entry undecodable, treating as miss")
		var zero T
		return zero, metrics.ResultError
	}
	return v, metrics.ResultHit
}

// Set stores value under key for ttl. Non-positive TTLs are ignored.
func (p *Policy) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !p.Enabled() {
		return
	}
	if ttl <= 0 {
		p.logger.Warn().Str("key", key).Dur("ttl", ttl).Msg("refusing to cache without a positive ttl")
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := p.store.SetEx(ctx, key, raw, ttl); err != nil {
		metrics.RecordStoreError("set")
		p.logger.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// Delete removes keys
func (p *Policy) Delete(ctx context.Context, keys ...string) {
	if !p.Enabled() || len(keys) == 0 {
		return
	}
	if err := p.store.Del(ctx, keys...); err != nil {
		metrics.RecordStoreError("del")
		p.logger.Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

// Exists reports whether key holds a live entry; store errors read as false
func (p *Policy) Exists(ctx context.Context, key string) bool {
	if !p.Enabled() {
		return false
	}
	ok, err := p.store.Exists(ctx, key)
	if err != nil {
		metrics.RecordStoreError("exists")
		p.logger.Warn().Err(err).Str("key", key).Msg("cache exists failed")
		return false
	}
	return ok
}

// InvalidatePattern deletes every key matching the glob pattern
func (p *Policy) InvalidatePattern(ctx context.Context, pattern string) {
	if !p.Enabled() {
		return
	}
	keys, err := p.store.Keys(ctx, pattern)
	if err != nil {
		metrics.RecordStoreError("keys")
		p.logger.Warn().Err(err).Str("pattern", pattern).Msg("cache pattern scan failed")
		return
	}
	for start := 0; start < len(keys); start += delBatch {
		end := min(start+delBatch, len(keys))
		p.Delete(ctx, keys[start:end]...)
	}
	if len(keys) > 0 {
		p.logger.Debug().Str("pattern", pattern).Int("count", len(keys)).Msg("cache invalidated")
	}
}
