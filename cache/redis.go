package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	defaultOpTimeout        = 250 * time.Millisecond
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
	scanBatch               = 200
)

// RedisStore implements Store on top of a Redis server. Every call is bounded by
// an operation timeout and passes through a circuit breaker, so a dead server
// costs one fast error instead of a connect timeout per request.
type RedisStore struct {
	client    redis.UniversalClient
	breaker   *gobreaker.CircuitBreaker[any]
	opTimeout time.Duration
}

// RedisOption configures a RedisStore
type RedisOption func(*redisSettings)

type redisSettings struct {
	opTimeout        time.Duration
	failureThreshold uint32
	openTimeout      time.Duration
	onStateChange    func(from, to string)
}

// WithOpTimeout bounds each store round trip
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *redisSettings) { s.opTimeout = d }
}

// WithBreaker sets how many consecutive failures open the breaker and how long it stays open
func WithBreaker(failures uint32, open time.Duration) RedisOption {
	return func(s *redisSettings) { s.failureThreshold, s.openTimeout = failures, open }
}

// WithBreakerStateHook is called on every breaker state transition
func WithBreakerStateHook(fn func(from, to string)) RedisOption {
	return func(s *redisSettings) { s.onStateChange = fn }
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := redisSettings{
		opTimeout:        defaultOpTimeout,
		failureThreshold: defaultFailureThreshold,
		openTimeout:      defaultOpenTimeout,
	}
	for _, o := range opts {
		o(&s)
	}

	settings := gobreaker.Settings{
		Name:        "cache-redis",
		MaxRequests: 1,
		Timeout:     s.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.failureThreshold
		},
		// a miss is a healthy answer
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
	}
	if s.onStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			s.onStateChange(from.String(), to.String())
		}
	}

	return &RedisStore{
		client:    client,
		breaker:   gobreaker.NewCircuitBreaker[any](settings),
		opTimeout: s.opTimeout,
	}
}

// NewRedisStoreFromURL parses a redis:// URL and connects lazily
func NewRedisStoreFromURL(rawURL string, opts ...RedisOption) (*RedisStore, error) {
	o, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(o), opts...), nil
}

// Ping checks connectivity
func (r *RedisStore) Ping(ctx context.Context) error {
	_, err := r.do(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.Ping(ctx).Err()
	})
	return err
}

// Close releases the underlying client
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Get implements Reader
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.do(ctx, func(ctx context.Context) (any, error) {
		return r.client.Get(ctx, key).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheNotFound
	}
	if err != nil {
		return nil, err
	}
	b, _ := v.([]byte)
	return b, nil
}

// Exists implements Reader
func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	v, err := r.do(ctx, func(ctx context.Context) (any, error) {
		return r.client.Exists(ctx, key).Result()
	})
	if err != nil {
		return false, err
	}
	n, _ := v.(int64)
	return n > 0, nil
}

// SetEx implements Writer
func (r *RedisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := r.do(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.SetEx(ctx, key, value, ttl).Err()
	})
	return err
}

// Del implements Writer
func (r *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.do(ctx, func(ctx context.Context) (any, error) {
		return nil, r.client.Del(ctx, keys...).Err()
	})
	return err
}

// Keys implements Scanner using SCAN so large keyspaces don't block the server
func (r *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	v, err := r.do(ctx, func(ctx context.Context) (any, error) {
		var keys []string
		iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		return keys, iter.Err()
	})
	if err != nil {
		return nil, err
	}
	keys, _ := v.([]string)
	return keys, nil
}

func (r *RedisStore) do(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	v, err := r.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
		defer cancel()
		return fn(opCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return v, err
}
