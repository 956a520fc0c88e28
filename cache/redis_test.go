package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, opts ...RedisOption) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := NewRedisStore(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)

	_, err := store.Get(ctx, "cities:all")
	assert.ErrorIs(t, err, ErrCacheNotFound)

	require.NoError(t, store.SetEx(ctx, "cities:all", []byte(`["lisbon"]`), time.Hour))
	got, err := store.Get(ctx, "cities:all")
	require.NoError(t, err)
	assert.Equal(t, `["lisbon"]`, string(got))
	assert.Equal(t, time.Hour, mr.TTL("cities:all"))

	ok, err := store.Exists(ctx, "cities:all")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Del(ctx, "cities:all", "missing"))
	ok, err = store.Exists(ctx, "cities:all")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, store.Del(ctx))
}

func TestRedisStoreKeys(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedis(t)
	for _, k := range []string{"match_results:u1:a", "match_results:u1:b", "match_results:u2:a"} {
		require.NoError(t, store.SetEx(ctx, k, []byte("[]"), time.Minute))
	}

	keys, err := store.Keys(ctx, "match_results:u1:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"match_results:u1:a", "match_results:u1:b"}, keys)

	keys, err = store.Keys(ctx, "nothing:*")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisTTLExpiry(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)
	p := NewPolicy(store, zerolog.Nop())
	key := Key(DomainMatchResults, "u1", "abc")
	fetch, calls := counting(payload{Name: "m"}, nil)

	_, err := Cached(ctx, p, key, DomainMatchResults.TTL(), fetch)
	require.NoError(t, err)

	mr.FastForward(DomainMatchResults.TTL() - time.Second)
	_, err = Cached(ctx, p, key, DomainMatchResults.TTL(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)

	mr.FastForward(time.Second)
	assert.False(t, mr.Exists(key))
	_, err = Cached(ctx, p, key, DomainMatchResults.TTL(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestRedisErrorsFallThrough(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t)
	p := NewPolicy(store, zerolog.Nop())
	key := Key(DomainHotelDetails, "h1")

	mr.SetError("LOADING Redis is loading the dataset in memory")
	fetch, calls := counting(payload{Name: "from db"}, nil)
	got, err := Cached(ctx, p, key, DomainHotelDetails.TTL(), fetch)
	require.NoError(t, err)
	assert.Equal(t, "from db", got.Name)
	assert.Equal(t, 1, *calls)

	mr.SetError("")
	_, err = Cached(ctx, p, key, DomainHotelDetails.TTL(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls, "failed write must leave nothing behind")
	_, err = Cached(ctx, p, key, DomainHotelDetails.TTL(), fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)
}

func TestRedisBreakerOpens(t *testing.T) {
	ctx := context.Background()
	var transitions []string
	mr, store := newTestRedis(t,
		WithOpTimeout(100*time.Millisecond),
		WithBreaker(2, time.Minute),
		WithBreakerStateHook(func(from, to string) { transitions = append(transitions, from+"->"+to) }),
	)
	mr.SetError("ERR server unavailable")

	_, err := store.Get(ctx, "a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
	_, err = store.Get(ctx, "a")
	require.Error(t, err)

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, []string{"closed->open"}, transitions)

	p := NewPolicy(store, zerolog.Nop())
	fetch, calls := counting(payload{Name: "db"}, nil)
	got, err := Cached(ctx, p, "cities:all", time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, "db", got.Name)
	assert.Equal(t, 1, *calls)
}

func TestRedisMissDoesNotTripBreaker(t *testing.T) {
	ctx := context.Background()
	_, store := newTestRedis(t, WithBreaker(1, time.Minute))

	for i := 0; i < 5; i++ {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrCacheNotFound)
	}
}

func TestNewRedisStoreFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStoreFromURL("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(context.Background()))

	_, err = NewRedisStoreFromURL("http://nope")
	assert.Error(t, err)
}
