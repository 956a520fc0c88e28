package cache

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

// entry represents a stored value with its write and expiry times
type entry struct {
	FetchedAt time.Time
	ExpiresAt time.Time
	Body      []byte
}

// MemoryStore implements Store in process memory. Expiry is enforced on read;
// there is no background eviction.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		items: make(map[string]entry),
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get implements Reader
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, ErrCacheNotFound
	}
	out := make([]byte, len(e.Body))
	copy(out, e.Body)
	return out, nil
}

// Exists implements Reader
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.live(key)
	return ok, nil
}

// SetEx implements Writer
func (m *MemoryStore) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	body := make([]byte, len(value))
	copy(body, value)
	m.items[key] = entry{FetchedAt: now, ExpiresAt: now.Add(ttl), Body: body}
	return nil
}

// Del implements Writer
func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

// Keys implements Scanner. Results are sorted.
func (m *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for k := range m.items {
		if _, ok := m.live(k); !ok {
			continue
		}
		matched, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// live returns the entry for key if it has not expired, dropping it otherwise.
// Must be called with mu held.
func (m *MemoryStore) live(key string) (entry, bool) {
	e, ok := m.items[key]
	if !ok {
		return entry{}, false
	}
	if !m.now().Before(e.ExpiresAt) {
		delete(m.items, key)
		return entry{}, false
	}
	return e, true
}
