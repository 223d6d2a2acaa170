// Package querycache stores successful search responses keyed by the
// normalized request, with a TTL and a bounded entry count.
package querycache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
)

// Defaults for both cache backends.
const (
	DefaultTTL      = 5 * time.Minute
	DefaultCapacity = 100
)

type entry struct {
	resp    *response.Response
	expires time.Time
}

// Memory is an in-process cache. Entries expire lazily on lookup; when the
// cache is full the oldest inserted entry is evicted. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	entries  map[string]entry
	order    []string
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an in-process cache. Non-positive ttl or capacity
// select the defaults.
func NewMemory(ttl time.Duration, capacity int, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Memory{
		entries:  make(map[string]entry, capacity),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the cached response.
func (m *Memory) Get(_ context.Context, key string) (*response.Response, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(e.expires) {
		m.remove(key)
		return nil, false, nil
	}
	return e.resp.Clone(), true, nil
}

// Put stores a copy of resp. Re-putting a key moves it to the newest slot.
func (m *Memory) Put(_ context.Context, key string, resp *response.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		m.remove(key)
	}
	for len(m.order) >= m.capacity {
		m.remove(m.order[0])
	}
	m.entries[key] = entry{resp: resp.Clone(), expires: m.now().Add(m.ttl)}
	m.order = append(m.order, key)
	return nil
}

// Evict drops a single entry.
func (m *Memory) Evict(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) remove(key string) {
	delete(m.entries, key)
	if i := slices.Index(m.order, key); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}
