// Package db is the key-value facade behind the shared query and embedding
// caches.
package db

import (
	"context"
	"time"
)

// Store is everything the cache layer needs from a key-value server.
type Store interface {
	Pinger
	KVStore
	ListStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore holds expiring binary values. A missing key is ErrKeyNotFound.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// ListStore keeps insertion order for capacity-bounded eviction.
type ListStore interface {
	// PutCapped writes value under key with ttl and appends key to the
	// orderKey list in one atomic step, deleting the oldest keys once the
	// list exceeds capacity. It returns how many keys were evicted.
	PutCapped(ctx context.Context, key string, value []byte, ttl time.Duration, orderKey string, capacity int) (int64, error)
	LRem(ctx context.Context, key, value string) error
}
