package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/db"
	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
)

// Entries and the order list share the {query_cache} hash tag so the
// put script touches a single cluster slot.
var (
	entryKeyPrefix = domain.KeyPrefix + "{query_cache}:"
	orderKey       = domain.KeyPrefix + "{query_cache}:order"
)

// store is the consumer interface for the shared cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	PutCapped(ctx context.Context, key string, value []byte, ttl time.Duration, orderKey string, capacity int) (int64, error)
	LRem(ctx context.Context, key, value string) error
}

// Redis is a cache shared between instances. Entry expiry is delegated to
// the server; insertion order is tracked in a list so the oldest entries
// can be evicted once capacity is exceeded. Put is a single atomic step.
type Redis struct {
	store    store
	ttl      time.Duration
	capacity int
	logger   *zap.Logger
}

// NewRedis creates a shared cache. Non-positive ttl or capacity select the
// defaults.
func NewRedis(s store, ttl time.Duration, capacity int, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{store: s, ttl: ttl, capacity: capacity, logger: logger}
}

// Get returns the cached response. A corrupt entry is dropped and reported
// as a miss.
func (r *Redis) Get(ctx context.Context, key string) (*response.Response, bool, error) {
	k := entryKey(key)
	data, err := r.store.Get(ctx, k)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached response: %w", err)
	}

	var resp response.Response
	if err := sonic.Unmarshal(data, &resp); err != nil {
		r.logger.Warn("Dropping corrupt cached response", zap.String("key", k), zap.Error(err))
		r.drop(ctx, k)
		return nil, false, nil
	}
	return &resp, true, nil
}

// Put stores resp and evicts the oldest entries beyond capacity.
func (r *Redis) Put(ctx context.Context, key string, resp *response.Response) error {
	data, err := sonic.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	evicted, err := r.store.PutCapped(ctx, entryKey(key), data, r.ttl, orderKey, r.capacity)
	if err != nil {
		return fmt.Errorf("put cached response: %w", err)
	}
	if evicted > 0 {
		r.logger.Debug("Evicted oldest cached responses", zap.Int64("count", evicted))
	}
	return nil
}

// Evict drops a single entry.
func (r *Redis) Evict(ctx context.Context, key string) error {
	k := entryKey(key)
	if err := r.store.Del(ctx, k); err != nil {
		return fmt.Errorf("evict: %w", err)
	}
	if err := r.store.LRem(ctx, orderKey, k); err != nil {
		return fmt.Errorf("evict: %w", err)
	}
	return nil
}

func (r *Redis) drop(ctx context.Context, k string) {
	if err := r.store.Del(ctx, k); err != nil {
		r.logger.Warn("Failed to drop cached response", zap.String("key", k), zap.Error(err))
	}
}

// entryKey hashes the request key so arbitrary query text stays a safe,
// bounded key.
func entryKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return entryKeyPrefix + hex.EncodeToString(h[:])
}
