// Package embcache keeps query vectors in the shared key-value store so a
// repeated search skips the provider round trip.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/victortong-git/opensoc-sub009/internal/db"
	"github.com/victortong-git/opensoc-sub009/internal/domain"
)

// DefaultTTL bounds how long a cached query vector outlives a model change.
const DefaultTTL = 24 * time.Hour

var keyPrefix = domain.KeyPrefix + "emb_cache:"

// store is what the cache needs from the key-value layer.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Option configures a CachedEmbedder.
type Option func(*CachedEmbedder)

// WithTTL sets the entry lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *CachedEmbedder) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithNamespace partitions keys, typically by embedding model, so vectors
// from different models never mix.
func WithNamespace(ns string) Option {
	return func(c *CachedEmbedder) { c.namespace = ns }
}

// WithCounter counts lookups on a vec with a single "result" label (hit, miss).
func WithCounter(cv *prometheus.CounterVec) Option {
	return func(c *CachedEmbedder) { c.lookups = cv }
}

// WithLogger sets the logger for non-fatal store failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *CachedEmbedder) {
		if l != nil {
			c.logger = l
		}
	}
}

// CachedEmbedder wraps an embedder with a read-through vector cache.
// Concurrent misses for the same text share one provider call.
type CachedEmbedder struct {
	inner     domain.Embedder
	store     store
	ttl       time.Duration
	namespace string
	lookups   *prometheus.CounterVec
	logger    *zap.Logger
	inflight  singleflight.Group
}

// New wraps inner. Store failures degrade to calling inner directly.
func New(inner domain.Embedder, s store, opts ...Option) *CachedEmbedder {
	c := &CachedEmbedder{
		inner:  inner,
		store:  s,
		ttl:    DefaultTTL,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Embed returns the cached vector for text or computes and stores it.
// A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)

	if vec, ok := c.load(ctx, key); ok {
		c.count("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count("miss")

	v, err, _ := c.inflight.Do(key, func() (any, error) {
		res, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := c.store.SetWithTTL(ctx, key, db.EncodeVector(res.Embedding), c.ttl); err != nil {
			c.logger.Warn("Embedding cache write failed", zap.Error(err))
		}
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	return v.(domain.EmbeddingResult), nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	return domain.ProbeHealth(ctx, c.inner)
}

func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, false
	case err != nil:
		c.logger.Warn("Embedding cache read failed, treating as miss", zap.Error(err))
		return nil, false
	case len(data) == 0:
		return nil, false
	}
	vec, err := db.DecodeVector(data)
	if err != nil {
		c.logger.Warn("Dropping corrupt embedding cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	if c.namespace == "" {
		return keyPrefix + hex.EncodeToString(sum[:])
	}
	return keyPrefix + c.namespace + ":" + hex.EncodeToString(sum[:])
}
