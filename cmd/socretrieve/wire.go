package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/config"
	"github.com/victortong-git/opensoc-sub009/internal/db"
	dbRedis "github.com/victortong-git/opensoc-sub009/internal/db/redis"
	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/metrics"
	"github.com/victortong-git/opensoc-sub009/internal/repository/embcache"
	"github.com/victortong-git/opensoc-sub009/internal/repository/querycache"
	"github.com/victortong-git/opensoc-sub009/internal/repository/records"
	localEmb "github.com/victortong-git/opensoc-sub009/internal/transport/local"
	openaiEmb "github.com/victortong-git/opensoc-sub009/internal/transport/openai"
	"github.com/victortong-git/opensoc-sub009/internal/usecase/classify"
	embeddinguc "github.com/victortong-git/opensoc-sub009/internal/usecase/embedding"
	healthuc "github.com/victortong-git/opensoc-sub009/internal/usecase/health"
	"github.com/victortong-git/opensoc-sub009/internal/usecase/ingest"
	"github.com/victortong-git/opensoc-sub009/internal/usecase/route"
	searchuc "github.com/victortong-git/opensoc-sub009/internal/usecase/search"
)

// localModel names the hashing embedder in logs and metrics.
const localModel = "feature-hash"

// components is the assembled object graph shared by every command.
type components struct {
	records    *records.Store
	kv         db.Store // nil with the memory cache backend
	group      *searchuc.TaskGroup
	classifier *classify.Classifier
	search     *searchuc.Service
	ingest     *ingest.Service
	health     *healthuc.Service
}

// Close releases pools and connections.
func (c *components) Close() {
	if c.group != nil {
		c.group.Release()
	}
	if c.kv != nil {
		c.kv.Close()
	}
	if c.records != nil {
		_ = c.records.Close()
	}
}

// build is the composition root.
func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	metrics.Register()

	c.records, err = records.Open(ctx, cfg.Records.Path)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	logger.Info("Opened record store", zap.String("path", cfg.Records.Path))

	var cache searchuc.Cache
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		c.kv = store
		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Cache.Addrs))
		cache = querycache.NewRedis(store, cacheTTL(cfg), cfg.Cache.Capacity, logger)
	default:
		cache = querycache.NewMemory(cacheTTL(cfg), cfg.Cache.Capacity)
	}

	docEmbedder := buildEmbedder(cfg, "", c.kv, logger)
	queryEmbedder := buildEmbedder(cfg, cfg.Embedding.QueryInstruction, c.kv, logger)
	logger.Info("Embedders created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	c.group, err = searchuc.NewTaskGroup(
		cfg.Retrieval.PoolSize,
		time.Duration(cfg.Retrieval.BranchTimeoutMs)*time.Millisecond,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("create task group: %w", err)
	}

	c.classifier = classify.New(cfg.Classifier, nil, logger)
	combiner := searchuc.NewCombiner(c.group, cfg.Retrieval.Budgets, logger,
		searchuc.NewSpecificSearcher(c.records),
		searchuc.NewStructuredSearcher(c.records),
		searchuc.NewSemanticSearcher(c.records, queryEmbedder, cfg.Retrieval.CandidateWindow),
	)
	c.search = searchuc.New(c.classifier, route.New(cfg.Retrieval.Thresholds), combiner, cache, logger,
		searchuc.WithFlightTimeout(time.Duration(cfg.Retrieval.FlightTimeoutMs)*time.Millisecond))
	c.ingest = ingest.New(c.records, docEmbedder, logger)

	var cachePinger healthuc.Pinger
	if c.kv != nil {
		cachePinger = c.kv
	}
	var embChecker healthuc.EmbeddingChecker
	if hc, ok := queryEmbedder.(domain.HealthChecker); ok {
		embChecker = hc
	}
	c.health = healthuc.New(c.records, cachePinger, embChecker, logger).
		WithTimeout(time.Duration(cfg.HTTP.HealthTimeoutMs) * time.Millisecond)

	return c, nil
}

func cacheTTL(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Cache.TTLSec) * time.Second
}

// buildEmbedder assembles the decorator chain: provider -> observed -> cached -> instruction.
// Cache hits never reach the provider metrics.
// kv may be nil, which disables the embedding cache.
func buildEmbedder(cfg *config.Config, instruction string, kv db.Store, logger *zap.Logger) domain.Embedder {
	ec := cfg.Embedding
	model := ec.Model

	var embedder domain.Embedder
	switch ec.Provider {
	case config.ProviderOpenAI:
		embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Timeout:    time.Duration(ec.TimeoutSec) * time.Second,
		})
	default:
		embedder = localEmb.NewEmbedder(ec.Dimensions)
		model = localModel
	}

	embedder = embeddinguc.Observe(embedder, embeddinguc.Labels{Provider: ec.Provider, Model: model}, ec.Dimensions, logger)

	if kv != nil {
		embedder = embcache.New(embedder, kv,
			embcache.WithTTL(time.Duration(cfg.Cache.EmbeddingTTLSec)*time.Second),
			embcache.WithNamespace(ec.Provider+":"+model),
			embcache.WithCounter(metrics.EmbeddingCacheTotal),
			embcache.WithLogger(logger),
		)
	}

	// Instruction prefix (outermost, so cached vectors are keyed on the prefixed text)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}
