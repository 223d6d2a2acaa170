// Package ingest loads security records into the record store, computing
// vectors for records that arrive without one.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/batch"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
)

// Defaults.
const (
	MaxBatchSize       = 100
	DefaultConcurrency = 4
)

// Service handles bulk record ingestion with per-item error reporting.
type Service struct {
	store        RecordWriter
	embed        Embedder
	maxBatchSize int
	concurrency  int
	logger       *zap.Logger
}

// New creates an ingest service. embed may be nil; records are then stored
// with whatever vectors they carry.
func New(store RecordWriter, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		embed:        embed,
		maxBatchSize: MaxBatchSize,
		concurrency:  DefaultConcurrency,
		logger:       logger,
	}
}

// WithMaxBatchSize configures how many records go into one store write.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithConcurrency configures how many embedding calls run at once.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.concurrency = n
	}
	return s
}

// Ingest validates, vectorizes and stores items in chunks. Results are in
// input order. Computed vectors are written back into items. A failed chunk
// write fails every item in that chunk only.
func (s *Service) Ingest(ctx context.Context, items []record.Record) []batch.Result {
	results := make([]batch.Result, len(items))
	for start := 0; start < len(items); start += s.maxBatchSize {
		end := min(start+s.maxBatchSize, len(items))
		s.ingestChunk(ctx, items[start:end], results[start:end])
	}

	sum := batch.Summarize(results)
	s.logger.Info("Ingest finished",
		zap.Int("records", len(items)),
		zap.Int("ok", sum.OK),
		zap.Int("failed", sum.Failed),
		zap.Int("embedded", sum.Embedded),
	)
	return results
}

func (s *Service) ingestChunk(ctx context.Context, items []record.Record, results []batch.Result) {
	embedded := make([]bool, len(items))
	errs := make([]error, len(items))

	for i := range items {
		errs[i] = validate(&items[i])
	}

	if s.embed != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i := range items {
			if errs[i] != nil || items[i].HasEmbedding() {
				continue
			}
			text := items[i].EmbeddingText()
			if text == "" {
				continue
			}
			g.Go(func() error {
				res, err := s.embed.Embed(gctx, text)
				if err != nil {
					errs[i] = fmt.Errorf("vectorize: %w", err)
					return nil
				}
				items[i].Embedding = res.Embedding
				embedded[i] = true
				return nil
			})
		}
		_ = g.Wait() // per-item errors are collected in errs
	}

	valid := make([]record.Record, 0, len(items))
	validIdx := make([]int, 0, len(items))
	for i := range items {
		if errs[i] != nil {
			results[i] = batch.NewError(items[i].Type, items[i].ID, errs[i])
			continue
		}
		valid = append(valid, items[i])
		validIdx = append(validIdx, i)
	}
	if len(valid) == 0 {
		return
	}

	if err := s.store.Put(ctx, valid...); err != nil {
		s.logger.Error("Batch write failed", zap.Int("records", len(valid)), zap.Error(err))
		for _, i := range validIdx {
			results[i] = batch.NewError(items[i].Type, items[i].ID, fmt.Errorf("store: %w", err))
		}
		return
	}
	for _, i := range validIdx {
		results[i] = batch.NewOK(items[i].Type, items[i].ID, embedded[i])
	}
}

func validate(r *record.Record) error {
	if r.ID == "" {
		return fmt.Errorf("record id is required: %w", domain.ErrInvalidRequest)
	}
	if !r.Type.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownRecordType, r.Type)
	}
	if r.CreatedAt.IsZero() {
		return errors.New("created_at is required")
	}
	return nil
}
