// Package embedding decorates embedders with validation and observability.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/metrics"
)

// Labels identify the provider behind an embedder in metrics and logs.
type Labels struct {
	Provider string
	Model    string
}

// Observed records provider metrics for every call and rejects vectors whose
// length differs from the configured dimensionality. Record vectors and
// query vectors must agree for cosine similarity to mean anything.
type Observed struct {
	inner  domain.Embedder
	labels Labels
	dims   int
	logger *zap.Logger
}

// Observe wraps inner. dims <= 0 disables the length check.
func Observe(inner domain.Embedder, labels Labels, dims int, logger *zap.Logger) *Observed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observed{
		inner:  inner,
		labels: labels,
		dims:   dims,
		logger: logger.With(zap.String("provider", labels.Provider), zap.String("model", labels.Model)),
	}
}

// Embed calls the provider and validates the vector.
func (o *Observed) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := o.inner.Embed(ctx, text)
	elapsed := time.Since(start)

	if err == nil && o.dims > 0 && len(res.Embedding) != o.dims {
		metrics.EmbeddingDimensionMismatchTotal.WithLabelValues(o.labels.Provider).Inc()
		err = fmt.Errorf("%w: expected %d, got %d", domain.ErrVectorDimMismatch, o.dims, len(res.Embedding))
	}
	if err != nil {
		o.fail(err, elapsed)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	p, m := o.labels.Provider, o.labels.Model
	metrics.EmbeddingRequestsTotal.WithLabelValues(p, m, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(p, m).Observe(elapsed.Seconds())
	if res.TotalTokens > 0 {
		metrics.EmbeddingTokensTotal.WithLabelValues(p, m, "prompt").Add(float64(res.PromptTokens))
		metrics.EmbeddingTokensTotal.WithLabelValues(p, m, "total").Add(float64(res.TotalTokens))
	}
	o.logger.Debug("Embedded text",
		zap.Duration("duration", elapsed),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

func (o *Observed) fail(err error, elapsed time.Duration) {
	p, m := o.labels.Provider, o.labels.Model
	metrics.EmbeddingRequestsTotal.WithLabelValues(p, m, "error").Inc()
	metrics.EmbeddingErrorsTotal.WithLabelValues(p, m, errorClass(err)).Inc()
	o.logger.Error("Embedding failed", zap.Duration("duration", elapsed), zap.Error(err))
}

func errorClass(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, domain.ErrVectorDimMismatch):
		return "dimension_mismatch"
	default:
		return "provider_error"
	}
}

// HealthCheck reports the provider's health; providers without a check are
// assumed healthy.
func (o *Observed) HealthCheck(ctx context.Context) error {
	return domain.ProbeHealth(ctx, o.inner)
}
