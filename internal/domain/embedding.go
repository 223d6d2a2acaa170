package domain

import (
	"context"
	"fmt"
)

// DefaultEmbeddingDimensions is the vector length stored alongside records.
const DefaultEmbeddingDimensions = 384

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is a vector plus the tokens the provider billed for it.
// Cached vectors report zero tokens.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// ProbeHealth runs e's health check if it has one. Embedders without a
// check count as healthy. Decorators use it to stay transparent.
func ProbeHealth(ctx context.Context, e Embedder) error {
	hc, ok := e.(HealthChecker)
	if !ok {
		return nil
	}
	return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
}

// InstructionEmbedder prefixes every text with a fixed instruction, as
// asymmetric retrieval models expect different prompts for queries and
// documents.
type InstructionEmbedder struct {
	inner  Embedder
	prefix string
}

// NewInstructionEmbedder wraps inner with the given prefix.
func NewInstructionEmbedder(inner Embedder, prefix string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, prefix: prefix}
}

// Embed vectorizes prefix+text.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.prefix+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("embed with instruction: %w", err)
	}
	return res, nil
}

// HealthCheck probes the wrapped embedder.
func (e *InstructionEmbedder) HealthCheck(ctx context.Context) error {
	return ProbeHealth(ctx, e.inner)
}
