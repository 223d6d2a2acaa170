// Package local provides an offline embedder based on feature hashing.
// It needs no network and no model files, which makes it the default for
// development and for ingesting fixture data.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
)

// Embedder hashes word unigrams and bigrams into a fixed number of signed
// buckets and L2-normalizes the result. Texts sharing vocabulary get a
// positive cosine similarity.
type Embedder struct {
	dims int
}

// NewEmbedder creates a hashing embedder. dims <= 0 selects
// domain.DefaultEmbeddingDimensions.
func NewEmbedder(dims int) *Embedder {
	if dims <= 0 {
		dims = domain.DefaultEmbeddingDimensions
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int { return e.dims }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return domain.EmbeddingResult{}, fmt.Errorf("no tokens in input: %w", domain.ErrEmbeddingProviderError)
	}

	vec := make([]float32, e.dims)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	normalize(vec)
	return domain.EmbeddingResult{Embedding: vec, PromptTokens: len(tokens), TotalTokens: len(tokens)}, nil
}

// HealthCheck always succeeds.
func (e *Embedder) HealthCheck(context.Context) error { return nil }

func (e *Embedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
