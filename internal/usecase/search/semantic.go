package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// DefaultCandidateWindow bounds how many embedded records are scored per source.
const DefaultCandidateWindow = 1000

// SemanticSearcher ranks stored embeddings by cosine similarity to the query.
type SemanticSearcher struct {
	store  RecordStore
	embed  Embedder
	window int
}

// NewSemanticSearcher creates a semantic searcher. window <= 0 selects
// DefaultCandidateWindow.
func NewSemanticSearcher(store RecordStore, embed Embedder, window int) *SemanticSearcher {
	if window <= 0 {
		window = DefaultCandidateWindow
	}
	return &SemanticSearcher{store: store, embed: embed, window: window}
}

// Strategy implements Executor.
func (s *SemanticSearcher) Strategy() strategy.Strategy { return strategy.SemanticSearch }

// Search embeds the text, scores each source's candidate window and keeps
// at most ceil(Limit/len(sources)) hits per source at or above Threshold.
func (s *SemanticSearcher) Search(ctx context.Context, in Input) ([]result.Result, error) {
	if len(in.DataSources) == 0 || in.Limit <= 0 {
		return nil, nil
	}
	emb, err := s.embed.Embed(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if len(emb.Embedding) == 0 {
		return nil, fmt.Errorf("vectorize query: %w: empty vector", domain.ErrEmbeddingProviderError)
	}

	perSource := (in.Limit + len(in.DataSources) - 1) / len(in.DataSources)

	hits, failed := fanOut(ctx, in.DataSources, func(ctx context.Context, t record.Type) ([]result.Result, error) {
		cands, err := s.store.FindWithEmbedding(ctx, in.Scope, t, s.window)
		if err != nil {
			return nil, err
		}
		return rankCandidates(emb.Embedding, cands, in.Threshold, perSource), nil
	})

	var out []result.Result
	for _, h := range hits {
		out = append(out, h...)
	}
	slices.SortStableFunc(out, func(a, b result.Result) int {
		return cmp.Compare(*b.Similarity, *a.Similarity)
	})
	return settle(out, failed, len(in.DataSources))
}

// rankCandidates scores candidates, drops those below threshold and returns
// the top n by similarity.
func rankCandidates(vec []float32, cands []record.Record, threshold float64, n int) []result.Result {
	out := make([]result.Result, 0, min(n, len(cands)))
	for i := range cands {
		if !cands[i].HasEmbedding() {
			continue
		}
		sim := cosine(vec, cands[i].Embedding)
		if sim < threshold {
			continue
		}
		out = append(out, result.NewSimilar(&cands[i], sim))
	}
	slices.SortStableFunc(out, func(a, b result.Result) int {
		return cmp.Compare(*b.Similarity, *a.Similarity)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
