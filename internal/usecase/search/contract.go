package search

import (
	"context"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/criteria"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// RecordStore is the record lookup contract. FindByID returns
// domain.ErrNotFound on a miss.
type RecordStore interface {
	FindByID(ctx context.Context, scope string, t record.Type, id string) (record.Record, error)
	FindByCriteria(
		ctx context.Context, scope string, t record.Type,
		c criteria.Criteria, limit, offset int,
	) (record.Page, error)
	// FindWithEmbedding returns up to limit records carrying a stored
	// embedding, most recent first.
	FindWithEmbedding(ctx context.Context, scope string, t record.Type, limit int) ([]record.Record, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Classifier classifies query text. Must not fail.
type Classifier interface {
	Classify(text, scope string) query.Classification
}

// Router picks a strategy for a classification.
type Router interface {
	Route(cl query.Classification, force strategy.Strategy) strategy.Strategy
}

// Cache memoizes whole responses. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (*response.Response, bool, error)
	Put(ctx context.Context, key string, resp *response.Response) error
	Evict(ctx context.Context, key string) error
}

// Executor runs one retrieval strategy.
type Executor interface {
	Strategy() strategy.Strategy
	Search(ctx context.Context, in Input) ([]result.Result, error)
}

// Input is everything an executor needs for one invocation.
type Input struct {
	Text        string
	Scope       string
	Fields      query.Fields
	DataSources []record.Type
	Threshold   float64
	Limit       int
	Now         time.Time
}

// WithLimit returns a copy with a different result budget.
func (in Input) WithLimit(n int) Input {
	in.Limit = n
	return in
}
