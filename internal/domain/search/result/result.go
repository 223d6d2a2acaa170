package result

import (
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// Result is a single search hit. Two results are duplicates iff they share an ID.
type Result struct {
	ID         string            `json:"id"`
	RecordType record.Type       `json:"record_type"`
	Score      float64           `json:"score"` // confidence or similarity, always in [0,1]
	Similarity *float64          `json:"similarity,omitempty"`
	Payload    map[string]any    `json:"payload"`
	Strategy   strategy.Strategy `json:"strategy"`
	CreatedAt  time.Time         `json:"created_at"`
}

// New creates a result for a record found by the given strategy.
func New(rec *record.Record, score float64, s strategy.Strategy) Result {
	return Result{
		ID:         rec.ID,
		RecordType: rec.Type,
		Score:      Clamp01(score),
		Payload:    record.Project(rec),
		Strategy:   s,
		CreatedAt:  rec.CreatedAt,
	}
}

// NewSimilar creates a result scored by vector similarity.
func NewSimilar(rec *record.Record, similarity float64) Result {
	r := New(rec, similarity, strategy.SemanticSearch)
	sim := r.Score
	r.Similarity = &sim
	return r
}

// HasSimilarity reports whether the result carries a vector similarity.
func (r Result) HasSimilarity() bool { return r.Similarity != nil }

// Clamp01 clamps v into [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case v != v || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
