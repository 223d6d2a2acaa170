// Package response defines the consolidated output of a hybrid search.
package response

import (
	"slices"

	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// StrategyStat summarizes one strategy's contribution.
// Error is set when the branch failed; such branches report zero found.
// SourceErrors lists data sources that failed inside a surviving branch.
type StrategyStat struct {
	Strategy     strategy.Strategy `json:"strategy"`
	FoundCount   int               `json:"found_count"`
	Confidence   float64           `json:"confidence"`
	Error        string            `json:"error,omitempty"`
	SourceErrors []string          `json:"source_errors,omitempty"`
}

// Response is what callers of the retrieval core always receive.
type Response struct {
	Results        []result.Result       `json:"results"`
	TotalFound     int                   `json:"total_found"`
	StrategyUsed   strategy.Strategy     `json:"strategy_used"`
	Breakdown      []StrategyStat        `json:"strategy_breakdown"`
	SearchTimeMs   int64                 `json:"search_time_ms"`
	Method         method.Method         `json:"consolidation_method"`
	Cached         bool                  `json:"cached"`
	Classification *query.Classification `json:"classification,omitempty"`

	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	Fallback *Response `json:"fallback,omitempty"`
}

// Clone returns a copy whose slices can be modified independently.
// Result payloads are shared and must be treated as read-only.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	c := *r
	c.Results = slices.Clone(r.Results)
	c.Breakdown = slices.Clone(r.Breakdown)
	if r.Classification != nil {
		cl := *r.Classification
		c.Classification = &cl
	}
	c.Fallback = r.Fallback.Clone()
	return &c
}

// FailedStrategies lists strategies whose branch reported an error.
func (r *Response) FailedStrategies() []strategy.Strategy {
	var out []strategy.Strategy
	for _, s := range r.Breakdown {
		if s.Error != "" {
			out = append(out, s.Strategy)
		}
	}
	return out
}
