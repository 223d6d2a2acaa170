// Package route picks the retrieval strategy for a classified query.
package route

import (
	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// Thresholds are the confidence cut-offs of the decision table.
type Thresholds struct {
	Specific   float64 `yaml:"specific"`
	Structured float64 `yaml:"structured"`
	Ambiguous  float64 `yaml:"ambiguous"`
	Sequential float64 `yaml:"sequential"`
}

// DefaultThresholds returns the stock cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{Specific: 0.8, Structured: 0.7, Ambiguous: 0.6, Sequential: 0.5}
}

// Router maps a classification to a strategy.
type Router struct {
	th Thresholds
}

// New creates a router.
func New(th Thresholds) *Router {
	return &Router{th: th}
}

// Route returns force when it names a known strategy; otherwise the first
// matching row of the decision table wins.
func (r *Router) Route(cl query.Classification, force strategy.Strategy) strategy.Strategy {
	if force.IsValid() {
		return force
	}
	switch {
	case cl.QueryType == query.SpecificRecord && cl.Confidence >= r.th.Specific:
		return strategy.SpecificRecord
	case cl.QueryType == query.StructuredFilter && cl.Confidence >= r.th.Structured:
		return strategy.StructuredFilter
	case cl.QueryType == query.Hybrid || cl.Confidence < r.th.Ambiguous || cl.Complexity == query.Complex:
		return strategy.HybridParallel
	case cl.Confidence >= r.th.Sequential && cl.Confidence < r.th.Structured:
		return strategy.HybridSequential
	}
	return strategy.SemanticSearch
}
