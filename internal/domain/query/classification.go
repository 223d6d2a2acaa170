// Package query holds the result of classifying an analyst's free-text query.
package query

import "github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"

// Type is the classifier's verdict on what the query asks for.
type Type string

// Query type constants.
const (
	SpecificRecord   Type = "specific_record"
	StructuredFilter Type = "structured_filter"
	SemanticSearch   Type = "semantic_search"
	Hybrid           Type = "hybrid"
)

// Types returns every query type in scoring order.
func Types() []Type {
	return []Type{SpecificRecord, StructuredFilter, SemanticSearch, Hybrid}
}

// Complexity is a coarse size/shape estimate of the query.
type Complexity string

// Complexity constants.
const (
	Simple  Complexity = "simple"
	Medium  Complexity = "medium"
	Complex Complexity = "complex"
)

// Classification is the outcome of classifying one query. Confidence is in [0,1].
type Classification struct {
	QueryType    Type                `json:"query_type"`
	Confidence   float64             `json:"confidence"`
	Fields       Fields              `json:"extracted_fields"`
	Suggested    []strategy.Strategy `json:"suggested_strategies"`
	Fallback     []strategy.Strategy `json:"fallback_strategies"`
	Complexity   Complexity          `json:"complexity"`
	MatchedRules []string            `json:"matched_rules,omitempty"`
}

// Default is the classification used when classification itself fails.
func Default() Classification {
	return Classification{
		QueryType:  SemanticSearch,
		Confidence: 0.5,
		Suggested:  []strategy.Strategy{strategy.SemanticSearch},
		Fallback:   []strategy.Strategy{strategy.StructuredFilter},
		Complexity: Simple,
	}
}
