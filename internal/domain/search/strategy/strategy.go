package strategy

// Strategy is one of the retrieval modes.
type Strategy string

// Strategy constants.
const (
	SpecificRecord   Strategy = "specific_record"
	StructuredFilter Strategy = "structured_filter"
	SemanticSearch   Strategy = "semantic_search"
	// HybridParallel fans out to several executors at once.
	HybridParallel Strategy = "hybrid_parallel"
	// HybridSequential walks an ordered fallback chain.
	HybridSequential Strategy = "hybrid_sequential"
)

// IsValid checks if the strategy is one of the five known values.
func (s Strategy) IsValid() bool {
	switch s {
	case SpecificRecord, StructuredFilter, SemanticSearch, HybridParallel, HybridSequential:
		return true
	}
	return false
}

// IsHybrid reports whether the strategy combines several executors.
func (s Strategy) IsHybrid() bool {
	return s == HybridParallel || s == HybridSequential
}
