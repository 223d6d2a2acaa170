package request

import (
	"fmt"
	"slices"
	"strings"

	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength             = 4096
	DefaultMaxResults          = 20
	MaxMaxResults              = 200
	DefaultSimilarityThreshold = 0.25
	// FallbackSimilarityThreshold is the looser threshold used when the primary path fails.
	FallbackSimilarityThreshold = 0.2
)

// Options are the caller-supplied knobs of a hybrid search.
// Zero values select defaults.
type Options struct {
	OrganizationScope   string
	MaxResults          int
	DataSources         []record.Type
	SimilarityThreshold *float64
	ConsolidationMethod method.Method
	ForceStrategy       strategy.Strategy
	DisableCache        bool
}

// Request is a validated hybrid search query.
type Request struct {
	text          string
	scope         string
	maxResults    int
	dataSources   []record.Type
	threshold     float64
	method        method.Method
	forceStrategy strategy.Strategy
	cacheEnabled  bool
}

// New validates and normalizes search parameters.
// Defaults: maxResults=20, all data sources, threshold=0.25, method=rank, caching on.
// The organization scope is required. An unknown ForceStrategy is ignored
// rather than rejected.
func New(text string, opts Options) (Request, error) {
	if len(text) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	scope := strings.TrimSpace(opts.OrganizationScope)
	if scope == "" {
		return Request{}, fmt.Errorf("organization_scope is required")
	}
	maxResults := opts.MaxResults
	if maxResults < 0 {
		return Request{}, fmt.Errorf("max_results must not be negative")
	}
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > MaxMaxResults {
		maxResults = MaxMaxResults
	}

	sources, err := normalizeSources(opts.DataSources)
	if err != nil {
		return Request{}, err
	}

	threshold := DefaultSimilarityThreshold
	if opts.SimilarityThreshold != nil {
		threshold = *opts.SimilarityThreshold
	}
	if threshold < 0 || threshold > 1 {
		return Request{}, fmt.Errorf("similarity_threshold must be between 0 and 1")
	}

	m := opts.ConsolidationMethod
	if m == "" {
		m = method.Default
	}
	if !m.IsValid() {
		return Request{}, fmt.Errorf("invalid consolidation method: %q", m)
	}

	force := opts.ForceStrategy
	if !force.IsValid() {
		force = ""
	}

	return Request{
		text:          text,
		scope:         scope,
		maxResults:    maxResults,
		dataSources:   sources,
		threshold:     threshold,
		method:        m,
		forceStrategy: force,
		cacheEnabled:  !opts.DisableCache,
	}, nil
}

func normalizeSources(in []record.Type) ([]record.Type, error) {
	if len(in) == 0 {
		return record.AllTypes(), nil
	}
	out := make([]record.Type, 0, len(in))
	for _, t := range in {
		if !t.IsValid() {
			return nil, fmt.Errorf("unknown data source: %q", t)
		}
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Text returns the raw query text.
func (r *Request) Text() string { return r.text }

// Scope returns the organization scope.
func (r *Request) Scope() string { return r.scope }

// MaxResults returns the maximum number of consolidated results.
func (r *Request) MaxResults() int { return r.maxResults }

// DataSources returns the record types to search, deduplicated.
func (r *Request) DataSources() []record.Type { return slices.Clone(r.dataSources) }

// SimilarityThreshold returns the minimum cosine similarity for semantic hits.
func (r *Request) SimilarityThreshold() float64 { return r.threshold }

// Method returns the consolidation method.
func (r *Request) Method() method.Method { return r.method }

// ForceStrategy returns the operator override, or "" when routing decides.
func (r *Request) ForceStrategy() strategy.Strategy { return r.forceStrategy }

// CacheEnabled reports whether the query cache may serve or store this request.
func (r *Request) CacheEnabled() bool { return r.cacheEnabled }

// WithThreshold returns a copy with a different similarity threshold.
func (r Request) WithThreshold(t float64) Request {
	r.threshold = t
	r.dataSources = slices.Clone(r.dataSources)
	return r
}
