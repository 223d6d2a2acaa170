package chi

import (
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/request"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// ErrorCode is the machine-readable error category in error bodies.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeNotFound               ErrorCode = "not_found"
	CodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query               string   `json:"query"`
	OrganizationScope   string   `json:"organization_scope,omitempty"`
	MaxResults          *int     `json:"max_results,omitempty"`
	DataSources         []string `json:"data_sources,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	ConsolidationMethod string   `json:"consolidation_method,omitempty"`
	ForceStrategy       string   `json:"force_strategy,omitempty"`
	DisableCache        bool     `json:"disable_cache,omitempty"`
	IncludeContext      bool     `json:"include_context,omitempty"`
}

// SearchParams are the query parameters of GET /v1/search.
type SearchParams struct {
	Q                   string    `json:"q"`
	Scope               *string   `json:"scope,omitempty"`
	MaxResults          *int      `json:"max_results,omitempty"`
	DataSources         *[]string `json:"data_sources,omitempty"`
	SimilarityThreshold *float64  `json:"similarity_threshold,omitempty"`
	Method              *string   `json:"method,omitempty"`
	Strategy            *string   `json:"strategy,omitempty"`
	NoCache             *bool     `json:"no_cache,omitempty"`
	IncludeContext      *bool     `json:"include_context,omitempty"`
}

// SearchResponse is the consolidated response plus the optional rendered
// context block.
type SearchResponse struct {
	*response.Response
	Context string `json:"context,omitempty"`
}

// ClassifyRequest is the body of POST /v1/classify.
type ClassifyRequest struct {
	Query             string `json:"query"`
	OrganizationScope string `json:"organization_scope,omitempty"`
}

// RecordResponse is the body of GET /v1/records/{type}/{id}.
type RecordResponse struct {
	ID             string         `json:"id"`
	Type           record.Type    `json:"type"`
	OrganizationID string         `json:"organization_id,omitempty"`
	Payload        map[string]any `json:"payload"`
	HasEmbedding   bool           `json:"has_embedding"`
	CreatedAt      time.Time      `json:"created_at"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (r *SearchRequest) toRequest() (request.Request, error) {
	opts := request.Options{
		OrganizationScope:   r.OrganizationScope,
		SimilarityThreshold: r.SimilarityThreshold,
		ConsolidationMethod: method.Method(r.ConsolidationMethod),
		ForceStrategy:       strategy.Strategy(r.ForceStrategy),
		DisableCache:        r.DisableCache,
	}
	if r.MaxResults != nil {
		opts.MaxResults = *r.MaxResults
	}
	for _, s := range r.DataSources {
		t, err := record.ParseType(s)
		if err != nil {
			return request.Request{}, err
		}
		opts.DataSources = append(opts.DataSources, t)
	}
	return request.New(r.Query, opts)
}

func (p *SearchParams) toSearchRequest() SearchRequest {
	req := SearchRequest{
		Query:               p.Q,
		MaxResults:          p.MaxResults,
		SimilarityThreshold: p.SimilarityThreshold,
	}
	if p.Scope != nil {
		req.OrganizationScope = *p.Scope
	}
	if p.DataSources != nil {
		req.DataSources = *p.DataSources
	}
	if p.Method != nil {
		req.ConsolidationMethod = *p.Method
	}
	if p.Strategy != nil {
		req.ForceStrategy = *p.Strategy
	}
	if p.NoCache != nil {
		req.DisableCache = *p.NoCache
	}
	if p.IncludeContext != nil {
		req.IncludeContext = *p.IncludeContext
	}
	return req
}

func recordToResponse(r *record.Record) RecordResponse {
	return RecordResponse{
		ID:             r.ID,
		Type:           r.Type,
		OrganizationID: r.OrganizationID,
		Payload:        record.Project(r),
		HasEmbedding:   r.HasEmbedding(),
		CreatedAt:      r.CreatedAt,
	}
}
