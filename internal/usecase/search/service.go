package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/request"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
	"github.com/victortong-git/opensoc-sub009/internal/logger"
	"github.com/victortong-git/opensoc-sub009/internal/metrics"
)

// Service is the hybrid search entry point: classify, route, execute,
// consolidate and cache.
type Service struct {
	classifier    Classifier
	router        Router
	combiner      *Combiner
	cache         Cache
	logger        *zap.Logger
	now           func() time.Time
	flightTimeout time.Duration
	flight        singleflight.Group
}

// DefaultFlightTimeout bounds a coalesced search that outlives its caller.
const DefaultFlightTimeout = 30 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFlightTimeout bounds a coalesced search. Non-positive keeps the default.
func WithFlightTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flightTimeout = d
		}
	}
}

// New creates a search service. cache may be nil to disable caching.
func New(
	classifier Classifier, router Router, combiner *Combiner, cache Cache,
	logger *zap.Logger, opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		classifier:    classifier,
		router:        router,
		combiner:      combiner,
		cache:         cache,
		logger:        logger,
		now:           time.Now,
		flightTimeout: DefaultFlightTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HybridSearch validates options and runs Search. It always returns a
// response; invalid options produce an unsuccessful one.
func (s *Service) HybridSearch(ctx context.Context, text string, opts request.Options) *response.Response {
	req, err := request.New(text, opts)
	if err != nil {
		return &response.Response{
			Method:  opts.ConsolidationMethod,
			Success: false,
			Error:   fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err).Error(),
		}
	}
	return s.Search(ctx, &req)
}

// Search runs the pipeline for a validated request. A pipeline fault yields
// Success=false with a loosened semantic-only search as Fallback.
// Forced strategies bypass the cache.
func (s *Service) Search(ctx context.Context, req *request.Request) *response.Response {
	useCache := s.cache != nil && req.CacheEnabled() && req.ForceStrategy() == ""
	if !useCache {
		return s.searchOrFallback(ctx, req)
	}

	key := CacheKey(req)
	if resp := s.cached(ctx, key); resp != nil {
		return resp
	}

	v, _, _ := s.flight.Do(key, func() (any, error) {
		// coalesced callers share this flight, so one of them leaving must
		// not cancel it for the rest
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flightTimeout)
		defer cancel()

		// a flight that finished since our lookup may have populated the entry
		if resp, ok, err := s.cache.Get(fctx, key); err == nil && ok {
			out := resp.Clone()
			out.Cached = true
			return out, nil
		}
		resp := s.searchOrFallback(fctx, req)
		if cacheable(resp) && ctx.Err() == nil && fctx.Err() == nil {
			if err := s.cache.Put(fctx, key, resp); err != nil {
				metrics.QueryCacheTotal.WithLabelValues("error").Inc()
				logger.FromContext(ctx).Warn("Query cache put failed", zap.Error(err))
			}
		}
		return resp, nil
	})
	return v.(*response.Response).Clone()
}

// cacheable reports whether resp is a resolution worth replaying. A response
// whose every branch failed carries no results and is not one.
func cacheable(resp *response.Response) bool {
	if !resp.Success {
		return false
	}
	return len(resp.Breakdown) == 0 || len(resp.FailedStrategies()) < len(resp.Breakdown)
}

func (s *Service) cached(ctx context.Context, key string) *response.Response {
	resp, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.QueryCacheTotal.WithLabelValues("error").Inc()
		logger.FromContext(ctx).Warn("Query cache get failed, treating as miss", zap.Error(err))
		return nil
	case !ok:
		metrics.QueryCacheTotal.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.QueryCacheTotal.WithLabelValues("hit").Inc()
	out := resp.Clone()
	out.Cached = true
	return out
}

func (s *Service) searchOrFallback(ctx context.Context, req *request.Request) *response.Response {
	start := s.now()
	resp, err := s.execute(ctx, req)
	if err == nil {
		metrics.SearchesTotal.WithLabelValues(string(resp.StrategyUsed), "ok").Inc()
		metrics.SearchDuration.WithLabelValues(string(resp.StrategyUsed)).Observe(s.now().Sub(start).Seconds())
		return resp
	}

	metrics.SearchesTotal.WithLabelValues(string(resp.StrategyUsed), "failed").Inc()
	s.logger.Error("Hybrid search failed, running semantic fallback",
		zap.String("strategy", string(resp.StrategyUsed)),
		zap.Error(err),
	)
	resp.Success = false
	resp.Error = err.Error()
	resp.Fallback = s.fallback(ctx, req)
	resp.SearchTimeMs = s.now().Sub(start).Milliseconds()
	return resp
}

// execute never panics; a recovered panic is returned as an error alongside
// whatever was known about the call.
func (s *Service) execute(ctx context.Context, req *request.Request) (resp *response.Response, err error) {
	start := s.now()
	resp = &response.Response{Method: req.Method()}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search pipeline panicked: %v", r)
		}
	}()

	cl := s.classifier.Classify(req.Text(), req.Scope())
	st := s.router.Route(cl, req.ForceStrategy())
	resp.StrategyUsed = st
	resp.Classification = &cl

	in := Input{
		Text:        req.Text(),
		Scope:       req.Scope(),
		Fields:      cl.Fields,
		DataSources: req.DataSources(),
		Threshold:   req.SimilarityThreshold(),
		Limit:       req.MaxResults(),
		Now:         start,
	}

	var outcomes []Outcome
	switch st {
	case strategy.HybridParallel:
		outcomes, err = s.combiner.Parallel(ctx, in)
	case strategy.HybridSequential:
		outcomes, err = s.combiner.Sequential(ctx, in, cl)
	default:
		outcomes, err = s.combiner.Single(ctx, st, in)
	}
	if err != nil {
		return resp, err
	}

	c := Consolidate(outcomes, req.Method(), req.MaxResults(), start)
	resp.Results = c.Results
	resp.TotalFound = c.TotalFound
	resp.Breakdown = c.Breakdown
	resp.SearchTimeMs = s.now().Sub(start).Milliseconds()
	resp.Success = true

	s.logger.Debug("Hybrid search completed",
		zap.String("query_type", string(cl.QueryType)),
		zap.Float64("confidence", cl.Confidence),
		zap.String("strategy", string(st)),
		zap.Int("found", c.TotalFound),
		zap.Int64("duration_ms", resp.SearchTimeMs),
	)
	return resp, nil
}

// fallback runs semantic search only, at the looser threshold, over the
// same sources. Any fault here yields an empty unsuccessful response.
func (s *Service) fallback(ctx context.Context, req *request.Request) (resp *response.Response) {
	start := s.now()
	loose := req.WithThreshold(min(req.SimilarityThreshold(), request.FallbackSimilarityThreshold))
	resp = &response.Response{StrategyUsed: strategy.SemanticSearch, Method: method.Rank}
	defer func() {
		if r := recover(); r != nil {
			resp.Success = false
			resp.Error = fmt.Sprintf("fallback panicked: %v", r)
		}
	}()

	outcomes, err := s.combiner.Single(ctx, strategy.SemanticSearch, Input{
		Text:        loose.Text(),
		Scope:       loose.Scope(),
		DataSources: loose.DataSources(),
		Threshold:   loose.SimilarityThreshold(),
		Limit:       loose.MaxResults(),
		Now:         start,
	})
	if err != nil {
		resp.Error = err.Error()
		return resp
	}

	c := Consolidate(outcomes, method.Rank, loose.MaxResults(), start)
	resp.Results = c.Results
	resp.TotalFound = c.TotalFound
	resp.Breakdown = c.Breakdown
	resp.SearchTimeMs = s.now().Sub(start).Milliseconds()
	resp.Success = len(outcomes) > 0 && !outcomes[0].Failed()
	if !resp.Success && len(outcomes) > 0 {
		resp.Error = outcomes[0].Err.Error()
	}
	return resp
}
