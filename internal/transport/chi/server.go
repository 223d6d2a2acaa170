package chi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/logger"
	healthuc "github.com/victortong-git/opensoc-sub009/internal/usecase/health"
)

// maxBodyBytes caps request bodies; queries are short.
const maxBodyBytes = 1 << 20

// Server serves the retrieval API.
type Server struct {
	search     Searcher
	classifier QueryClassifier
	records    RecordReader
	health     HealthChecker
	logger     *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	classifier QueryClassifier,
	records RecordReader,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		search:     search,
		classifier: classifier,
		records:    records,
		health:     health,
		logger:     logger,
	}
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.SearchGet)
		r.Post("/search", s.SearchPost)
		r.Post("/classify", s.Classify)
		r.Get("/records/{type}/{id}", s.GetRecord)
	})
}

// SearchPost handles POST /v1/search.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	s.runSearch(w, r, &req)
}

// SearchGet handles GET /v1/search.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	var p SearchParams
	q := r.URL.Query()
	for _, b := range []struct {
		name     string
		required bool
		dest     any
	}{
		{"q", true, &p.Q},
		{"scope", false, &p.Scope},
		{"max_results", false, &p.MaxResults},
		{"data_sources", false, &p.DataSources},
		{"similarity_threshold", false, &p.SimilarityThreshold},
		{"method", false, &p.Method},
		{"strategy", false, &p.Strategy},
		{"no_cache", false, &p.NoCache},
		{"include_context", false, &p.IncludeContext},
	} {
		if err := runtime.BindQueryParameter("form", true, b.required, b.name, q, b.dest); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest,
				fmt.Sprintf("Invalid format for parameter %s: %s", b.name, err))
			return
		}
	}
	req := p.toSearchRequest()
	s.runSearch(w, r, &req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, body *SearchRequest) {
	if strings.TrimSpace(body.Query) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	req, err := body.toRequest()
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err))
		return
	}

	resp := s.search.Search(r.Context(), &req)
	if !resp.Success {
		logger.FromContext(r.Context()).Warn("Search pipeline failed",
			zap.String("error", resp.Error),
			zap.Bool("has_fallback", resp.Fallback != nil),
		)
	}

	out := SearchResponse{Response: resp}
	if body.IncludeContext {
		if resp.Success {
			out.Context = resp.ContextText()
		} else {
			out.Context = resp.Fallback.ContextText()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Classify handles POST /v1/classify.
func (s *Server) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "query is required")
		return
	}
	writeJSON(w, http.StatusOK, s.classifier.Classify(req.Query, req.OrganizationScope))
}

// GetRecord handles GET /v1/records/{type}/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	t, err := record.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	scope := strings.TrimSpace(r.URL.Query().Get("scope"))
	if scope == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "scope is required")
		return
	}

	rec, err := s.records.FindByID(r.Context(), scope, t, chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(&rec))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// decodeBody rejects unknown fields so typos in filter names surface as 400s.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := sonic.ConfigStd.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v) //nolint:wrapcheck // surfaced verbatim to the client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigStd.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// errorMapping ties a domain sentinel to its HTTP rendering. Only detailed
// mappings echo the wrapped message; the rest show the sentinel text alone.
type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
	detailed bool
}

var errorMappings = []errorMapping{
	{domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed, true},
	{domain.ErrUnknownRecordType, http.StatusBadRequest, CodeValidationFailed, true},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound, false},
	{domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch, false},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError, false},
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		s.logger.Warn("Request rejected", zap.Int("status", m.status), zap.Error(err))
		msg := m.sentinel.Error()
		if m.detailed {
			msg = err.Error()
		}
		writeError(w, m.status, m.code, msg)
		return
	}
	s.logger.Error("Unhandled request error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
