package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/request"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
	healthuc "github.com/victortong-git/opensoc-sub009/internal/usecase/health"
)

// --- Mocks ---

type mockSearcher struct {
	resp  *response.Response
	last  *request.Request
	panic bool
}

func (m *mockSearcher) Search(_ context.Context, req *request.Request) *response.Response {
	if m.panic {
		panic("boom")
	}
	m.last = req
	return m.resp
}

type mockClassifier struct{}

func (mockClassifier) Classify(text, _ string) query.Classification {
	cl := query.Default()
	cl.MatchedRules = []string{"semantic:" + text}
	return cl
}

type mockRecords struct {
	recs map[string]record.Record
}

func (m *mockRecords) FindByID(_ context.Context, _ string, t record.Type, id string) (record.Record, error) {
	r, ok := m.recs[string(t)+"/"+id]
	if !ok {
		return record.Record{}, domain.ErrNotFound
	}
	return r, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type testEnv struct {
	search  *mockSearcher
	health  *mockHealth
	handler http.Handler
}

func okResponse() *response.Response {
	return &response.Response{
		Results: []result.Result{{
			ID: "ALT-00123", RecordType: record.Alert, Score: 0.95, Strategy: strategy.SpecificRecord,
			Payload: map[string]any{"title": "Brute force"},
		}},
		TotalFound:   1,
		StrategyUsed: strategy.SpecificRecord,
		Method:       method.Rank,
		Success:      true,
	}
}

func newTestEnv(t *testing.T, apiKeys ...string) *testEnv {
	t.Helper()
	env := &testEnv{
		search: &mockSearcher{resp: okResponse()},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"records": healthuc.CheckOK},
		}},
	}
	records := &mockRecords{recs: map[string]record.Record{
		"alert/ALT-1": {
			ID: "ALT-1", Type: record.Alert, Title: "Mimikatz", Severity: record.SeverityCritical,
			CreatedAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	srv := NewServer(env.search, mockClassifier{}, records, env.health, nil)
	env.handler = NewRouter(srv, apiKeys, nil)
	return env
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Search ---

func TestSearchPost_OK(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("POST", "/v1/search", `{"organization_scope":"org-1","query":"show alert ALT-00123","max_results":5,"include_context":true}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["strategy_used"] != "specific_record" || body["success"] != true {
		t.Errorf("unexpected body: %v", body)
	}
	if ctx, _ := body["context"].(string); !strings.Contains(ctx, "ALT-00123") {
		t.Errorf("context block missing record: %q", ctx)
	}
	if env.search.last.MaxResults() != 5 || env.search.last.Text() != "show alert ALT-00123" {
		t.Errorf("request not forwarded: %+v", env.search.last)
	}
}

func TestSearchPost_ContextOmittedByDefault(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("POST", "/v1/search", `{"organization_scope":"org-1","query":"ransomware"}`)

	var body map[string]any
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if _, ok := body["context"]; ok {
		t.Error("context should be omitted unless requested")
	}
}

func TestSearchPost_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		code ErrorCode
	}{
		{"malformed json", `{"query":`, CodeBadRequest},
		{"unknown field", `{"organization_scope":"org-1","query":"x","limit":3}`, CodeBadRequest},
		{"empty query", `{"organization_scope":"org-1","query":"   "}`, CodeValidationFailed},
		{"unknown data source", `{"organization_scope":"org-1","query":"x","data_sources":["tickets"]}`, CodeValidationFailed},
		{"negative max results", `{"organization_scope":"org-1","query":"x","max_results":-1}`, CodeValidationFailed},
		{"bad method", `{"organization_scope":"org-1","query":"x","consolidation_method":"rrf"}`, CodeValidationFailed},
		{"threshold out of range", `{"organization_scope":"org-1","query":"x","similarity_threshold":1.5}`, CodeValidationFailed},
		{"missing scope", `{"query":"x"}`, CodeValidationFailed},
		{"blank scope", `{"organization_scope":"  ","query":"x"}`, CodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			rr := env.do("POST", "/v1/search", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if e := decodeError(t, rr); e.Code != tt.code {
				t.Errorf("code = %s, want %s (%s)", e.Code, tt.code, e.Message)
			}
			if env.search.last != nil {
				t.Error("search must not run for rejected requests")
			}
		})
	}
}

func TestSearchPost_UnknownDataSourceMessage(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("POST", "/v1/search", `{"organization_scope":"org-1","query":"x","data_sources":["tickets"]}`)
	if e := decodeError(t, rr); !strings.Contains(e.Message, "unknown record type") {
		t.Errorf("message = %q", e.Message)
	}
}

func TestSearchGet_BindsParams(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("GET",
		"/v1/search?q=critical+alerts&scope=org-1&max_results=7&data_sources=alerts&data_sources=Incident"+
			"&similarity_threshold=0.4&method=weighted&strategy=structured_filter&no_cache=true", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	req := env.search.last
	if req.Text() != "critical alerts" || req.Scope() != "org-1" || req.MaxResults() != 7 {
		t.Errorf("text/scope/max = %q/%q/%d", req.Text(), req.Scope(), req.MaxResults())
	}
	if got := req.DataSources(); !reflect.DeepEqual(got, []record.Type{record.Alert, record.Incident}) {
		t.Errorf("data sources = %v", got)
	}
	if req.SimilarityThreshold() != 0.4 || req.Method() != method.Weighted {
		t.Errorf("threshold/method = %v/%s", req.SimilarityThreshold(), req.Method())
	}
	if req.ForceStrategy() != strategy.StructuredFilter || req.CacheEnabled() {
		t.Errorf("force/cache = %s/%v", req.ForceStrategy(), req.CacheEnabled())
	}
}

func TestSearchGet_InvalidParams(t *testing.T) {
	env := newTestEnv(t)
	for _, target := range []string{
		"/v1/search",
		"/v1/search?q=x",
		"/v1/search?q=x&scope=org-1&max_results=many",
		"/v1/search?q=x&scope=org-1&no_cache=perhaps",
	} {
		rr := env.do("GET", target, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", target, rr.Code)
		}
	}
}

func TestSearch_FailedPipelineReturnsEnvelope(t *testing.T) {
	env := newTestEnv(t)
	fallback := okResponse()
	env.search.resp = &response.Response{Success: false, Error: "classifier panicked", Fallback: fallback}

	rr := env.do("POST", "/v1/search", `{"organization_scope":"org-1","query":"ransomware","include_context":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Success  bool            `json:"success"`
		Error    string          `json:"error"`
		Fallback json.RawMessage `json:"fallback"`
		Context  string          `json:"context"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Success || body.Error == "" || len(body.Fallback) == 0 {
		t.Errorf("unexpected envelope: %+v", body)
	}
	if !strings.Contains(body.Context, "ALT-00123") {
		t.Errorf("context should render the fallback results, got %q", body.Context)
	}
}

func TestSearch_PanicIsRecovered(t *testing.T) {
	env := newTestEnv(t)
	env.search.panic = true

	rr := env.do("POST", "/v1/search", `{"organization_scope":"org-1","query":"x"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeInternalError {
		t.Errorf("code = %s", e.Code)
	}
}

// --- Classify ---

func TestClassify(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("POST", "/v1/classify", `{"query":"ransomware"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var cl query.Classification
	if err := json.NewDecoder(rr.Body).Decode(&cl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cl.QueryType != query.SemanticSearch || len(cl.MatchedRules) != 1 {
		t.Errorf("unexpected classification: %+v", cl)
	}

	rr = env.do("POST", "/v1/classify", `{"query":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty query: status = %d, want 400", rr.Code)
	}
}

// --- Records ---

func TestGetRecord(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do("GET", "/v1/records/alerts/ALT-1?scope=org-1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var rec RecordResponse
	if err := json.NewDecoder(rr.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.ID != "ALT-1" || rec.Type != record.Alert || rec.HasEmbedding {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Payload["title"] != "Mimikatz" {
		t.Errorf("payload = %v", rec.Payload)
	}

	rr = env.do("GET", "/v1/records/alert/ALT-404?scope=org-1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeNotFound || e.Message != "not found" {
		t.Errorf("missing: %+v", e)
	}

	rr = env.do("GET", "/v1/records/ticket/T-1?scope=org-1", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad type: status = %d, want 400", rr.Code)
	}

	rr = env.do("GET", "/v1/records/alert/ALT-1", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing scope: status = %d, want 400", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeValidationFailed {
		t.Errorf("missing scope: %+v", e)
	}
}

// --- Health, metrics, routing ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		env := newTestEnv(t)
		env.health.report.Status = tt.status

		rr := env.do("GET", "/health", "")
		if rr.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.status, rr.Code, tt.want)
		}
		var body HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Status != string(tt.status) || body.Checks["records"] != "ok" {
			t.Errorf("unexpected body: %+v", body)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("GET", "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d", rr.Code)
	}
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("GET", "/v1/collections", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if e := decodeError(t, rr); e.Code != CodeNotFound {
		t.Errorf("code = %s", e.Code)
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do("GET", "/health", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_AuthApplied(t *testing.T) {
	env := newTestEnv(t, "secret")

	if rr := env.do("POST", "/v1/search", `{"organization_scope":"org-1","query":"x"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("search without token: status = %d, want 401", rr.Code)
	}
	if rr := env.do("GET", "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health should be exempt, got %d", rr.Code)
	}
}
