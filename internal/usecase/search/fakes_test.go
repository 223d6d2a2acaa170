package search

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/criteria"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

const testOrg = "org-1"

// --- Record store ---

type memStore struct {
	mu       sync.Mutex
	records  []record.Record
	fail     map[record.Type]error
	delay    map[record.Type]time.Duration
	lastCrit map[record.Type]criteria.Criteria
}

func newMemStore(rs ...record.Record) *memStore {
	return &memStore{
		records:  rs,
		fail:     map[record.Type]error{},
		delay:    map[record.Type]time.Duration{},
		lastCrit: map[record.Type]criteria.Criteria{},
	}
}

func (m *memStore) wait(ctx context.Context, t record.Type) error {
	m.mu.Lock()
	d, err := m.delay[t], m.fail[t]
	m.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *memStore) FindByID(ctx context.Context, scope string, t record.Type, id string) (record.Record, error) {
	if err := m.wait(ctx, t); err != nil {
		return record.Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Type == t && inScope(r, scope) && strings.EqualFold(r.ID, id) {
			return r, nil
		}
	}
	return record.Record{}, domain.ErrNotFound
}

func (m *memStore) FindByCriteria(
	ctx context.Context, scope string, t record.Type, c criteria.Criteria, limit, offset int,
) (record.Page, error) {
	if err := m.wait(ctx, t); err != nil {
		return record.Page{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCrit[t] = c
	var hits []record.Record
	for _, r := range m.records {
		if r.Type == t && inScope(r, scope) && c.Matches(&r) {
			hits = append(hits, r)
		}
	}
	sortRecent(hits)
	total := len(hits)
	hits = hits[min(offset, len(hits)):]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return record.Page{Records: hits, TotalCount: total}, nil
}

func (m *memStore) FindWithEmbedding(ctx context.Context, scope string, t record.Type, limit int) ([]record.Record, error) {
	if err := m.wait(ctx, t); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var hits []record.Record
	for _, r := range m.records {
		if r.Type == t && inScope(r, scope) && r.HasEmbedding() {
			hits = append(hits, r)
		}
	}
	sortRecent(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func inScope(r record.Record, scope string) bool {
	return scope == "" || r.OrganizationID == scope
}

func sortRecent(rs []record.Record) {
	slices.SortStableFunc(rs, func(a, b record.Record) int { return b.CreatedAt.Compare(a.CreatedAt) })
}

func rec(id string, t record.Type, mods ...func(*record.Record)) record.Record {
	r := record.Record{ID: id, Type: t, OrganizationID: testOrg, Title: "record " + id, CreatedAt: testNow.Add(-time.Hour)}
	for _, m := range mods {
		m(&r)
	}
	return r
}

func withSeverity(s int) func(*record.Record) { return func(r *record.Record) { r.Severity = s } }
func withStatus(s string) func(*record.Record) { return func(r *record.Record) { r.Status = s } }
func withIP(ip string) func(*record.Record) { return func(r *record.Record) { r.IPAddress = ip } }
func withTitle(s string) func(*record.Record) { return func(r *record.Record) { r.Title = s } }
func withAge(d time.Duration) func(*record.Record) { return func(r *record.Record) { r.CreatedAt = testNow.Add(-d) } }
func withVec(v ...float32) func(*record.Record) { return func(r *record.Record) { r.Embedding = v } }
func withOrg(org string) func(*record.Record) { return func(r *record.Record) { r.OrganizationID = org } }

// --- Embedder ---

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: f.vec}, nil
}

// --- Executors ---

type stubExecutor struct {
	s       strategy.Strategy
	results []result.Result
	err     error
	panics  bool
	block   bool
	limits  []int
	mu      sync.Mutex
}

func (e *stubExecutor) Strategy() strategy.Strategy { return e.s }

func (e *stubExecutor) Search(ctx context.Context, in Input) ([]result.Result, error) {
	e.mu.Lock()
	e.limits = append(e.limits, in.Limit)
	e.mu.Unlock()
	if e.panics {
		panic("boom")
	}
	if e.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	out := e.results
	if len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}

func (e *stubExecutor) calledLimits() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.limits)
}

func hit(id string, s strategy.Strategy, score float64) result.Result {
	r := record.Record{ID: id, Type: record.Alert, CreatedAt: testNow.Add(-time.Hour)}
	if s == strategy.SemanticSearch {
		return result.NewSimilar(&r, score)
	}
	return result.New(&r, score, s)
}

func hits(prefix string, n int, s strategy.Strategy, score float64) []result.Result {
	out := make([]result.Result, n)
	for i := range out {
		out[i] = hit(prefix+string(rune('a'+i)), s, score)
	}
	return out
}

// --- Cache ---

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*response.Response
	getErr  error
	puts    int
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]*response.Response{}} }

func (c *mapCache) Get(_ context.Context, key string) (*response.Response, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	r, ok := c.entries[key]
	return r, ok, nil
}

func (c *mapCache) Put(_ context.Context, key string, r *response.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = r.Clone()
	c.puts++
	return nil
}

func (c *mapCache) Evict(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func ids(rs []result.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
