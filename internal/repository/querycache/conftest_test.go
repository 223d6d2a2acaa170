package querycache

import (
	"context"
	"slices"
	"time"

	"github.com/victortong-git/opensoc-sub009/internal/db"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/result"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/strategy"
)

// fakeStore is an in-memory stand-in for the Redis store. TTLs are recorded
// but not enforced. PutCapped mirrors the server-side script.
type fakeStore struct {
	kv     map[string][]byte
	ttls   map[string]time.Duration
	lists  map[string][]string
	puts   int
	getErr error
	setErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		kv:    map[string][]byte{},
		ttls:  map[string]time.Duration{},
		lists: map[string][]string{},
	}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.kv[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.kv, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeStore) PutCapped(
	_ context.Context, key string, value []byte, ttl time.Duration, orderKey string, capacity int,
) (int64, error) {
	f.puts++
	if f.setErr != nil {
		return 0, f.setErr
	}
	f.kv[key] = value
	f.ttls[key] = ttl

	order := slices.DeleteFunc(f.lists[orderKey], func(v string) bool { return v == key })
	order = append(order, key)
	var evicted int64
	for len(order) > capacity {
		delete(f.kv, order[0])
		delete(f.ttls, order[0])
		order = order[1:]
		evicted++
	}
	f.lists[orderKey] = order
	f.ttls[orderKey] = ttl
	return evicted, nil
}

func (f *fakeStore) LRem(_ context.Context, key, value string) error {
	f.lists[key] = slices.DeleteFunc(f.lists[key], func(v string) bool { return v == value })
	return nil
}

func sampleResponse(id string) *response.Response {
	rec := &record.Record{
		ID:        id,
		Type:      record.Alert,
		Title:     "Beaconing to known C2",
		Status:    "open",
		CreatedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	return &response.Response{
		Results:      []result.Result{result.NewSimilar(rec, 0.82)},
		TotalFound:   1,
		StrategyUsed: strategy.SemanticSearch,
		Breakdown: []response.StrategyStat{
			{Strategy: strategy.SemanticSearch, FoundCount: 1, Confidence: 0.82},
		},
		Method:  method.Rank,
		Success: true,
	}
}
