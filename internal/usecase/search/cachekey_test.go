package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/method"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/request"
)

func mustRequest(t *testing.T, text string, opts request.Options) *request.Request {
	t.Helper()
	if opts.OrganizationScope == "" {
		opts.OrganizationScope = testOrg
	}
	req, err := request.New(text, opts)
	require.NoError(t, err)
	return &req
}

func TestCacheKey_Layout(t *testing.T) {
	th := 0.4
	req := mustRequest(t, "  Critical   ALERTS ", request.Options{
		MaxResults:          7,
		DataSources:         []record.Type{record.Incident, record.Alert},
		SimilarityThreshold: &th,
	})
	assert.Equal(t, "critical alerts|org-1|7|alert,incident|rank|0.4", CacheKey(req))
}

func TestCacheKey_SourceOrderIrrelevant(t *testing.T) {
	a := mustRequest(t, "q", request.Options{DataSources: []record.Type{record.Alert, record.Playbook}})
	b := mustRequest(t, "q", request.Options{DataSources: []record.Type{record.Playbook, record.Alert}})
	assert.Equal(t, CacheKey(a), CacheKey(b))
}

func TestCacheKey_DistinguishesOptions(t *testing.T) {
	loose, strict := 0.25, 0.9
	base := CacheKey(mustRequest(t, "q", request.Options{SimilarityThreshold: &loose}))

	for name, opts := range map[string]request.Options{
		"threshold":   {SimilarityThreshold: &strict},
		"scope":       {OrganizationScope: "org-2"},
		"max results": {MaxResults: 5},
		"sources":     {DataSources: []record.Type{record.Alert}},
		"method":      {ConsolidationMethod: method.Weighted},
	} {
		assert.NotEqual(t, base, CacheKey(mustRequest(t, "q", opts)), name)
	}
}
