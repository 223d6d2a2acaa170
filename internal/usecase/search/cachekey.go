package search

import (
	"slices"
	"strconv"
	"strings"

	"github.com/victortong-git/opensoc-sub009/internal/domain/search/request"
)

// CacheKey composes the query-cache key: normalized text, scope,
// maxResults, sorted data sources, consolidation method and similarity
// threshold. Every option that changes the response is part of the key.
func CacheKey(req *request.Request) string {
	sources := make([]string, 0, len(req.DataSources()))
	for _, t := range req.DataSources() {
		sources = append(sources, string(t))
	}
	slices.Sort(sources)

	return strings.Join([]string{
		normalizeText(req.Text()),
		req.Scope(),
		strconv.Itoa(req.MaxResults()),
		strings.Join(sources, ","),
		string(req.Method()),
		strconv.FormatFloat(req.SimilarityThreshold(), 'g', -1, 64),
	}, "|")
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
