// Package metrics holds the Prometheus collectors for the HTTP layer, the
// embedding chain and the retrieval pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "socretrieve"

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration, httpRequestsTotal, httpInFlight,
			EmbeddingRequestsTotal, EmbeddingRequestDuration, EmbeddingTokensTotal,
			EmbeddingErrorsTotal, EmbeddingDimensionMismatchTotal, EmbeddingCacheTotal,
			SearchesTotal, SearchDuration, ClassificationsTotal, BranchFailuresTotal, QueryCacheTotal,
		)
	})
}
