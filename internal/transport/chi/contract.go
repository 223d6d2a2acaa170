package chi

import (
	"context"

	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/request"
	"github.com/victortong-git/opensoc-sub009/internal/domain/search/response"
	healthuc "github.com/victortong-git/opensoc-sub009/internal/usecase/health"
)

// Searcher runs the hybrid retrieval pipeline for a validated request.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) *response.Response
}

// QueryClassifier exposes the classifier for audit requests.
type QueryClassifier interface {
	Classify(text, scope string) query.Classification
}

// RecordReader fetches a single record.
type RecordReader interface {
	FindByID(ctx context.Context, scope string, t record.Type, id string) (record.Record, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
