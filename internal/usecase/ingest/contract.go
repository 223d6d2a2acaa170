package ingest

import (
	"context"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
)

// RecordWriter stores records, replacing existing ones with the same identity.
type RecordWriter interface {
	Put(ctx context.Context, recs ...record.Record) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
