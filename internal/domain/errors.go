package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest signals a search request that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnknownRecordType signals a data source that is not a known record type.
	ErrUnknownRecordType = errors.New("unknown record type")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrBranchTimeout signals a search branch that exceeded its time budget.
	ErrBranchTimeout = errors.New("search branch timed out")
	// ErrNoExecutor signals a strategy with no executor behind it.
	ErrNoExecutor = errors.New("no executor for strategy")
)

// SourceError records the failure of a single data source inside a strategy.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s", e.Source, e.Err.Error())
}

func (e *SourceError) Unwrap() error { return e.Err }
