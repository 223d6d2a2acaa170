// Package batch holds per-item outcomes of bulk record operations.
package batch

import "github.com/victortong-git/opensoc-sub009/internal/domain/record"

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one record in a batch operation.
type Result struct {
	id         string
	recordType record.Type
	status     ItemStatus
	embedded   bool
	err        error
}

// NewOK creates a successful batch result. embedded reports whether a
// vector was computed for the record during this operation.
func NewOK(t record.Type, id string, embedded bool) Result {
	return Result{id: id, recordType: t, status: StatusOK, embedded: embedded}
}

// NewError creates a failed batch result.
func NewError(t record.Type, id string, err error) Result {
	return Result{id: id, recordType: t, status: StatusError, err: err}
}

// ID returns the record identifier.
func (r Result) ID() string { return r.id }

// RecordType returns the record type.
func (r Result) RecordType() record.Type { return r.recordType }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Embedded reports whether the record was vectorized.
func (r Result) Embedded() bool { return r.embedded }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary counts outcomes across a batch.
type Summary struct {
	OK       int
	Failed   int
	Embedded int
}

// Summarize tallies results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.status {
		case StatusOK:
			s.OK++
			if r.embedded {
				s.Embedded++
			}
		case StatusError:
			s.Failed++
		}
	}
	return s
}
