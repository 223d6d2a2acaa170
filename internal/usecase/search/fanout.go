package search

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/victortong-git/opensoc-sub009/internal/domain"
	"github.com/victortong-git/opensoc-sub009/internal/domain/record"
)

// PartialError reports per-source failures inside a branch that still
// produced results from its other sources.
type PartialError struct {
	Errs []error
}

func (e *PartialError) Error() string { return errors.Join(e.Errs...).Error() }

func (e *PartialError) Unwrap() []error { return e.Errs }

// fanOut runs fn once per record type. No call cancels another; values are
// returned in input order and failed types are reported as SourceErrors.
func fanOut[T any](
	ctx context.Context, types []record.Type,
	fn func(ctx context.Context, t record.Type) (T, error),
) ([]T, []error) {
	vals := make([]T, len(types))
	errs := make([]error, len(types))

	var g errgroup.Group
	for i, t := range types {
		g.Go(func() error {
			v, err := fn(ctx, t)
			if err != nil {
				errs[i] = &domain.SourceError{Source: string(t), Err: err}
				return nil
			}
			vals[i] = v
			return nil
		})
	}
	_ = g.Wait()

	var out []T
	var failed []error
	for i := range types {
		if errs[i] != nil {
			failed = append(failed, errs[i])
			continue
		}
		out = append(out, vals[i])
	}
	return out, failed
}

// settle decides what a branch returns given its per-source failures:
// every source failed means the branch failed; some failed means a partial result.
func settle[T any](vals []T, errs []error, attempted int) ([]T, error) {
	switch {
	case len(errs) == 0:
		return vals, nil
	case len(errs) >= attempted:
		return nil, errors.Join(errs...)
	}
	return vals, &PartialError{Errs: errs}
}
