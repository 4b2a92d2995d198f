// Package batch runs a slice of work items with bounded concurrency.
package batch

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MapLimit invokes fn on every item with at most limit calls in flight,
// returning results in input order regardless of completion order.
//
// Exactly max(1, min(limit, len(items))) workers are started; each claims
// the next unprocessed index and calls fn on it until the indices run out,
// so the in-flight count never exceeds limit. A failing item does not stop
// the other workers: every item is processed and per-item errors are joined
// into the returned error once all workers have finished.
func MapLimit[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}

	workers := limit
	if workers < 1 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	var next atomic.Int64
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= len(items) {
					return nil
				}
				r, err := fn(ctx, i, items[i])
				results[i] = r
				errs[i] = err
			}
		})
	}

	_ = g.Wait()
	return results, errors.Join(errs...)
}
