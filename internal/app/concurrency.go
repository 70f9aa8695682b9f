package app

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// eachLimit calls fn for every item with at most limit calls in flight and
// returns their errors by index. One failure does not stop the rest. A limit
// <= 0 means unbounded.
func eachLimit[T any](ctx context.Context, limit int, items []T, fn func(context.Context, T) error) []error {
	errs := make([]error, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			errs[i] = fn(ctx, item)
			return nil
		})
	}

	_ = g.Wait()

	return errs
}
