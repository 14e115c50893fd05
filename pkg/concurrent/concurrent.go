package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ForEach runs action for every element of items on at most workers
// goroutines (unbounded when workers <= 0). The first error cancels the
// context handed to the remaining actions and is returned.
func ForEach[T any](ctx context.Context, items []T, workers int, action func(ctx context.Context, idx int, item T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for idx, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return action(gctx, idx, item)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ParallelMap applies mapFn to each element in parallel, preserving order.
// The workers parameter bounds the number of goroutines.
func ParallelMap[T any, R any](items []T, workers int, mapFn func(T) R) []R {
	out := make([]R, len(items))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for idx, val := range items {
		g.Go(func() error {
			out[idx] = mapFn(val)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
