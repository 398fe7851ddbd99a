package worker

import (
	"context"
	"fmt"
)

// Func adapts a plain function to the Job interface
type Func func(ctx context.Context) Result

// Execute calls f
func (f Func) Execute(ctx context.Context) Result {
	return f(ctx)
}

// ItemResult pairs the output of one batch item with its error
type ItemResult[R any] struct {
	Index int
	Value R
	Err   error
}

// GetError returns the item's error
func (r *ItemResult[R]) GetError() error {
	return r.Err
}

// Map runs fn over items on a bounded pool and returns one result per item, in item order.
// Items that never ran because ctx was cancelled carry the context error.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(context.Context, T) (R, error)) []ItemResult[R] {
	out := make([]ItemResult[R], len(items))
	if len(items) == 0 {
		return out
	}
	if workers > len(items) {
		workers = len(items)
	}

	pool := NewPoolWithContext(ctx, workers)
	pool.Start()

	for i, item := range items {
		out[i] = ItemResult[R]{Index: i, Err: context.Canceled}
		i, item := i, item
		pool.Submit(Func(func(ctx context.Context) (res Result) {
			r := &ItemResult[R]{Index: i}
			defer func() {
				if v := recover(); v != nil {
					r.Err = fmt.Errorf("item %d panicked: %v", i, v)
				}
				res = r
			}()
			r.Value, r.Err = fn(ctx, item)
			return r
		}))
	}

	for _, res := range pool.Wait() {
		if r, ok := res.(*ItemResult[R]); ok {
			out[r.Index] = *r
		}
	}
	if err := ctx.Err(); err != nil {
		for i := range out {
			if out[i].Err == context.Canceled {
				out[i].Err = err
			}
		}
	}
	return out
}
