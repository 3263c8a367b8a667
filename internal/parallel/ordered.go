package parallel

import "context"

type result[T any] struct {
	v   T
	err error
}

// Ordered computes produce(i) for every i in [0, n) on the pool and hands
// the results to consume in index order, on the calling goroutine.
//
// Work is done in batches of twice the pool size. Ordered stops at the
// first error from produce or consume, or when ctx is done before the next
// batch starts; it returns the number of consumed items.
func Ordered[T any](ctx context.Context, p *WorkerPool, n int,
	produce func(i int) (T, error), consume func(i int, v T) error) (int, error) {
	batch := max(p.Workers()*2, 1)
	done := 0
	for start := 0; start < n; start += batch {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		end := min(start+batch, n)
		results := make([]result[T], end-start)
		work := make([]func(), end-start)
		for k := range work {
			work[k] = func() {
				results[k].v, results[k].err = produce(start + k)
			}
		}
		p.ExecuteAll(work)

		for k, r := range results {
			if r.err != nil {
				return done, r.err
			}
			if err := consume(start+k, r.v); err != nil {
				return done, err
			}
			done++
		}
	}
	return done, nil
}
