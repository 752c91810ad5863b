package solver

import (
	"context"
	"sync"
)

// sweep runs fn(i) for every i in [0, n) across at most workers goroutines,
// returning the first error encountered (if any) after every in-flight call
// completes. This is the bounded-concurrency fan-out pattern the Tetris
// combo4 bot's MDP.NewMDP uses for its own per-bag state enumeration (a
// buffered semaphore channel), generalised to a reusable helper instead of
// one-off inline goroutines.
func sweep(ctx context.Context, workers, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	errs := make(chan error, 1)

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := fn(i); err != nil {
				select {
				case errs <- err:
				default:
				}
			}
		}(i)
	}

	wg.Wait()
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}
