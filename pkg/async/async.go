package async

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"
)

// Go executes fn in a goroutine with context cancellation, a timeout, and
// panic recovery. Use this instead of a bare `go func()` for fire-and-forget
// work such as audit writes.
func Go(parent context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log.Printf("[async] PANIC in %s: %v\n%s", taskName, r, debug.Stack())
			}
		}()

		if err := fn(ctx); err != nil {
			log.Printf("[async] error in %s: %v", taskName, err)
		}
	}()
}

// Result pairs an item with the outcome of processing it.
type Result[T, R any] struct {
	Item T
	Out  R
	Err  error
}

// Map processes items concurrently with at most `workers` goroutines, applying
// a per-item timeout. Results are returned in input order. A panic inside fn
// is converted into an error result rather than crashing the process. The
// timeout is enforced even when fn ignores its context: the item resolves to
// context.DeadlineExceeded at the deadline and the straggler goroutine is left
// to finish in the background, its result discarded.
func Map[T, R any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) (R, error)) []Result[T, R] {

	if workers <= 0 {
		workers = 1
	}

	results := make([]Result[T, R], len(items))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			itemCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan Result[T, R], 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("[async] PANIC processing item %d: %v\n%s", i, r, debug.Stack())
						done <- Result[T, R]{Item: item, Err: &PanicError{Value: r}}
					}
				}()
				out, err := fn(itemCtx, item)
				done <- Result[T, R]{Item: item, Out: out, Err: err}
			}()

			select {
			case res := <-done:
				results[i] = res
			case <-itemCtx.Done():
				results[i] = Result[T, R]{Item: item, Err: itemCtx.Err()}
			}
		}(i, item)
	}

	wg.Wait()
	return results
}

// PanicError wraps a recovered panic value as an error.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
