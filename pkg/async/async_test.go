package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results := Map(context.Background(), items, 3, time.Second,
		func(ctx context.Context, n int) (int, error) {
			return n * 10, nil
		})

	require.Len(t, results, len(items))
	for i, res := range results {
		assert.Equal(t, items[i], res.Item)
		assert.Equal(t, items[i]*10, res.Out)
		assert.NoError(t, res.Err)
	}
}

func TestMapBoundsConcurrency(t *testing.T) {
	var active, peak int32
	results := Map(context.Background(), make([]int, 20), 2, time.Second,
		func(ctx context.Context, n int) (int, error) {
			cur := atomic.AddInt32(&active, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return 0, nil
		})

	require.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestMapCollectsErrors(t *testing.T) {
	wantErr := errors.New("item 2 failed")
	results := Map(context.Background(), []int{1, 2, 3}, 2, time.Second,
		func(ctx context.Context, n int) (int, error) {
			if n == 2 {
				return 0, wantErr
			}
			return n, nil
		})

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, wantErr)
	assert.NoError(t, results[2].Err)
}

func TestMapRecoversPanics(t *testing.T) {
	results := Map(context.Background(), []int{1, 2}, 2, time.Second,
		func(ctx context.Context, n int) (int, error) {
			if n == 2 {
				panic("boom")
			}
			return n, nil
		})

	assert.NoError(t, results[0].Err)
	var pErr *PanicError
	require.ErrorAs(t, results[1].Err, &pErr)
	assert.Equal(t, "boom", pErr.Value)
}

func TestMapAppliesPerItemTimeout(t *testing.T) {
	results := Map(context.Background(), []int{1}, 1, 10*time.Millisecond,
		func(ctx context.Context, n int) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Second):
				return n, nil
			}
		})

	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestMapUnblocksWhenFnIgnoresContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	results := Map(context.Background(), []int{1, 2}, 2, 20*time.Millisecond,
		func(ctx context.Context, n int) (int, error) {
			// Ignores cancellation, like an external tool adapter that hangs.
			<-release
			return n, nil
		})

	assert.Less(t, time.Since(start), time.Second, "Map must return at the deadline")
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.DeadlineExceeded)
	}
}

func TestGoRunsTask(t *testing.T) {
	done := make(chan struct{})
	Go(context.Background(), time.Second, "test-task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestGoRecoversPanic(t *testing.T) {
	ran := make(chan struct{})
	Go(context.Background(), time.Second, "panicking-task", func(ctx context.Context) error {
		defer close(ran)
		panic("boom")
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	// The panic is recovered inside the goroutine; reaching here without the
	// test process dying is the assertion.
}
