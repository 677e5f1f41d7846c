package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolRun(t *testing.T) {
	t.Run("processes every task exactly once", func(t *testing.T) {
		pool := NewPool[int](3, 0)
		tasks := make([]int, 50)
		for i := range tasks {
			tasks[i] = i
		}

		var mu sync.Mutex
		seen := make(map[int]int)
		remaining := pool.Run(context.Background(), tasks, func(_ context.Context, _ int, task int) {
			mu.Lock()
			seen[task]++
			mu.Unlock()
		})

		assert.Empty(t, remaining)
		assert.Len(t, seen, 50)
		for task, n := range seen {
			assert.Equal(t, 1, n, "task %d", task)
		}
	})

	t.Run("never starts more workers than tasks", func(t *testing.T) {
		pool := NewPool[int](10, 0)
		var workers sync.Map
		pool.Run(context.Background(), []int{1, 2}, func(_ context.Context, workerID int, _ int) {
			workers.Store(workerID, true)
			time.Sleep(10 * time.Millisecond)
		})

		count := 0
		workers.Range(func(_, _ any) bool {
			count++
			return true
		})
		assert.LessOrEqual(t, count, 2)
	})

	t.Run("stop halts dispatch but finishes in-flight work", func(t *testing.T) {
		pool := NewPool[int](1, 0)
		var processed []int
		remaining := pool.Run(context.Background(), []int{1, 2, 3, 4, 5}, func(_ context.Context, _ int, task int) {
			processed = append(processed, task)
			if task == 3 {
				pool.Stop()
			}
		})

		assert.Equal(t, []int{1, 2, 3}, processed)
		assert.Equal(t, []int{4, 5}, remaining)
	})

	t.Run("waits interval between tasks of the same worker", func(t *testing.T) {
		pool := NewPool[int](1, 20*time.Millisecond)
		start := time.Now()
		pool.Run(context.Background(), []int{1, 2, 3}, func(context.Context, int, int) {})

		assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	})

	t.Run("cancelled context stops dispatch", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		pool := NewPool[int](1, 0)
		var calls atomic.Int32
		remaining := pool.Run(ctx, []int{1, 2, 3}, func(context.Context, int, int) {
			calls.Add(1)
			cancel()
		})

		assert.Equal(t, int32(1), calls.Load())
		assert.Len(t, remaining, 2)
	})
}
