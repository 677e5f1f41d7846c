package worker

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool 固定数量的 worker 从同一个队列里逐个取任务
// 每个 worker 处理完一个任务后等待 interval 再取下一个，用于自我限速
type Pool[T any] struct {
	workerNum int
	interval  time.Duration
	stopped   atomic.Bool
}

// NewPool 创建 worker 池，workerNum 小于 1 时按 1 处理
func NewPool[T any](workerNum int, interval time.Duration) *Pool[T] {
	if workerNum < 1 {
		workerNum = 1
	}
	return &Pool[T]{workerNum: workerNum, interval: interval}
}

// Stop 停止派发新任务，已在执行的任务会继续完成
func (p *Pool[T]) Stop() {
	p.stopped.Store(true)
}

// Run 阻塞直到任务全部派发完毕、Stop 被调用或 ctx 被取消
// 实际启动的 worker 数为 min(workerNum, len(tasks))；返回未被派发的任务
func (p *Pool[T]) Run(ctx context.Context, tasks []T, handle func(ctx context.Context, workerID int, task T)) []T {
	if len(tasks) == 0 {
		return nil
	}

	queue := make(chan T, len(tasks))
	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < min(p.workerNum, len(tasks)); i++ {
		workerID := i
		g.Go(func() error {
			p.work(gctx, workerID, queue, handle)
			return nil
		})
	}
	_ = g.Wait()

	var remaining []T
	for task := range queue {
		remaining = append(remaining, task)
	}
	return remaining
}

func (p *Pool[T]) work(ctx context.Context, workerID int, queue <-chan T, handle func(ctx context.Context, workerID int, task T)) {
	first := true
	for {
		if p.stopped.Load() || ctx.Err() != nil {
			return
		}
		if len(queue) == 0 {
			return
		}

		if !first && p.interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.interval):
			}
			if p.stopped.Load() {
				return
			}
		}

		task, ok := <-queue
		if !ok {
			return
		}
		first = false
		handle(ctx, workerID, task)
	}
}
