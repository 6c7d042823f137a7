package pipeline

import (
	"context"
	"sync"
)

// WorkerPool runs queued processing runs on a fixed number of goroutines.
type WorkerPool struct {
	workers    int
	taskQueue  chan *run
	workerFunc func(context.Context, *run)
	wg         sync.WaitGroup
}

func NewWorkerPool(workers, queueSize int, workerFunc func(context.Context, *run)) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		workers:    workers,
		taskQueue:  make(chan *run, queueSize),
		workerFunc: workerFunc,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// TrySubmit queues r without blocking and reports whether it was accepted.
func (wp *WorkerPool) TrySubmit(r *run) bool {
	select {
	case wp.taskQueue <- r:
		return true
	default:
		return false
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for {
		select {
		case r := <-wp.taskQueue:
			wp.workerFunc(ctx, r)

		case <-ctx.Done():
			return
		}
	}
}
