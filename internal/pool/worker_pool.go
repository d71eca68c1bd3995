// Package pool provides the bounded worker pool that drives background
// notification delivery, keeping fan-out off the request path without
// unbounded goroutine growth.
package pool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool runs submitted tasks on a fixed set of goroutines.
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	log        *zap.Logger
}

// NewWorkerPool creates a pool with maxWorkers goroutines and a queue of
// queueSize pending tasks.
func NewWorkerPool(maxWorkers, queueSize int, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
		log:        log,
	}
}

// Start launches the workers. They drain until Stop or context cancellation.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit enqueues a task, blocking while the queue is full.
func (p *WorkerPool) Submit(task func()) {
	p.taskQueue <- task
}

// TrySubmit enqueues a task, returning false immediately when the queue is
// full.
func (p *WorkerPool) TrySubmit(task func()) bool {
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for in-flight tasks.
func (p *WorkerPool) Stop() {
	close(p.taskQueue)
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
