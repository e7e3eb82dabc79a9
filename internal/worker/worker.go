package worker

import (
	"context"
	"sync"
)

type Task interface{}

type HandlerFunc func(ctx context.Context, task Task) error

// Pool is a bounded worker pool. Submitted tasks are handled concurrently;
// Stop drains the queue and waits for in-flight handlers.
type Pool struct {
	numWorkers int
	tasks      chan Task
	handler    HandlerFunc
	wg         sync.WaitGroup
	done       <-chan struct{}
}

func NewPool(numWorkers int, bufferSize int, handler HandlerFunc) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		tasks:      make(chan Task, bufferSize),
		handler:    handler,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.done = ctx.Done()
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.handler(ctx, task)
		}
	}
}

// Submit queues a task. Returns false if the pool's context was cancelled
// first; workers stop pulling from the queue on cancellation, so blocking
// on a full queue then would never return.
func (p *Pool) Submit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	case <-p.done:
		return false
	}
}

func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
