package engine

import (
	"container/heap"
	"context"
	"sync"

	"github.com/archipmonitoring/globalscope-multiframe-sub000/pkg/errors"
)

// DefaultPoolWorkers is the worker count used when none is given.
const DefaultPoolWorkers = 4

// Task is the handle for work submitted to a Pool.
type Task struct {
	done chan struct{}
	err  error
}

// Wait blocks until the task finishes or ctx expires. The task keeps
// running after a Wait timeout; only its own context stops it.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the task finishes.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task's result. Only valid after Done is closed.
func (t *Task) Err() error {
	return t.err
}

// Pool runs submitted work on a fixed set of workers, highest priority
// first. The orchestrator dispatches runs through a Pool instead of
// spawning a goroutine per request, so total optimization concurrency is
// bounded.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  taskQueue
	seq    uint64
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts a pool with the given number of workers. Non-positive
// counts fall back to DefaultPoolWorkers.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultPoolWorkers
	}
	p := &Pool{}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit queues fn with the given priority (higher runs sooner; equal
// priorities run in submission order) and returns a handle to wait on.
// The fn receives ctx and must honor its cancellation.
func (p *Pool) Submit(ctx context.Context, priority int, fn func(context.Context) error) (*Task, error) {
	t := &Task{done: make(chan struct{})}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New(errors.ErrCodeConflict, "worker pool is closed")
	}
	p.seq++
	heap.Push(&p.queue, &poolItem{
		priority: priority,
		seq:      p.seq,
		ctx:      ctx,
		fn:       fn,
		task:     t,
	})
	p.cond.Signal()
	return t, nil
}

// Close stops accepting work, runs what is already queued, and waits for
// all workers to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.queue.Len() == 0 {
			p.mu.Unlock()
			return
		}
		item := heap.Pop(&p.queue).(*poolItem)
		p.mu.Unlock()

		// fn always runs, even with an expired context, so its cleanup
		// (lease release, terminal events) is never skipped.
		item.task.err = item.fn(item.ctx)
		close(item.task.done)
	}
}

// poolItem is one queued unit of work.
type poolItem struct {
	priority int
	seq      uint64
	ctx      context.Context
	fn       func(context.Context) error
	task     *Task
}

// taskQueue is a max-heap on priority, FIFO within equal priorities.
type taskQueue []*poolItem

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*poolItem)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
