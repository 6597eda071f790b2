package wp

import (
	"context"
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

// Pool runs tasks on a fixed set of workers. Tasks submitted under the same
// uid always land on the same worker and run in submission order.
type Pool struct {
	maxWorkers int
	taskQueues []chan func()
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

func NewPool(maxWorkers int, queueBuffer int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueBuffer < 1 {
		queueBuffer = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		maxWorkers: maxWorkers,
		taskQueues: make([]chan func(), maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < maxWorkers; i++ {
		p.taskQueues[i] = make(chan func(), queueBuffer)
		p.wg.Add(1)
		go p.startWorker(p.taskQueues[i])
	}

	return p
}

func (p *Pool) startWorker(queue chan func()) {
	defer p.wg.Done()
	for task := range queue {
		task()
	}
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return p.maxWorkers
}

// Submit queues task on the worker owning uid. It blocks while that
// worker's queue is full and reports false when the pool is stopped, in
// which case task never runs.
func (p *Pool) Submit(uid string, task func()) bool {
	if task == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	idx := fnv1a.HashString64(uid) % uint64(p.maxWorkers)
	select {
	case p.taskQueues[idx] <- task:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Stop rejects new tasks, runs the queued ones and waits for the workers
// to exit. It is safe to call more than once.
func (p *Pool) Stop() {
	p.cancel()
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	for _, q := range p.taskQueues {
		close(q)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
