package parallel

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a fixed set of goroutines running row-band work.
//
// Each worker owns a queue and steals from the others when its own queue
// is empty, which balances bands that finish at different speeds.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()
	done       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool

	// mu is held for reading while ExecuteAll queues work and for writing
	// while Close stops the pool, so nothing is queued after done closes.
	mu sync.RWMutex
}

// NewWorkerPool starts a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	mine := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drain(mine)
			return
		case work := <-mine:
			work()
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
				continue
			}
			select {
			case <-p.done:
				p.drain(mine)
				return
			case work := <-mine:
				work()
			}
		}
	}
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case work := <-queue:
			work()
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// ExecuteAll distributes work round-robin and waits for it to finish.
//
// Items that have not started when ctx is done are skipped, and
// ExecuteAll returns ctx.Err(). Items already running are not interrupted.
// A closed pool runs nothing and returns ErrPoolClosed. Work queued before
// a concurrent Close still runs to completion.
func (p *WorkerPool) ExecuteAll(ctx context.Context, work []func()) error {
	var completion sync.WaitGroup
	if err := p.submit(ctx, work, &completion); err != nil {
		return err
	}
	completion.Wait()
	return ctx.Err()
}

// submit queues work under the read lock. On cancellation it waits for the
// items already queued before returning ctx.Err().
func (p *WorkerPool) submit(ctx context.Context, work []func(), completion *sync.WaitGroup) error {
	p.mu.RLock()
	if !p.running.Load() {
		p.mu.RUnlock()
		return ErrPoolClosed
	}

	completion.Add(len(work))
	for i, fn := range work {
		wrapped := func() {
			defer completion.Done()
			if ctx.Err() != nil {
				return
			}
			fn()
		}
		select {
		case p.workQueues[i%p.workers] <- wrapped:
		case <-ctx.Done():
			// Nothing from i onward was queued.
			completion.Add(-(len(work) - i))
			p.mu.RUnlock()
			completion.Wait()
			return ctx.Err()
		}
	}
	p.mu.RUnlock()
	return nil
}

// Close stops accepting work, runs what is queued and stops the workers.
// It waits for any ExecuteAll that is still queueing. Close is safe to call
// multiple times.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.mu.Unlock()
		return
	}
	close(p.done)
	p.mu.Unlock()
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning reports whether the pool is accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}
