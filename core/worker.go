package core

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolStopped is returned by Submit after the pool has been stopped.
var ErrPoolStopped = errors.New("worker pool stopped")

// WorkerPool runs submitted tasks on a bounded set of goroutines. The engine
// uses it to evaluate independent events in parallel once the rule set and
// alias tables are frozen.
type WorkerPool struct {
	workers int
	taskCh  chan func()
	wg      sync.WaitGroup
	logger  *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

// NewWorkerPool creates a pool with the given parallelism and queue depth.
// Workers do not start until Start is called. Cancelling parentCtx stops the
// workers as Stop does.
func NewWorkerPool(parentCtx context.Context, workers, queueSize int, logger *zap.SugaredLogger) *WorkerPool {
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(parentCtx)
	return &WorkerPool{
		workers: workers,
		taskCh:  make(chan func(), queueSize),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines. Safe to call once.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

func (p *WorkerPool) run() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.taskCh:
			if !ok {
				return
			}
			task()
		case <-p.ctx.Done():
			// Drain what is already queued so Wait sees every submitted
			// task complete, then exit.
			for {
				select {
				case task, ok := <-p.taskCh:
					if !ok {
						return
					}
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit queues a task. Blocks when the queue is full, which bounds memory
// by producer backpressure rather than unbounded buffering. Submit must not
// be called concurrently with Stop.
func (p *WorkerPool) Submit(task func()) error {
	if p.ctx.Err() != nil {
		return ErrPoolStopped
	}
	select {
	case <-p.ctx.Done():
		return ErrPoolStopped
	case p.taskCh <- task:
		return nil
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.taskCh)
	p.wg.Wait()
	p.cancel()
}
