package tasks

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// DefaultPollInterval bounds how long an idle worker blocks on the queue before re-checking the pause gate.
const DefaultPollInterval = 2 * time.Second

// PoolOptions configures a [WorkerPool].
type PoolOptions struct {
	PollInterval time.Duration
	Logger       *log.Logger
}

// WorkerPool runs jobs from a [JobQueue] on a fixed set of goroutines behind a pause gate.
type WorkerPool struct {
	queue  *JobQueue
	size   int
	poll   time.Duration
	logger *log.Logger

	mu      sync.Mutex
	gate    chan struct{} // closed while the pool is running
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a pool of size workers, clamped to 1..20.
func NewWorkerPool(queue *JobQueue, size int, opts PoolOptions) *WorkerPool {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	gate := make(chan struct{})
	close(gate)
	return &WorkerPool{
		queue:  queue,
		size:   shared.ClampParallelism(size),
		poll:   opts.PollInterval,
		logger: shared.WithLogger(opts.Logger, "component", "pool"),
		gate:   gate,
	}
}

// Size returns the number of workers.
func (p *WorkerPool) Size() int { return p.size }

// Start launches the workers. Later calls do nothing.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	for range p.size {
		id := shared.GenerateID()
		p.wg.Add(1)
		go p.work(ctx, id)
	}
	p.logger.Debug("pool started", "workers", p.size)
}

func (p *WorkerPool) work(ctx context.Context, id string) {
	defer p.wg.Done()
	logger := shared.WithLogger(p.logger, "worker", shared.ShortID(id))

	for {
		if err := p.waitGate(ctx); err != nil {
			logger.Debug("worker exiting", "reason", err)
			return
		}

		job, gen, ok := p.queue.take(p.poll)
		if !ok {
			continue
		}
		if job.IsStop() {
			p.queue.Done()
			logger.Debug("worker stopped")
			return
		}
		if p.Paused() {
			if !p.queue.requeue(job, gen) {
				logger.Debug("dropped job drained while paused", "job", shared.ShortID(job.ID))
			}
			continue
		}

		p.execute(ctx, logger, job)
	}
}

// execute runs job, recovering panics. The job is always marked done.
func (p *WorkerPool) execute(ctx context.Context, logger *log.Logger, job Job) {
	defer p.queue.Done()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "job", shared.ShortID(job.ID), "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := job.Run(ctx); err != nil {
		logger.Warn("job failed", "job", shared.ShortID(job.ID), "coord", job.Coord, "err", err)
	}
}

func (p *WorkerPool) waitGate(ctx context.Context) error {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause stops workers from taking new jobs. Running jobs finish.
func (p *WorkerPool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if isClosed(p.gate) {
		p.gate = make(chan struct{})
		p.logger.Info("paused")
	}
}

// Resume lets workers take jobs again.
func (p *WorkerPool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !isClosed(p.gate) {
		close(p.gate)
		p.logger.Info("resumed")
	}
}

// Paused reports whether the gate is closed.
func (p *WorkerPool) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !isClosed(p.gate)
}

// Drain discards every pending job and returns how many were dropped.
func (p *WorkerPool) Drain() int {
	n := p.queue.Drain()
	if n > 0 {
		p.logger.Info("drained pending jobs", "count", n)
	}
	return n
}

// Shutdown reopens the gate, sends one stop sentinel per worker, and waits for the workers
// and the queue. Jobs queued ahead of the sentinels still run.
func (p *WorkerPool) Shutdown() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	if !isClosed(p.gate) {
		close(p.gate)
	}
	p.mu.Unlock()

	if started {
		for range p.size {
			p.queue.Enqueue(stopJob())
		}
		p.wg.Wait()
	}
	if n := p.queue.purge(); n > 0 {
		p.logger.Debug("discarded jobs left after shutdown", "count", n)
	}
	p.queue.Join()
	p.logger.Debug("pool shut down")
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
