package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Recorder persists run summaries and every track that reaches a terminal status.
type Recorder interface {
	StartRun(ctx context.Context, run models.Run) error
	RecordDownload(ctx context.Context, d models.Download) error
	FinishRun(ctx context.Context, run models.Run) error
}

// ControllerOpts configures a [Controller]. Progress and Recorder are optional.
type ControllerOpts struct {
	Parallelism  int
	PollInterval time.Duration
	Logger       *log.Logger
	Progress     chan<- ProgressUpdate
	Recorder     Recorder
}

// Controller owns the worker pool and submits waiting tracks from a [Queue] as runs.
//
// At most one run is in flight. Pause and resume act on the pool gate; abort cancels
// in-flight work and drains pending jobs, leaving their tracks waiting.
type Controller struct {
	queue    *Queue
	pipeline *Pipeline
	jobs     *JobQueue
	pool     *WorkerPool
	logger   *log.Logger
	progress chan<- ProgressUpdate
	recorder Recorder

	poolCtx    context.Context
	poolCancel context.CancelFunc
	stop       atomic.Bool

	mu        sync.Mutex
	running   bool
	runID     string
	runCancel context.CancelCauseFunc
	done      chan struct{}
}

// NewController wires a pool of opts.Parallelism workers (clamped to 1..20) to pipeline.
func NewController(queue *Queue, pipeline *Pipeline, opts ControllerOpts) *Controller {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	jobs := NewJobQueue()
	poolCtx, poolCancel := context.WithCancel(context.Background())

	c := &Controller{
		queue:    queue,
		pipeline: pipeline,
		jobs:     jobs,
		pool: NewWorkerPool(jobs, opts.Parallelism, PoolOptions{
			PollInterval: opts.PollInterval,
			Logger:       opts.Logger,
		}),
		logger:     shared.WithLogger(opts.Logger, "component", "controller"),
		progress:   opts.Progress,
		recorder:   opts.Recorder,
		poolCtx:    poolCtx,
		poolCancel: poolCancel,
	}
	return c
}

// Start submits every waiting track, in scan order, as a new run and returns how many
// were queued. While a run is in flight it submits nothing and returns [shared.ErrAlreadyRunning].
func (c *Controller) Start(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return 0, shared.ErrAlreadyRunning
	}

	coords := c.queue.Waiting()
	c.stop.Store(false)
	if len(coords) == 0 {
		c.done = make(chan struct{})
		close(c.done)
		return 0, nil
	}

	c.pool.Start(c.poolCtx)

	runCtx, cancel := context.WithCancelCause(ctx)
	run := models.Run{ID: shared.GenerateID(), StartedAt: time.Now(), Total: len(coords)}
	c.running = true
	c.runID = run.ID
	c.runCancel = cancel
	c.done = make(chan struct{})

	if c.recorder != nil {
		if err := c.recorder.StartRun(context.WithoutCancel(ctx), run); err != nil {
			c.logger.Warn("could not record run start", "err", err)
		}
	}

	c.logger.Info("run started", "run", shared.ShortID(run.ID), "tracks", len(coords))
	sendProgress(c.progress, runStartedUpdate(run.ID, len(coords), c.queue.Progress()))

	var succeeded, failed atomic.Int64
	for _, coord := range coords {
		c.jobs.Enqueue(NewJob(coord, func(ctx context.Context) error {
			ctx, cancelJob := context.WithCancelCause(ctx)
			defer cancelJob(nil)
			if runCtx.Err() != nil {
				cancelJob(context.Cause(runCtx))
			}
			stopAfter := context.AfterFunc(runCtx, func() { cancelJob(context.Cause(runCtx)) })
			defer stopAfter()
			defer func() {
				if r := recover(); r != nil {
					c.queue.Fail(coord, fmt.Errorf("panic: %v", r))
					failed.Add(1)
					c.record(runCtx, run.ID, coord)
					panic(r)
				}
			}()

			err := c.pipeline.Run(ctx, c.queue, coord, func(s Stage) {
				sendProgress(c.progress, itemUpdate(run.ID, s, c.queue.Progress()))
			})
			if err != nil {
				failed.Add(1)
			} else {
				succeeded.Add(1)
			}
			c.record(runCtx, run.ID, coord)
			return err
		}))
	}

	go c.await(run, cancel, c.done, &succeeded, &failed)
	return len(coords), nil
}

// await waits for the run's jobs, then publishes the completion and releases Wait.
func (c *Controller) await(run models.Run, cancel context.CancelCauseFunc, done chan struct{}, succeeded, failed *atomic.Int64) {
	c.jobs.Join()
	cancel(nil)

	aborted := c.stop.Load()
	p := c.queue.Progress()
	run.FinishedAt = time.Now()
	run.Done = int(succeeded.Load())
	run.Failed = int(failed.Load())
	run.Aborted = aborted

	if c.recorder != nil {
		if err := c.recorder.FinishRun(context.Background(), run); err != nil {
			c.logger.Warn("could not record run finish", "err", err)
		}
	}

	c.mu.Lock()
	c.running = false
	c.runCancel = nil
	c.mu.Unlock()

	c.logger.Info("run finished", "run", shared.ShortID(run.ID), "done", run.Done, "failed", run.Failed, "aborted", aborted)
	sendProgress(c.progress, runFinishedUpdate(run.ID, p, aborted))
	close(done)
}

func (c *Controller) record(ctx context.Context, runID string, coord models.Coord) {
	if c.recorder == nil {
		return
	}
	t, err := c.queue.Track(coord)
	if err != nil || !t.Status.IsTerminal() {
		return
	}
	d := models.Download{
		ID:         shared.GenerateID(),
		RunID:      runID,
		Title:      t.Title,
		Artists:    t.ArtistLine(),
		Album:      t.Album,
		Collection: c.queue.CollectionTitle(coord),
		Platform:   t.Platform,
		SourceID:   t.SourceID,
		Status:     t.Status,
		OutputPath: t.OutputPath,
		Error:      t.Err,
		FinishedAt: time.Now(),
	}
	if err := c.recorder.RecordDownload(context.WithoutCancel(ctx), d); err != nil {
		c.logger.Warn("could not record download", "title", t.Title, "err", err)
	}
}

// Pause holds workers at the gate. In-flight tracks finish their current job.
func (c *Controller) Pause() { c.pool.Pause() }

// Resume reopens the gate.
func (c *Controller) Resume() { c.pool.Resume() }

// Paused reports whether the pool is paused.
func (c *Controller) Paused() bool { return c.pool.Paused() }

// Abort stops the current run: in-flight tracks fail with [shared.ErrAborted] and pending
// jobs are dropped, leaving their tracks waiting. It returns the number of dropped jobs.
func (c *Controller) Abort() int {
	c.mu.Lock()
	cancel := c.runCancel
	c.mu.Unlock()

	c.stop.Store(true)
	if cancel != nil {
		cancel(shared.ErrAborted)
	}
	n := c.pool.Drain()
	c.logger.Info("abort requested", "dropped", n)
	return n
}

// Wait blocks until the current run completes or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel closed when the current run completes, nil before the first Start.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Running reports whether a run is in flight.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// RunID returns the id of the current or last run.
func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

// Progress returns the aggregate queue progress.
func (c *Controller) Progress() Progress { return c.queue.Progress() }

// Snapshot returns a deep copy of the queue.
func (c *Controller) Snapshot() []models.Entry { return c.queue.Snapshot() }

// Queue returns the tracked queue.
func (c *Controller) Queue() *Queue { return c.queue }

// Close shuts the pool down gracefully. Pending jobs still run before the workers exit.
func (c *Controller) Close() {
	c.pool.Shutdown()
	c.poolCancel()
}
