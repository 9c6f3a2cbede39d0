package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// Job is one unit of work for the pool: a closure bound to the queue coordinate it processes.
type Job struct {
	ID    string
	Coord models.Coord
	run   func(ctx context.Context) error
	stop  bool
}

// NewJob creates a job with a fresh id.
func NewJob(coord models.Coord, run func(ctx context.Context) error) Job {
	return Job{ID: shared.GenerateID(), Coord: coord, run: run}
}

// stopJob is the sentinel that tells exactly one worker to exit.
func stopJob() Job {
	return Job{ID: "stop", stop: true}
}

// IsStop reports whether j is the shutdown sentinel.
func (j Job) IsStop() bool { return j.stop }

// Run executes the job body. A job without a body succeeds.
func (j Job) Run(ctx context.Context) error {
	if j.run == nil {
		return nil
	}
	return j.run(ctx)
}

// JobQueue is an unbounded FIFO of jobs with an outstanding counter.
//
// Enqueue increments the counter and Done decrements it, so Join returns once every
// enqueued job (sentinels included) has been dequeued and marked done, or drained.
type JobQueue struct {
	mu          sync.Mutex
	items       []Job
	outstanding int
	drains      uint64        // bumped by every Drain and purge
	wake        chan struct{} // closed and replaced on every push
	idle        chan struct{} // closed while outstanding is zero
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	idle := make(chan struct{})
	close(idle)
	return &JobQueue{wake: make(chan struct{}), idle: idle}
}

// Enqueue appends job and counts it as outstanding.
func (q *JobQueue) Enqueue(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.outstanding == 0 {
		q.idle = make(chan struct{})
	}
	q.outstanding++
	q.items = append(q.items, job)
	q.broadcast()
}

// requeue puts a job taken at drain generation gen back at the head without touching
// the counter. When the queue was drained since, the job is dropped and released instead,
// and requeue reports false.
func (q *JobQueue) requeue(job Job, gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.drains {
		q.release(1)
		return false
	}
	q.items = append([]Job{job}, q.items...)
	q.broadcast()
	return true
}

// broadcast wakes every blocked Dequeue. Callers hold mu.
func (q *JobQueue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Dequeue removes the head job, waiting up to timeout for one to arrive.
// The boolean is false when the timeout elapsed first.
func (q *JobQueue) Dequeue(timeout time.Duration) (Job, bool) {
	job, _, ok := q.take(timeout)
	return job, ok
}

// take is Dequeue that also returns the drain generation the job was taken at.
func (q *JobQueue) take(timeout time.Duration) (Job, uint64, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = Job{}
			q.items = q.items[1:]
			gen := q.drains
			q.mu.Unlock()
			return job, gen, true
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return Job{}, 0, false
		}
	}
}

// Done marks one dequeued job finished. It panics when called more often than jobs were enqueued.
func (q *JobQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.release(1)
}

// release decrements the counter by n. Callers hold mu.
func (q *JobQueue) release(n int) {
	if n == 0 {
		return
	}
	q.outstanding -= n
	if q.outstanding < 0 {
		panic("tasks: JobQueue.Done called more times than jobs were enqueued")
	}
	if q.outstanding == 0 {
		close(q.idle)
	}
}

// Idle returns a channel that is closed once no jobs are outstanding.
func (q *JobQueue) Idle() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idle
}

// Join blocks until every outstanding job is done.
func (q *JobQueue) Join() {
	<-q.Idle()
}

// Drain removes every pending job except shutdown sentinels and returns how many were removed.
func (q *JobQueue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	removed := 0
	for _, j := range q.items {
		if j.IsStop() {
			kept = append(kept, j)
			continue
		}
		removed++
	}
	clear(q.items[len(kept):])
	q.items = kept
	q.drains++
	q.release(removed)
	return removed
}

// purge removes every pending job, sentinels included.
func (q *JobQueue) purge() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = nil
	q.drains++
	q.release(n)
	return n
}

// Len returns the number of pending jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Outstanding returns the number of jobs enqueued but not yet done.
func (q *JobQueue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}
