// Package tasks runs download jobs for the tracks in a queue with real-time progress reporting.
//
// # Components
//
//  1. [Queue] : the tracked list of entries. Each entry holds a bare track or a collection,
//     and every track carries a [models.Status] that only moves forward.
//
//  2. [JobQueue] and [WorkerPool] : an unbounded FIFO feeding 1 to 20 workers. Workers wait at
//     a pause gate, poll the queue every two seconds, recover panics around each job and exit on
//     a stop sentinel.
//
//  3. [Pipeline] : one track through acquire, transcode, tag, artwork and cleanup.
//     Acquire and transcode failures fail the track; tag and artwork failures are logged only.
//
//  4. [Controller] : submits every waiting track as a run, and exposes pause, resume and abort.
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct carries the phase, the item coordinate and status, and the aggregate
// [Progress]. Updates use select with default so a slow consumer never stalls a worker.
//
// # Persistence
//
// The optional [Recorder] interface receives run summaries and every track that reaches a terminal
// status. Recording errors are logged and never fail a track.
package tasks
