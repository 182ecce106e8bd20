// Package taskrt provides a work-stealing, multi-threaded cooperative task
// scheduler with an integrated I/O readiness reactor and timer wheel.
//
// # Architecture
//
// A [Scheduler] owns a fixed pool of worker goroutines, each with its own
// two-priority [WorkQueue], and a single [Reactor] goroutine that polls file
// descriptor readiness (the net subpackage's sockets wait on this) and drains a
// [TimerHeap] of pending delays. Tasks ([Task]) are stackless-resumable
// computations in spirit: suspension points ([TaskContext.Delay],
// [TaskContext.FDWait], awaiting another task, [Scope.Join],
// [TaskContext.Suspend], [TaskContext.Relocate]) hand
// control back to the worker without blocking an OS thread, and a wakeup
// re-enqueues the task's continuation onto a worker queue.
//
// # Placement
//
// New tasks are placed using a warm-dispatch scan (prefer an empty queue)
// falling back to a golden-ratio low-discrepancy sequence over the task's
// affinity mask, so load spreads across workers without a shared random
// source or adversarial clustering. [Scheduler.Relocate] bypasses placement
// entirely, pinning a task to one worker.
//
// # Platform support
//
// The reactor uses epoll on Linux and kqueue on Darwin. Other platforms
// get a stub poller (see poller_other.go) that returns
// [ErrPlatformUnsupported] from fd registration; timers and task scheduling
// work everywhere.
//
// # Structured concurrency and synchronization
//
// [Scope] tracks a set of spawned tasks and completes its [Scope.Join]
// awaiter only once every spawned task has completed. [SyncWait] lets a
// non-task goroutine block on an arbitrary awaitable by running it inside a
// throwaway task bound to a [ManualResetEvent].
//
// # Usage
//
//	sched, err := taskrt.NewScheduler(taskrt.WithWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sched.Abort()
//
//	result, err := taskrt.SyncWait(sched, func(ctx *taskrt.TaskContext) (int, error) {
//	    ctx.Delay(5 * time.Millisecond)
//	    return 42, nil
//	})
package taskrt
