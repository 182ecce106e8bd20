package taskrt

import "sync/atomic"

// Scope is a structured-concurrency container: tasks are spawned into
// it, and a single awaiter (Join or Wait) completes once every spawned
// task has completed. It is a near-direct port of the original's
// AsyncScope: an atomic counter initialized to 1 (the "awaiter
// placeholder" slot) plus a single stored continuation.
//
// A Scope must be joined (via Join or Wait) before it is discarded;
// dropping one that was never joined is a programmer error per
// spec.md §4.6.
type Scope struct {
	count        atomic.Uint64
	continuation func()
	joined       atomic.Bool
}

// NewScope constructs an empty Scope, ready to have work spawned into
// it.
func NewScope() *Scope {
	s := &Scope{}
	s.count.Store(1)
	return s
}

// Spawn runs fn as fire-and-forget work tracked by the scope: the
// scope's awaiter will not complete until fn returns. An unhandled
// panic in fn is fatal, matching Task's fire-and-forget contract.
func (sc *Scope) Spawn(s *Scheduler, fn func(ctx *TaskContext)) {
	sc.onWorkStarted()
	Go(s, func(ctx *TaskContext) {
		defer sc.onWorkFinished()
		fn(ctx)
	})
}

func (sc *Scope) onWorkStarted() {
	sc.count.Add(1)
}

func (sc *Scope) onWorkFinished() {
	if sc.count.Add(^uint64(0)) == 0 {
		if cont := sc.continuation; cont != nil {
			cont()
		}
	}
}

// Join suspends the calling task until every task spawned into the
// scope has completed. Must be called from within a task body.
func (sc *Scope) Join(ctx *TaskContext) {
	sc.joined.Store(true)
	sc.continuation = func() {
		ctx.handle.scheduleResume(ctx.sched, ctx.affinity, PriorityHigh)
	}
	if sc.count.Add(^uint64(0)) == 0 {
		// Every spawned task (if any) had already finished before Join was
		// called; the awaiter resumes without ever suspending.
		return
	}
	ctx.handle.suspend()
}

// Wait blocks the calling goroutine (which need not be a task) until
// every task spawned into the scope has completed, using a
// ManualResetEvent rather than the task rendezvous machinery. Intended
// for scopes joined from outside any task, mirroring SyncWait's role
// for individual tasks.
func (sc *Scope) Wait() {
	sc.joined.Store(true)
	event := NewManualResetEvent(false)
	sc.continuation = event.Set
	if sc.count.Add(^uint64(0)) == 0 {
		return
	}
	event.Wait()
}

// OnExit returns a cleanup function that runs fn when called; intended
// for use with defer to mirror the original's onScopeExit helper, e.g.
// `defer taskrt.OnExit(cleanup)()`.
func OnExit(fn func()) func() {
	return fn
}
