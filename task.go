package taskrt

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// ErrTaskNotJoinable is returned by Task.Join when called on a Task whose
// joinable flag is unset. Spawn and SpawnWithAffinity always return
// joinable tasks, and Go (fire-and-forget) returns no Task at all.
var ErrTaskNotJoinable = errors.New("taskrt: task is not joinable")

// taskHandle is the rendezvous point between a task's dedicated goroutine
// and whichever worker is currently driving it. A worker that pops a
// task's resume runnable sends on toTask and then blocks on toWorker,
// so the task body runs to its next suspension point (or completion)
// before that worker moves on to its next runnable — this is what gives
// tasks on the same worker their run-to-completion ordering despite
// each task living on its own goroutine.
type taskHandle struct {
	toTask   chan struct{}
	toWorker chan struct{}
	workerIdx int
}

// suspend hands control back to the driving worker and blocks until the
// task is resumed again.
func (h *taskHandle) suspend() {
	h.toWorker <- struct{}{}
	<-h.toTask
}

// scheduleResume arranges for this task to be resumed via the placement
// heuristic, recording which worker ends up driving it.
func (h *taskHandle) scheduleResume(s *Scheduler, affinity uint64, priority QueuePriority) {
	idx := s.selectWorker(affinity)
	_ = s.pushToWorker(idx, priority, func() {
		h.workerIdx = idx
		if s.metrics != nil {
			s.metrics.onTaskResumed()
		}
		h.toTask <- struct{}{}
		<-h.toWorker
	})
}

// scheduleRelocate arranges for this task to be resumed on a specific
// worker, bypassing the placement heuristic.
func (h *taskHandle) scheduleRelocate(s *Scheduler, index int) error {
	return s.pushToWorker(index, PriorityNormal, func() {
		h.workerIdx = index
		if s.metrics != nil {
			s.metrics.onTaskResumed()
		}
		h.toTask <- struct{}{}
		<-h.toWorker
	})
}

// TaskContext is passed to every task body and exposes the suspension
// points a task may use: delaying, waiting on fd readiness, yielding
// back to the scheduler, and relocating to a specific worker.
type TaskContext struct {
	sched    *Scheduler
	handle   *taskHandle
	affinity uint64
	priority QueuePriority
}

// CurrentWorker returns the index of the worker currently driving this
// task. Valid only while the task is actually running (i.e. from within
// the task body), since it changes across every suspension point.
func (c *TaskContext) CurrentWorker() int { return c.handle.workerIdx }

// Yield immediately re-enqueues the task at its current priority and
// affinity, suspending until some worker picks it back up.
func (c *TaskContext) Yield() { c.YieldWithPriority(c.priority) }

// YieldWithPriority re-enqueues the task at the given priority band.
func (c *TaskContext) YieldWithPriority(priority QueuePriority) {
	c.handle.scheduleResume(c.sched, c.affinity, priority)
	c.handle.suspend()
}

// YieldWithAffinity re-enqueues the task restricted to the given worker
// affinity mask (0 meaning any worker), which becomes the task's
// affinity for subsequent suspensions too.
func (c *TaskContext) YieldWithAffinity(affinity uint64) {
	c.affinity = affinity
	c.handle.scheduleResume(c.sched, affinity, c.priority)
	c.handle.suspend()
}

// Suspend is an alias for Yield, matching the vocabulary of spec.md
// §4.5's suspend(affinity, priority) awaitable.
func (c *TaskContext) Suspend() { c.Yield() }

// Relocate immediately re-enqueues the task onto the named worker,
// bypassing the placement heuristic, and suspends until it is resumed
// there.
func (c *TaskContext) Relocate(workerIndex int) error {
	if err := c.handle.scheduleRelocate(c.sched, workerIndex); err != nil {
		return err
	}
	c.handle.suspend()
	return nil
}

// Delay suspends the task for at least d before resuming it. d <= 0
// returns immediately without suspending, matching await_ready on a
// zero-length delay.
func (c *TaskContext) Delay(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := c.sched.Now().Add(d)
	target := delayTarget(func(time.Time) {
		c.handle.scheduleResume(c.sched, c.affinity, PriorityHigh)
	})
	c.sched.AddTimer(deadline, target)
	c.handle.suspend()
}

// delayTarget adapts a plain func(time.Time) to timerTarget for
// delay-only suspensions, which have no fd-wait event to route through.
type delayTarget func(time.Time)

func (f delayTarget) fire(now time.Time) { f(now) }

type fdWaitResult struct {
	status Status
	err    error
}

// beginFDWait registers a fd-wait waiter without suspending, returning
// the waiter (for cancellation) and a channel that receives exactly one
// result once the wait terminates.
func (c *TaskContext) beginFDWait(fd int, dir FDDirection, deadline time.Time) (*fdWaiter, <-chan fdWaitResult, error) {
	resultCh := make(chan fdWaitResult, 1)
	w := newFDWaiter(fd, dir, c.priority, func(status Status, err error) {
		resultCh <- fdWaitResult{status: status, err: err}
		c.handle.scheduleResume(c.sched, c.affinity, PriorityHigh)
	})
	if err := c.sched.Register(w, deadline); err != nil {
		return nil, nil, err
	}
	return w, resultCh, nil
}

// FDWait suspends the task until fd becomes ready for dir, the deadline
// elapses, or the poller reports an error. deadline's zero value means
// no timeout.
func (c *TaskContext) FDWait(fd int, dir FDDirection, deadline time.Time) (Status, error) {
	_, resultCh, err := c.beginFDWait(fd, dir, deadline)
	if err != nil {
		return StatusError, err
	}
	c.handle.suspend()
	res := <-resultCh
	return res.status, res.err
}

// FDWaitCancelable is the cancellable form of FDWait: it registers the
// wait immediately and returns a result function (which suspends the
// task until the wait terminates) and a cancel function (callable from
// any goroutine, e.g. on Socket.Close) that abandons the wait early.
func (c *TaskContext) FDWaitCancelable(fd int, dir FDDirection, deadline time.Time) (result func() (Status, error), cancel func() bool, err error) {
	w, resultCh, err := c.beginFDWait(fd, dir, deadline)
	if err != nil {
		return nil, nil, err
	}
	result = func() (Status, error) {
		c.handle.suspend()
		res := <-resultCh
		return res.status, res.err
	}
	cancel = func() bool { return w.abandon() }
	return result, cancel, nil
}

// Task is a stackless-resumable computation (emulated over a dedicated
// goroutine, see taskHandle) with a promise holding its eventual result.
type Task[T any] struct {
	id       uuid.UUID
	site     string
	sched    *Scheduler
	p        *promise
	joinable bool
}

// ID returns the task's diagnostic identifier.
func (t *Task[T]) ID() uuid.UUID { return t.id }

// Site returns the call site (file:line) that spawned this task, for
// diagnostics.
func (t *Task[T]) Site() string { return t.site }

// Done reports whether the task has settled (successfully or not).
func (t *Task[T]) Done() bool {
	_, _, ok := t.p.result()
	return ok
}

// Join blocks the calling goroutine until a joinable task completes,
// returning its result or error. Calling Join on a Task whose joinable
// flag is unset returns ErrTaskNotJoinable immediately.
func (t *Task[T]) Join() (T, error) {
	var zero T
	if !t.joinable {
		return zero, ErrTaskNotJoinable
	}
	t.p.join()
	value, err, _ := t.p.result()
	if err != nil {
		return zero, err
	}
	typed, _ := value.(T)
	return typed, nil
}

func callerSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func spawnTask[T any](s *Scheduler, joinable bool, affinity uint64, fn func(ctx *TaskContext) (T, error)) *Task[T] {
	p := newPromise(joinable)
	h := &taskHandle{toTask: make(chan struct{}), toWorker: make(chan struct{})}
	t := &Task[T]{id: uuid.New(), site: callerSite(3), sched: s, p: p, joinable: joinable}
	ctx := &TaskContext{sched: s, handle: h, affinity: affinity, priority: PriorityNormal}

	go func() {
		<-h.toTask
		defer func() {
			if r := recover(); r != nil {
				if s.metrics != nil {
					s.metrics.onTaskPanicked()
					s.metrics.onTaskCompleted()
				}
				if joinable {
					p.reject(&PanicError{Value: r})
				} else {
					panic(r)
				}
			}
			h.toWorker <- struct{}{}
		}()
		value, err := fn(ctx)
		if s.metrics != nil {
			s.metrics.onTaskCompleted()
		}
		if err != nil {
			p.reject(err)
		} else {
			p.resolve(value)
		}
	}()

	if s.metrics != nil {
		s.metrics.onTaskScheduled()
	}
	h.scheduleResume(s, affinity, PriorityNormal)
	return t
}

// Spawn starts a joinable task running fn on s, returning a handle whose
// Join blocks until fn returns.
func Spawn[T any](s *Scheduler, fn func(ctx *TaskContext) (T, error)) *Task[T] {
	return spawnTask[T](s, true, 0, fn)
}

// SpawnWithAffinity is Spawn restricted to the workers named by affinity.
func SpawnWithAffinity[T any](s *Scheduler, affinity uint64, fn func(ctx *TaskContext) (T, error)) *Task[T] {
	return spawnTask[T](s, true, affinity, fn)
}

// Go starts a fire-and-forget task: its result is discarded and an
// unhandled panic in fn crashes the process, per spec.md §4.5's
// fire-and-forget exception contract.
func Go(s *Scheduler, fn func(ctx *TaskContext)) {
	spawnTask[struct{}](s, false, 0, func(ctx *TaskContext) (struct{}, error) {
		fn(ctx)
		return struct{}{}, nil
	})
}

// Await suspends the calling task until t settles, returning its result
// or error. Must be called from within a task body (using that task's
// own TaskContext), not from an external goroutine — use SyncWait for
// that.
func Await[T any](ctx *TaskContext, t *Task[T]) (T, error) {
	var value T
	var err error
	t.p.onSettle(func(v any, e error) {
		if e != nil {
			err = e
		} else {
			value, _ = v.(T)
		}
		ctx.handle.scheduleResume(ctx.sched, ctx.affinity, PriorityHigh)
	})
	ctx.handle.suspend()
	return value, err
}
