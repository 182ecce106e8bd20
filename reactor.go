package taskrt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Reactor is the scheduler's single dedicated readiness-polling goroutine.
// It owns the fd poller and the timer heap, computes a dynamic poll
// timeout from the heap's next deadline, dispatches fd readiness to
// waiters, and drains expired timers every iteration. A self-wake fd lets
// any other goroutine interrupt an in-progress poll (new timer armed, new
// fd registered, shutdown requested).
type Reactor struct {
	poller  *fastPoller
	timers  *TimerHeap
	clock   Clock
	logger  Logger
	metrics *Metrics

	wakeRead, wakeWrite int

	running atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	waiters map[int]*fdWaiter
}

// NewReactor constructs a Reactor. Start must be called to begin polling.
func NewReactor(clock Clock, logger Logger, metrics *Metrics) (*Reactor, error) {
	poller, err := newPoller()
	if err != nil {
		return nil, err
	}
	wakeRead, wakeWrite, err := newSelfWakeFD()
	if err != nil {
		_ = poller.Close()
		return nil, err
	}
	if wakeRead >= 0 {
		// Registered with a nil waiter: the poll returns when it becomes
		// readable, dispatch skips it, and Run drains it.
		if err := poller.RegisterFD(wakeRead, FDDirectionRead, nil); err != nil {
			closeSelfWakeFD(wakeRead, wakeWrite)
			_ = poller.Close()
			return nil, err
		}
	}
	r := &Reactor{
		poller:    poller,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		wakeRead:  wakeRead,
		wakeWrite: wakeWrite,
		done:      make(chan struct{}),
		waiters:   make(map[int]*fdWaiter),
	}
	r.timers = NewTimerHeap(func() { r.wake(wakeReasonWork) })
	return r, nil
}

// wakeReason distinguishes why a poll was interrupted, for logging only —
// it has no effect on how the interrupt itself is delivered.
type wakeReason int

const (
	wakeReasonWork wakeReason = iota
	wakeReasonShutdown
)

// wake interrupts an in-progress (or about to start) poll, so a newly
// armed timer or registered fd is accounted for in the next wait timeout.
func (r *Reactor) wake(reason wakeReason) {
	if r.logger != nil && reason == wakeReasonShutdown {
		r.logger.Debug("reactor waking for shutdown")
	}
	if r.wakeWrite >= 0 {
		signalSelfWake(r.wakeWrite)
	}
}

// Armed reports whether the reactor currently has at least one outstanding
// fd-wait registration or armed timer. Scheduler.Abort uses this only to
// decide what to log; Stop always pokes the reactor regardless.
func (r *Reactor) Armed() bool {
	r.mu.Lock()
	n := len(r.waiters)
	r.mu.Unlock()
	return n > 0 || r.timers.Len() > 0
}

// Run executes the reactor loop until Stop is called. It is intended to
// run on its own goroutine.
func (r *Reactor) Run() {
	r.running.Store(true)
	defer close(r.done)
	for r.running.Load() {
		timeout := r.computeWaitTimeout()
		_, err := r.poller.PollAndDispatch(timeout)
		if err != nil && r.logger != nil {
			r.logger.Warn("reactor poll error", F("err", err))
		}
		drainSelfWake(r.wakeRead)
		r.drainExpiredTimers()
	}
}

// Stop signals the reactor to exit and waits for Run to return.
func (r *Reactor) Stop() {
	r.running.Store(false)
	r.wake(wakeReasonShutdown)
	<-r.done
	_ = r.poller.Close()
	closeSelfWakeFD(r.wakeRead, r.wakeWrite)
}

// computeWaitTimeout returns the number of milliseconds until the next
// timer deadline, 0 if one has already elapsed, or -1 (block
// indefinitely) if no timers are armed.
func (r *Reactor) computeWaitTimeout() int {
	deadline, ok := r.timers.PeekDeadline()
	if !ok {
		return -1
	}
	d := deadline.Sub(r.clock.Now())
	if d <= 0 {
		return 0
	}
	ms := d.Milliseconds()
	if ms > int64(1<<31-1) {
		ms = 1<<31 - 1
	}
	return int(ms)
}

func (r *Reactor) drainExpiredTimers() {
	now := r.clock.Now()
	for _, e := range r.timers.DrainExpired(now) {
		if r.metrics != nil {
			r.metrics.onTimerFired()
		}
		e.target.fire(now)
	}
}

// register arms a fd-wait waiter with the poller (and a deadline timer, if
// requested), transitioning it CREATED→SCHEDULED.
func (r *Reactor) register(w *fdWaiter, deadline time.Time) error {
	w.reactor = r
	if !w.schedule(deadline, r.timers) {
		return ErrDoubleResume
	}
	r.mu.Lock()
	r.waiters[w.fd] = w
	r.mu.Unlock()
	if err := r.poller.RegisterFD(w.fd, w.direction, w); err != nil {
		r.mu.Lock()
		delete(r.waiters, w.fd)
		r.mu.Unlock()
		return err
	}
	if r.metrics != nil {
		r.metrics.onFDWaitStarted()
	}
	r.wake(wakeReasonWork)
	return nil
}

// unregister detaches a waiter from the poller once it has terminated.
func (r *Reactor) unregister(w *fdWaiter) {
	r.mu.Lock()
	delete(r.waiters, w.fd)
	r.mu.Unlock()
	_ = r.poller.UnregisterFD(w.fd)
	if r.metrics != nil {
		r.metrics.onFDWaitFinished()
		if w.load() == fdStateFired || w.load() == fdStateError {
			r.metrics.onFDWaitFired()
		}
	}
}
