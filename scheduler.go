package taskrt

import (
	"sync"
	"time"
)

// Scheduler is a work-stealing-style multi-threaded cooperative task
// runtime: a pool of worker goroutines each draining its own WorkQueue,
// fed by a single Reactor goroutine that owns the readiness poller and
// the timer heap. Unlike the C++ original this is wired from, a
// Scheduler is an ordinary injectable value rather than a process-wide
// singleton — construct one per process, test, or tenant as needed.
type Scheduler struct {
	phase   *phaseState
	cfg     *config
	workers []*worker
	placer  *placer
	reactor *Reactor
	metrics *Metrics
	logger  Logger
	clock   Clock

	wg sync.WaitGroup
}

// NewScheduler constructs and starts a Scheduler: it spawns its worker
// goroutines and its reactor goroutine immediately. Call Abort to shut
// it down.
func NewScheduler(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	workerCap := maxConcurrency
	if cfg.maxConcurrency > 0 {
		workerCap = cfg.maxConcurrency
	}
	workers := cfg.workers
	if workers > workerCap {
		workers = workerCap
	}
	if workers < 1 {
		workers = 1
	}

	var metrics *Metrics
	if cfg.metricsEnabled {
		metrics = newMetrics(workers)
	}

	reactor, err := NewReactor(cfg.clock, cfg.logger, metrics)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		phase:   newPhaseState(),
		cfg:     cfg,
		reactor: reactor,
		metrics: metrics,
		logger:  cfg.logger,
		clock:   cfg.clock,
	}

	s.workers = make([]*worker, workers)
	for i := range s.workers {
		s.workers[i] = newWorker(i, metrics, cfg.logger, &s.wg)
	}
	s.placer = newPlacer(s.workers)

	s.wg.Add(workers)
	for _, w := range s.workers {
		go w.run()
	}
	go s.reactor.Run()

	s.phase.Store(phaseRunning)
	return s, nil
}

// NumWorkers reports the number of worker goroutines the Scheduler was
// constructed with.
func (s *Scheduler) NumWorkers() int { return len(s.workers) }

// Metrics returns a point-in-time snapshot of scheduler counters, or the
// zero value if metrics collection was not enabled via WithMetrics.
func (s *Scheduler) Metrics() MetricsSnapshot {
	if s.metrics == nil {
		return MetricsSnapshot{}
	}
	return s.metrics.Snapshot()
}

// Schedule enqueues fn for execution per the placement rules in §4.4:
// warm-dispatch onto any worker with an empty queue, else the
// golden-ratio low-discrepancy sequence restricted to the workers named
// by affinity (0 meaning "any worker").
func (s *Scheduler) Schedule(fn func(), affinity uint64, priority QueuePriority) error {
	if !s.phase.CanAcceptWork() {
		return ErrSchedulerNotRunning
	}
	if s.metrics != nil {
		s.metrics.onTaskScheduled()
	}
	s.placer.place(affinity, priority, fn)
	return nil
}

// Relocate enqueues fn directly onto the named worker, bypassing the
// placement heuristic, at the lowest priority band.
func (s *Scheduler) Relocate(fn func(), workerIndex int) error {
	if !s.phase.CanAcceptWork() {
		return ErrSchedulerNotRunning
	}
	if s.metrics != nil {
		s.metrics.onTaskScheduled()
	}
	return s.placer.push(workerIndex, PriorityNormal, fn)
}

// selectWorker resolves an affinity mask to a concrete worker index per the
// placement heuristic, without enqueuing anything. Used by Task suspension
// points that need to know which worker a resume will land on before it is
// actually dispatched.
func (s *Scheduler) selectWorker(affinity uint64) int {
	return s.placer.selectWorker(affinity)
}

// pushToWorker enqueues fn directly onto the named worker.
func (s *Scheduler) pushToWorker(index int, priority QueuePriority, fn runnable) error {
	return s.placer.push(index, priority, fn)
}

// AddTimer arms a one-shot timer that invokes target.fire(now) when
// deadline elapses, returning a handle usable with CancelTimer.
func (s *Scheduler) AddTimer(deadline time.Time, target timerTarget) *TimerHandle {
	if s.metrics != nil {
		s.metrics.onTimerArmed()
	}
	return s.reactor.timers.Add(deadline, target)
}

// CancelTimer cancels a timer previously armed with AddTimer. Idempotent.
func (s *Scheduler) CancelTimer(handle *TimerHandle) bool {
	ok := s.reactor.timers.Cancel(handle)
	if ok && s.metrics != nil {
		s.metrics.onTimerCanceled()
	}
	return ok
}

// Register arms a fd-wait waiter with the reactor's poller, transitioning
// it CREATED→SCHEDULED per §6. deadline is the zero time for "no
// timeout".
func (s *Scheduler) Register(w *fdWaiter, deadline time.Time) error {
	if !s.phase.CanAcceptWork() {
		return ErrSchedulerNotRunning
	}
	return s.reactor.register(w, deadline)
}

// Unregister abandons a still-scheduled fd-wait waiter: CAS
// SCHEDULED→ABANDONED, detach from the poller, cancel its timer, and
// resume its waiting task with StatusAbandoned. A no-op if the waiter
// has already reached a terminal state.
func (s *Scheduler) Unregister(w *fdWaiter) bool {
	return w.abandon()
}

// Now returns the Scheduler's current time, per its configured Clock.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Abort stops accepting new work, drains and closes every worker queue,
// stops the reactor, and waits for every worker and the reactor to exit.
// Idempotent.
func (s *Scheduler) Abort() {
	if !s.phase.TryTransition(phaseRunning, phaseDraining) &&
		!s.phase.TryTransition(phaseCreated, phaseDraining) {
		// Already draining or stopped; nothing to do, but still make sure a
		// concurrent Abort finishes before this one returns.
		if s.phase.Load() == phaseStopped {
			return
		}
	}
	for _, w := range s.workers {
		w.queue.Close()
	}
	s.wg.Wait()
	if s.reactor.Armed() && s.logger != nil {
		s.logger.Debug("stopping reactor with outstanding timers or fd-waits")
	}
	s.reactor.Stop()
	s.phase.Store(phaseStopped)
}
