package taskrt

import "sync/atomic"

// Metrics holds atomic counters for a running Scheduler. All fields are
// safe to read concurrently with the scheduler's operation; Snapshot takes
// a consistent-enough point-in-time copy for reporting (not a single
// atomic transaction across fields).
type Metrics struct {
	tasksScheduled atomic.Int64
	tasksResumed   atomic.Int64
	tasksCompleted atomic.Int64
	tasksPanicked  atomic.Int64
	timersArmed    atomic.Int64
	timersFired    atomic.Int64
	timersCanceled atomic.Int64
	fdWaitsActive  atomic.Int64
	fdWaitsFired   atomic.Int64
	queueDepth     []atomic.Int64
}

func newMetrics(workers int) *Metrics {
	return &Metrics{queueDepth: make([]atomic.Int64, workers)}
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to hold onto and
// compare across calls.
type MetricsSnapshot struct {
	TasksScheduled int64
	TasksResumed   int64
	TasksCompleted int64
	TasksPanicked  int64
	TimersArmed    int64
	TimersFired    int64
	TimersCanceled int64
	FDWaitsActive  int64
	FDWaitsFired   int64
	QueueDepth     []int64
}

// Snapshot returns a copy of the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	depths := make([]int64, len(m.queueDepth))
	for i := range m.queueDepth {
		depths[i] = m.queueDepth[i].Load()
	}
	return MetricsSnapshot{
		TasksScheduled: m.tasksScheduled.Load(),
		TasksResumed:   m.tasksResumed.Load(),
		TasksCompleted: m.tasksCompleted.Load(),
		TasksPanicked:  m.tasksPanicked.Load(),
		TimersArmed:    m.timersArmed.Load(),
		TimersFired:    m.timersFired.Load(),
		TimersCanceled: m.timersCanceled.Load(),
		FDWaitsActive:  m.fdWaitsActive.Load(),
		FDWaitsFired:   m.fdWaitsFired.Load(),
		QueueDepth:     depths,
	}
}

func (m *Metrics) onTaskScheduled()  { m.tasksScheduled.Add(1) }
func (m *Metrics) onTaskResumed()    { m.tasksResumed.Add(1) }
func (m *Metrics) onTaskCompleted()  { m.tasksCompleted.Add(1) }
func (m *Metrics) onTaskPanicked()   { m.tasksPanicked.Add(1) }
func (m *Metrics) onTimerArmed()     { m.timersArmed.Add(1) }
func (m *Metrics) onTimerFired()     { m.timersFired.Add(1) }
func (m *Metrics) onTimerCanceled()  { m.timersCanceled.Add(1) }
func (m *Metrics) onFDWaitStarted()  { m.fdWaitsActive.Add(1) }
func (m *Metrics) onFDWaitFinished() { m.fdWaitsActive.Add(-1) }
func (m *Metrics) onFDWaitFired()    { m.fdWaitsFired.Add(1) }

func (m *Metrics) setQueueDepth(worker int, depth int) {
	if m == nil || worker < 0 || worker >= len(m.queueDepth) {
		return
	}
	m.queueDepth[worker].Store(int64(depth))
}
