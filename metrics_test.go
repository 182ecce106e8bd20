package taskrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_DisabledByDefault(t *testing.T) {
	sched, err := NewScheduler(WithWorkers(2))
	require.NoError(t, err)
	defer sched.Abort()

	snap := sched.Metrics()
	assert.Zero(t, snap)
}

func TestMetrics_TracksScheduledAndCompletedTasks(t *testing.T) {
	sched, err := NewScheduler(WithWorkers(2), WithMetrics(true))
	require.NoError(t, err)
	defer sched.Abort()

	task := Spawn(sched, func(ctx *TaskContext) (int, error) { return 1, nil })
	_, err = task.Join()
	require.NoError(t, err)

	snap := sched.Metrics()
	assert.GreaterOrEqual(t, snap.TasksScheduled, int64(1))
	assert.GreaterOrEqual(t, snap.TasksCompleted, int64(1))
}

func TestMetrics_TracksTimerLifecycle(t *testing.T) {
	sched, err := NewScheduler(WithWorkers(1), WithMetrics(true))
	require.NoError(t, err)
	defer sched.Abort()

	handle := sched.AddTimer(sched.Now().Add(time.Hour), delayTarget(func(time.Time) {}))
	snap := sched.Metrics()
	assert.Equal(t, int64(1), snap.TimersArmed)

	sched.CancelTimer(handle)
	snap = sched.Metrics()
	assert.Equal(t, int64(1), snap.TimersCanceled)
}
