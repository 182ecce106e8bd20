package taskrt

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, workers int) *Scheduler {
	t.Helper()
	sched, err := NewScheduler(WithWorkers(workers))
	require.NoError(t, err)
	t.Cleanup(sched.Abort)
	return sched
}

func TestSpawn_JoinReturnsResult(t *testing.T) {
	sched := newTestScheduler(t, 2)

	task := Spawn(sched, func(ctx *TaskContext) (int, error) {
		return 42, nil
	})
	v, err := task.Join()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, task.Done())
}

func TestSpawn_JoinPropagatesError(t *testing.T) {
	sched := newTestScheduler(t, 2)
	sentinel := errors.New("boom")

	task := Spawn(sched, func(ctx *TaskContext) (int, error) {
		return 0, sentinel
	})
	_, err := task.Join()
	assert.ErrorIs(t, err, sentinel)
}

func TestSpawn_JoinableTwiceReturnsSameResult(t *testing.T) {
	sched := newTestScheduler(t, 2)

	task := Spawn(sched, func(ctx *TaskContext) (int, error) {
		return 7, nil
	})
	v1, err1 := task.Join()
	v2, err2 := task.Join()
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, v1, v2)
}

func TestGo_FireAndForgetIsNotJoinable(t *testing.T) {
	sched := newTestScheduler(t, 2)
	done := make(chan struct{})
	Go(sched, func(ctx *TaskContext) { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fire-and-forget task never ran")
	}
}

func TestTask_JoinOnNonJoinableFails(t *testing.T) {
	sched := newTestScheduler(t, 2)

	var task *Task[int]
	ready := make(chan struct{})
	Go(sched, func(ctx *TaskContext) {
		task = Spawn(sched, func(ctx *TaskContext) (int, error) { return 1, nil })
		close(ready)
	})
	<-ready
	_, _ = task.Join()

	nonJoinable := Spawn(sched, func(ctx *TaskContext) (int, error) { return 0, nil })
	nonJoinable.joinable = false
	_, err := nonJoinable.Join()
	assert.ErrorIs(t, err, ErrTaskNotJoinable)
}

func TestAwait_WaitsForDependencyTask(t *testing.T) {
	sched := newTestScheduler(t, 4)

	outer := Spawn(sched, func(ctx *TaskContext) (int, error) {
		inner := Spawn(sched, func(ctx *TaskContext) (int, error) {
			ctx.Delay(10 * time.Millisecond)
			return 99, nil
		})
		return Await(ctx, inner)
	})
	v, err := outer.Join()
	require.NoError(t, err)
	assert.Equal(t, 99, v)
}

func TestTaskContext_YieldReturnsControlAndResumes(t *testing.T) {
	sched := newTestScheduler(t, 1)

	var order []int
	task := Spawn(sched, func(ctx *TaskContext) (int, error) {
		order = append(order, 1)
		ctx.Yield()
		order = append(order, 2)
		return 0, nil
	})
	_, err := task.Join()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, order)
}

func TestTaskContext_RelocateMovesWorker(t *testing.T) {
	sched := newTestScheduler(t, 4)

	var observed int
	task := Spawn(sched, func(ctx *TaskContext) (int, error) {
		if err := ctx.Relocate(3); err != nil {
			return 0, err
		}
		observed = ctx.CurrentWorker()
		return observed, nil
	})
	v, err := task.Join()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 3, observed)
}

func TestTaskContext_DelayZeroDoesNotSuspend(t *testing.T) {
	sched := newTestScheduler(t, 1)
	task := Spawn(sched, func(ctx *TaskContext) (int, error) {
		ctx.Delay(0)
		return 1, nil
	})
	v, err := task.Join()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSpawn_PanicInJoinableIsCapturedNotCrashed(t *testing.T) {
	sched := newTestScheduler(t, 2)

	task := Spawn(sched, func(ctx *TaskContext) (int, error) {
		panic("task exploded")
	})
	_, err := task.Join()
	require.Error(t, err)
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "task exploded", panicErr.Value)
}

func TestSpawn_ConcurrentTasksRunToCompletionPerWorker(t *testing.T) {
	sched := newTestScheduler(t, 1)

	const n = 50
	var completed atomic.Int64
	tasks := make([]*Task[int], n)
	for i := 0; i < n; i++ {
		i := i
		tasks[i] = Spawn(sched, func(ctx *TaskContext) (int, error) {
			ctx.Yield()
			completed.Add(1)
			return i, nil
		})
	}
	for i, task := range tasks {
		v, err := task.Join()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.EqualValues(t, n, completed.Load())
}
