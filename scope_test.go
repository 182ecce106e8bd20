package taskrt

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_JoinWaitsForAllSpawnedTasks(t *testing.T) {
	sched := newTestScheduler(t, 8)

	const n = 1000
	var completed atomic.Int64

	_, err := SyncWait(sched, func(ctx *TaskContext) (struct{}, error) {
		scope := NewScope()
		for i := 0; i < n; i++ {
			scope.Spawn(sched, func(ctx *TaskContext) {
				ctx.Yield()
				completed.Add(1)
			})
		}
		scope.Join(ctx)
		return struct{}{}, nil
	})

	require.NoError(t, err)
	assert.EqualValues(t, n, completed.Load())
}

func TestScope_JoinReturnsImmediatelyWhenAlreadyDrained(t *testing.T) {
	sched := newTestScheduler(t, 2)

	_, err := SyncWait(sched, func(ctx *TaskContext) (struct{}, error) {
		scope := NewScope()
		done := make(chan struct{})
		scope.Spawn(sched, func(ctx *TaskContext) { close(done) })
		// Yield rather than block: the spawned task may be queued on the
		// worker currently driving this one.
		for drained := false; !drained; {
			select {
			case <-done:
				drained = true
			default:
				ctx.Yield()
			}
		}
		time.Sleep(5 * time.Millisecond) // let onWorkFinished settle before Join
		scope.Join(ctx)
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestScope_WaitBlocksNonTaskGoroutine(t *testing.T) {
	sched := newTestScheduler(t, 4)

	scope := NewScope()
	var completed atomic.Int64
	for i := 0; i < 100; i++ {
		scope.Spawn(sched, func(ctx *TaskContext) {
			completed.Add(1)
		})
	}
	scope.Wait()
	assert.EqualValues(t, 100, completed.Load())
}

func TestOnExit_RunsDeferredCleanup(t *testing.T) {
	var ran bool
	func() {
		defer OnExit(func() { ran = true })()
	}()
	assert.True(t, ran)
}
