package taskrt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFDWaiter_ScheduleThenReadyFires(t *testing.T) {
	var gotStatus Status
	var gotErr error
	w := newFDWaiter(7, FDDirectionRead, PriorityNormal, func(status Status, err error) {
		gotStatus = status
		gotErr = err
	})
	heap := NewTimerHeap(nil)

	require.True(t, w.schedule(time.Time{}, heap))
	assert.Equal(t, fdStateScheduled, w.load())

	w.onReady(nil)
	assert.Equal(t, fdStateFired, w.load())
	assert.Equal(t, StatusFired, gotStatus)
	assert.NoError(t, gotErr)
}

func TestFDWaiter_ReadyWithErrnoReportsStatusError(t *testing.T) {
	var gotStatus Status
	w := newFDWaiter(7, FDDirectionWrite, PriorityNormal, func(status Status, err error) {
		gotStatus = status
	})
	heap := NewTimerHeap(nil)
	require.True(t, w.schedule(time.Time{}, heap))

	w.onReady(errors.New("connection refused"))
	assert.Equal(t, fdStateError, w.load())
	assert.Equal(t, StatusError, gotStatus)
}

func TestFDWaiter_TimeoutFiresBeforeReady(t *testing.T) {
	var gotStatus Status
	w := newFDWaiter(7, FDDirectionRead, PriorityNormal, func(status Status, err error) {
		gotStatus = status
	})
	heap := NewTimerHeap(nil)
	require.True(t, w.schedule(time.Now().Add(time.Hour), heap))

	w.fire(time.Now())
	assert.Equal(t, fdStateTimeout, w.load())
	assert.Equal(t, StatusTimeout, gotStatus)

	// A readiness event racing in after timeout must be a no-op.
	w.onReady(nil)
	assert.Equal(t, fdStateTimeout, w.load())
}

func TestFDWaiter_AbandonIsIdempotent(t *testing.T) {
	calls := 0
	w := newFDWaiter(7, FDDirectionRead, PriorityNormal, func(Status, error) { calls++ })
	heap := NewTimerHeap(nil)
	require.True(t, w.schedule(time.Time{}, heap))

	assert.True(t, w.abandon())
	assert.False(t, w.abandon())
	assert.Equal(t, 1, calls)
	assert.Equal(t, fdStateAbandoned, w.load())
}

func TestFDWaiter_AbandonAfterFireIsNoop(t *testing.T) {
	w := newFDWaiter(7, FDDirectionRead, PriorityNormal, func(Status, error) {})
	heap := NewTimerHeap(nil)
	require.True(t, w.schedule(time.Time{}, heap))
	w.onReady(nil)

	assert.False(t, w.abandon())
	assert.Equal(t, fdStateFired, w.load())
}

func TestFDWaiter_DoubleScheduleFails(t *testing.T) {
	w := newFDWaiter(7, FDDirectionRead, PriorityNormal, func(Status, error) {})
	heap := NewTimerHeap(nil)
	require.True(t, w.schedule(time.Time{}, heap))
	assert.False(t, w.schedule(time.Time{}, heap))
}
