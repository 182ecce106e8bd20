package taskrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTarget struct {
	name  string
	fired *[]string
}

func (n namedTarget) fire(time.Time) { *n.fired = append(*n.fired, n.name) }

func TestTimerHeap_DrainsInDeadlineOrder(t *testing.T) {
	heap := NewTimerHeap(nil)
	base := time.Now()
	var fired []string

	heap.Add(base.Add(300*time.Millisecond), namedTarget{"c", &fired})
	heap.Add(base.Add(100*time.Millisecond), namedTarget{"a", &fired})
	heap.Add(base.Add(200*time.Millisecond), namedTarget{"b", &fired})

	expired := heap.DrainExpired(base.Add(250 * time.Millisecond))
	require.Len(t, expired, 2)
	for _, e := range expired {
		e.target.fire(base)
	}
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, heap.Len())
}

func TestTimerHeap_SameDeadlineBreaksTieOnInsertOrder(t *testing.T) {
	heap := NewTimerHeap(nil)
	deadline := time.Now()
	var fired []string

	heap.Add(deadline, namedTarget{"first", &fired})
	heap.Add(deadline, namedTarget{"second", &fired})

	expired := heap.DrainExpired(deadline)
	require.Len(t, expired, 2)
	for _, e := range expired {
		e.target.fire(deadline)
	}
	assert.Equal(t, []string{"first", "second"}, fired)
}

func TestTimerHeap_CancelIsIdempotent(t *testing.T) {
	heap := NewTimerHeap(nil)
	var fired []string
	handle := heap.Add(time.Now().Add(time.Hour), namedTarget{"x", &fired})

	assert.True(t, heap.Cancel(handle))
	assert.False(t, heap.Cancel(handle), "second cancel must be a no-op")
	assert.Equal(t, 0, heap.Len())
}

func TestTimerHeap_CancelAfterFireIsNoop(t *testing.T) {
	heap := NewTimerHeap(nil)
	var fired []string
	deadline := time.Now()
	handle := heap.Add(deadline, namedTarget{"x", &fired})

	expired := heap.DrainExpired(deadline)
	require.Len(t, expired, 1)

	assert.False(t, heap.Cancel(handle))
}

func TestTimerHeap_OnEditNotifiesOnAddAndCancel(t *testing.T) {
	var edits int
	heap := NewTimerHeap(func() { edits++ })
	var fired []string

	handle := heap.Add(time.Now().Add(time.Hour), namedTarget{"x", &fired})
	assert.Equal(t, 1, edits)
	heap.Cancel(handle)
	assert.Equal(t, 2, edits)
}

func TestManualClock_AdvanceFiresDueCallbacks(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	var fired []string

	clock.AfterFunc(100*time.Millisecond, func() { fired = append(fired, "a") })
	timer := clock.AfterFunc(200*time.Millisecond, func() { fired = append(fired, "b") })

	clock.Advance(50 * time.Millisecond)
	assert.Empty(t, fired)

	clock.Advance(60 * time.Millisecond)
	assert.Equal(t, []string{"a"}, fired)

	assert.True(t, timer.Stop())
	clock.Advance(time.Second)
	assert.Equal(t, []string{"a"}, fired, "stopped timer must not fire")
}
