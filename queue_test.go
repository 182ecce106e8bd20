package taskrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkQueue_HighPriorityDrainsFirst(t *testing.T) {
	q := NewWorkQueue()
	var order []string

	q.Push(PriorityNormal, func() { order = append(order, "n1") })
	q.Push(PriorityHigh, func() { order = append(order, "h1") })
	q.Push(PriorityNormal, func() { order = append(order, "n2") })
	q.Push(PriorityHigh, func() { order = append(order, "h2") })

	for i := 0; i < 4; i++ {
		fn, ok := q.TryPop()
		require.True(t, ok)
		fn()
	}

	assert.Equal(t, []string{"h1", "h2", "n1", "n2"}, order)
}

func TestWorkQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewWorkQueue()
	done := make(chan struct{})

	go func() {
		fn, ok := q.Pop()
		require.True(t, ok)
		fn()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Pop returned before any work was pushed")
	default:
	}

	ran := make(chan struct{})
	q.Push(PriorityNormal, func() { close(ran) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked after Push")
	}
	<-ran
}

func TestWorkQueue_CloseDrainsThenStops(t *testing.T) {
	q := NewWorkQueue()
	q.Push(PriorityNormal, func() {})
	q.Push(PriorityNormal, func() {})
	q.Close()

	_, ok := q.Pop()
	assert.True(t, ok, "Pop should drain remaining items after Close")
	_, ok = q.Pop()
	assert.True(t, ok)
	_, ok = q.Pop()
	assert.False(t, ok, "Pop should report no more work once drained and closed")
}

func TestWorkQueue_SizeApprox(t *testing.T) {
	q := NewWorkQueue()
	assert.Equal(t, 0, q.SizeApprox())
	q.Push(PriorityNormal, func() {})
	q.Push(PriorityHigh, func() {})
	assert.Equal(t, 2, q.SizeApprox())
	q.TryPop()
	assert.Equal(t, 1, q.SizeApprox())
}
