package taskrt

import (
	"container/heap"
	"sync"
	"time"
)

// timerTarget is whatever a timer entry resumes once it fires: a fd-wait
// event, a plain delay-only task continuation, or another timer-owning
// object. It is opaque to the heap itself.
type timerTarget interface {
	fire(now time.Time)
}

// timerEntry is one node of the timer heap, keyed on (deadline, seq) —
// seq substitutes for the original's target-address tie-breaker, since Go
// values don't have a stable address to compare once they can move.
type timerEntry struct {
	deadline time.Time
	seq      uint64
	target   timerTarget
	index    int // heap.Interface bookkeeping
	armed    bool
}

// timerHeapData implements container/heap.Interface, keyed by
// (deadline, seq) for a strict, collision-free ordering.
type timerHeapData []*timerEntry

func (h timerHeapData) Len() int { return len(h) }

func (h timerHeapData) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeapData) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeapData) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeapData) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimerHandle is returned by TimerHeap.Add and can be used to cancel the
// entry before it fires. Cancel is idempotent.
type TimerHandle struct {
	entry *timerEntry
}

// TimerHeap is an ordered set of (deadline, target) entries, guarded by a
// single mutex, supporting O(log n) insert/cancel, O(1) next-deadline
// lookup, and batch expiry draining. add and cancel notify a registered
// wake function so the reactor can recompute its poll timeout.
type TimerHeap struct {
	mu     sync.Mutex
	heap   timerHeapData
	nextID uint64
	onEdit func()
}

// NewTimerHeap constructs an empty TimerHeap. onEdit, if non-nil, is
// invoked (outside the heap's lock) whenever an entry is added or
// cancelled, so a reactor can be woken to recompute its poll timeout.
func NewTimerHeap(onEdit func()) *TimerHeap {
	return &TimerHeap{onEdit: onEdit}
}

// Add inserts a new entry with the given deadline and target, returning a
// handle that can later be passed to Cancel.
func (h *TimerHeap) Add(deadline time.Time, target timerTarget) *TimerHandle {
	h.mu.Lock()
	h.nextID++
	e := &timerEntry{deadline: deadline, seq: h.nextID, target: target, armed: true}
	heap.Push(&h.heap, e)
	h.mu.Unlock()
	if h.onEdit != nil {
		h.onEdit()
	}
	return &TimerHandle{entry: e}
}

// Cancel removes the entry referenced by handle, if it is still armed.
// Idempotent: cancelling an already-fired or already-cancelled handle is a
// no-op that returns false.
func (h *TimerHeap) Cancel(handle *TimerHandle) bool {
	if handle == nil || handle.entry == nil {
		return false
	}
	h.mu.Lock()
	e := handle.entry
	if !e.armed || e.index < 0 {
		h.mu.Unlock()
		return false
	}
	e.armed = false
	heap.Remove(&h.heap, e.index)
	h.mu.Unlock()
	if h.onEdit != nil {
		h.onEdit()
	}
	return true
}

// PeekDeadline returns the earliest deadline in the heap, and whether the
// heap is non-empty.
func (h *TimerHeap) PeekDeadline() (time.Time, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.heap) == 0 {
		return time.Time{}, false
	}
	return h.heap[0].deadline, true
}

// DrainExpired removes and returns every entry with deadline <= now, in
// deadline order.
func (h *TimerHeap) DrainExpired(now time.Time) []*timerEntry {
	h.mu.Lock()
	var expired []*timerEntry
	for len(h.heap) > 0 && !h.heap[0].deadline.After(now) {
		e := heap.Pop(&h.heap).(*timerEntry)
		e.armed = false
		expired = append(expired, e)
	}
	h.mu.Unlock()
	return expired
}

// Len reports the number of armed entries.
func (h *TimerHeap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.heap)
}
