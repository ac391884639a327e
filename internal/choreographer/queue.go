package choreographer

import (
	"container/heap"
	"errors"
)

// ErrEmptyQueue is returned when the earliest callback is read from an empty
// queue. Callers are expected to check len first.
var ErrEmptyQueue = errors.New("choreographer: deadline queue is empty")

// deadlineQueue orders pending frame callbacks by due time. Equal due times
// pop in arbitrary order. It does no locking; the owner's lock guards it.
type deadlineQueue struct {
	h callbackHeap
}

// push inserts cb in O(log n).
func (q *deadlineQueue) push(cb frameCallback) {
	heap.Push(&q.h, cb)
}

// peekEarliest returns the callback with the smallest due time.
func (q *deadlineQueue) peekEarliest() (frameCallback, error) {
	if len(q.h) == 0 {
		return frameCallback{}, ErrEmptyQueue
	}
	return q.h[0], nil
}

// popEarliest removes and returns the callback with the smallest due time.
func (q *deadlineQueue) popEarliest() (frameCallback, error) {
	if len(q.h) == 0 {
		return frameCallback{}, ErrEmptyQueue
	}
	return heap.Pop(&q.h).(frameCallback), nil
}

func (q *deadlineQueue) len() int { return len(q.h) }

// --- heap internals ----------------------------------------------------------

// callbackHeap is a min-heap ordered by dueTime.
type callbackHeap []frameCallback

func (h callbackHeap) Len() int           { return len(h) }
func (h callbackHeap) Less(i, j int) bool { return h[i].dueTime < h[j].dueTime }
func (h callbackHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *callbackHeap) Push(x any) {
	*h = append(*h, x.(frameCallback))
}

func (h *callbackHeap) Pop() any {
	old := *h
	n := len(old)
	cb := old[n-1]
	old[n-1] = frameCallback{} // drop handler and data references
	*h = old[:n-1]
	return cb
}
