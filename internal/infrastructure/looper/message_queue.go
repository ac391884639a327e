package looper

import (
	"container/heap"
	"time"
)

// pendingMessage is a message waiting for its delivery time.
type pendingMessage struct {
	handler Handler
	msg     Message
	when    time.Time
	seq     uint64 // insertion order; FIFO among equal delivery times
}

type messageQueue struct {
	h   messageHeap
	seq uint64
}

func newMessageQueue() *messageQueue {
	h := messageHeap{}
	heap.Init(&h)
	return &messageQueue{h: h}
}

// push inserts a message due at when.
func (q *messageQueue) push(h Handler, msg Message, when time.Time) {
	q.seq++
	heap.Push(&q.h, &pendingMessage{handler: h, msg: msg, when: when, seq: q.seq})
}

// next returns the soonest message but does not remove it.
func (q *messageQueue) next() (*pendingMessage, bool) {
	if len(q.h) == 0 {
		return nil, false
	}
	return q.h[0], true
}

// pop removes the head message unconditionally.
func (q *messageQueue) pop() {
	if len(q.h) == 0 {
		return
	}
	heap.Pop(&q.h)
}

func (q *messageQueue) len() int { return len(q.h) }

// --- heap internals ----------------------------------------------------------

// messageHeap is a min-heap ordered by (when, seq).
type messageHeap []*pendingMessage

func (h messageHeap) Len() int { return len(h) }

func (h messageHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}

func (h messageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *messageHeap) Push(x any) {
	*h = append(*h, x.(*pendingMessage))
}

func (h *messageHeap) Pop() any {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return m
}
