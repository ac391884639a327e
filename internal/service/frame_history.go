package service

import (
	"sync"
	"time"
)

const frameHistorySize = 240

// frameHistory is a thread-safe circular buffer of frame intervals with O(1)
// append and O(N) read.
type frameHistory struct {
	entries [frameHistorySize]time.Duration // fixed-size circular buffer
	head    int                             // next write position
	size    int                             // current number of entries
	mu      sync.RWMutex
}

// Append records an interval, overwriting the oldest when full.
func (b *frameHistory) Append(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = d
	b.head = (b.head + 1) % frameHistorySize
	if b.size < frameHistorySize {
		b.size++
	}
}

// Read returns up to n intervals, newest → oldest. n <= 0 or n above the
// capacity returns everything available. The slice is owned by the caller.
func (b *frameHistory) Read(n int) []time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return nil
	}
	if n <= 0 || n > b.size {
		n = b.size
	}

	out := make([]time.Duration, n)
	newest := (b.head - 1 + frameHistorySize) % frameHistorySize
	for i := 0; i < n; i++ {
		out[i] = b.entries[(newest-i+frameHistorySize)%frameHistorySize]
	}
	return out
}

// Mean returns the average of the newest n intervals (all when n <= 0).
func (b *frameHistory) Mean(n int) time.Duration {
	intervals := b.Read(n)
	if len(intervals) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range intervals {
		sum += d
	}
	return sum / time.Duration(len(intervals))
}
