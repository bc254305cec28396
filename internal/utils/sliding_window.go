package utils

import (
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trimLocked(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

// TryAdd records a hit only when fewer than limit hits are inside the window.
func (w *SlidingWindow) TryAdd(now time.Time, limit int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trimLocked(now)
	if len(w.hits) >= limit {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trimLocked(now)
	return len(w.hits)
}

func (w *SlidingWindow) trimLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}
