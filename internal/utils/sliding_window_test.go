package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	window.Add(now.Add(500 * time.Millisecond))
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestSlidingWindowTryAdd(t *testing.T) {
	window := NewSlidingWindow(time.Minute)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !window.TryAdd(now, 3) {
			t.Fatalf("expected hit %d to fit", i)
		}
	}
	if window.TryAdd(now, 3) {
		t.Fatalf("expected fourth hit to be rejected")
	}
	if count := window.Count(now); count != 3 {
		t.Fatalf("rejected hit must not count, got %d", count)
	}
	if !window.TryAdd(now.Add(2*time.Minute), 3) {
		t.Fatalf("expected window to reopen")
	}
}
