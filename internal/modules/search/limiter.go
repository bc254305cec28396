package search

import (
	"sync"
	"time"

	"hearth-bot/internal/utils"
)

const limiterPruneAt = 1024

// Limiter caps search commands per member over a sliding window.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*utils.SlidingWindow
	max     int
	window  time.Duration
}

func NewLimiter(max int, window time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*utils.SlidingWindow),
		max:     max,
		window:  window,
	}
}

// Allow records an attempt and reports whether it fits under the cap.
// Rejected attempts are not counted.
func (l *Limiter) Allow(guildID, userID string, now time.Time) bool {
	return l.getWindow(guildID+":"+userID, now).TryAdd(now, l.max)
}

func (l *Limiter) getWindow(key string, now time.Time) *utils.SlidingWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	window := l.windows[key]
	if window == nil {
		if len(l.windows) >= limiterPruneAt {
			l.pruneLocked(now)
		}
		window = utils.NewSlidingWindow(l.window)
		l.windows[key] = window
	}
	return window
}

func (l *Limiter) pruneLocked(now time.Time) {
	for key, window := range l.windows {
		if window.Count(now) == 0 {
			delete(l.windows, key)
		}
	}
}
