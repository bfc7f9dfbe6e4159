// Package ratelimit implements a fixed-window per-tool call counter.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the fixed counting period for every tool.
const Window = 60 * time.Second

type window struct {
	start time.Time
	count int
}

// Limiter counts tool calls in fixed 60-second windows, one window per tool
// name, lazily created on first use. Counters are in-memory only: a process
// restart resets all windows, which is an accepted weakening for a
// single-instance deployment.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// New creates a limiter using the wall clock.
func New() *Limiter {
	return &Limiter{
		windows: map[string]*window{},
		now:     time.Now,
	}
}

// NewWithClock creates a limiter with an injected clock.
func NewWithClock(now func() time.Time) *Limiter {
	l := New()
	if now != nil {
		l.now = now
	}
	return l
}

// Allow records one call against the tool's current window and reports whether
// the call stays within maxCallsPerMinute. The attempt is counted even when
// denied, matching a counter that tracks attempts rather than admissions.
// A denial is terminal for that call; there is no retry budget.
func (l *Limiter) Allow(tool string, maxCallsPerMinute int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[tool]
	if !ok {
		w = &window{start: now}
		l.windows[tool] = w
	}

	if now.Sub(w.start) > Window {
		w.start = now
		w.count = 0
	}

	w.count++
	return w.count <= maxCallsPerMinute
}

// Remaining reports how many calls the tool has left in its current window
// without consuming any. Used for observability endpoints only.
func (l *Limiter) Remaining(tool string, maxCallsPerMinute int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[tool]
	if !ok || l.now().Sub(w.start) > Window {
		return maxCallsPerMinute
	}
	left := maxCallsPerMinute - w.count
	if left < 0 {
		return 0
	}
	return left
}
