package ratelimit

import (
	"sync"
	"time"
)

const DefaultWindow = 60 * time.Second

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is a per-key fixed-window request counter. A request either
// increments the window counter or is denied; the window resets the first
// time a request arrives after resetAt. Around a window boundary this can
// admit up to twice the nominal limit in a short span; the fallback path
// downstream makes that acceptable, so the simple scheme is kept.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// SetClock replaces the limiter's clock. Test hook.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// CanProceed reports whether a request for key is admitted under
// maxRequests per windowSize. windowSize <= 0 uses DefaultWindow.
func (l *Limiter) CanProceed(key string, maxRequests int, windowSize time.Duration) bool {
	if windowSize <= 0 {
		windowSize = DefaultWindow
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(windowSize)}
		return true
	}
	if w.count < maxRequests {
		w.count++
		return true
	}
	return false
}

// RemainingRequests reports how many requests are left in the current
// window for key. Read-only diagnostic.
func (l *Limiter) RemainingRequests(key string, maxRequests int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.resetAt) {
		return maxRequests
	}
	remaining := maxRequests - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetTime reports when the current window for key expires. The second
// return is false when no window is active.
func (l *Limiter) ResetTime(key string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.resetAt) {
		return time.Time{}, false
	}
	return w.resetAt, true
}
