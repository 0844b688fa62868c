// ABOUTME: Windowed request budgets keyed by caller identity or address.
// ABOUTME: Supports per-route-class overrides and a loopback bypass list.

package ratelimit

import (
	"net"
	"sync"
	"time"
)

// Class selects which budget applies to a route.
type Class int

const (
	// ClassDefault is the global budget for routes with no override.
	ClassDefault Class = iota
	// ClassChat is the stricter budget for the chat route.
	ClassChat
	// ClassHealth is the lenient budget for health and probe routes.
	ClassHealth
)

// Config holds budgets (requests per window) and the window length.
type Config struct {
	Window  time.Duration
	Default int
	Chat    int
	Health  int
}

// window tracks request volume for one caller within the current interval.
type window struct {
	start time.Time
	count int
}

// Limiter counts requests per caller key within a rolling window and rejects
// callers that exceed their route-class budget. Counters are the only state
// shared across concurrent requests, so all access is mutex-guarded.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	cfg     Config
	done    chan struct{}
	closed  bool

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Limiter and starts a background janitor that prunes windows
// once they are stale.
func New(cfg Config) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		cfg:     cfg,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	go l.cleanup()
	return l
}

// budget returns the request budget for a route class.
func (l *Limiter) budget(class Class) int {
	switch class {
	case ClassChat:
		if l.cfg.Chat > 0 {
			return l.cfg.Chat
		}
	case ClassHealth:
		if l.cfg.Health > 0 {
			return l.cfg.Health
		}
	}
	return l.cfg.Default
}

// Allow records one request for the caller key under the given route class.
// It returns false with the remaining window time when the budget is spent.
// Route classes count independently: the same caller gets a fresh budget per
// class.
func (l *Limiter) Allow(key string, class Class) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket := string(rune('0'+int(class))) + ":" + key

	w, ok := l.windows[bucket]
	if !ok || now.Sub(w.start) >= l.cfg.Window {
		l.windows[bucket] = &window{start: now, count: 1}
		return true, 0
	}

	if w.count >= l.budget(class) {
		retryAfter := l.cfg.Window - now.Sub(w.start)
		return false, retryAfter
	}

	w.count++
	return true, 0
}

// IsBypassed reports whether the remote address is on the fixed allow-list.
// Loopback callers are never limited.
func IsBypassed(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// cleanup periodically drops windows that have been stale for a full window,
// keeping the map bounded by active-caller count.
func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.Window)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

// prune removes expired windows. Separated from cleanup for tests.
func (l *Limiter) prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.cfg.Window {
			delete(l.windows, key)
		}
	}
}

// Close stops the background janitor. Safe to call multiple times.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
