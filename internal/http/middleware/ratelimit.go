package middleware

import (
	"sync"
	"time"
)

type clientInfo struct {
	start time.Time
	count int64
}

// localLimiter is the in-process fixed-window counter used when Redis is
// not configured.
type localLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
}

var local = &localLimiter{clients: make(map[string]*clientInfo)}

// incr counts one hit for key in the current window and returns the total.
func (l *localLimiter) incr(key string, window time.Duration) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	ci, ok := l.clients[key]
	if !ok || now.Sub(ci.start) > window {
		ci = &clientInfo{start: now}
		l.clients[key] = ci
	}
	ci.count++

	if len(l.clients) > 10000 {
		l.sweep(now, window)
	}
	return ci.count
}

// sweep drops expired windows; callers hold l.mu.
func (l *localLimiter) sweep(now time.Time, window time.Duration) {
	for k, ci := range l.clients {
		if now.Sub(ci.start) > window {
			delete(l.clients, k)
		}
	}
}

func (l *localLimiter) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clients = make(map[string]*clientInfo)
}
