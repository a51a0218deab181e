package server

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a sliding-window limiter keyed by client IP. It guards the
// credential and recovery forms. key defaults to the peer address.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string][]time.Time
	rate     int
	window   time.Duration
	now      func() time.Time
	key      func(*http.Request) string

	stop chan struct{}
	once sync.Once
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string][]time.Time),
		rate:     rate,
		window:   window,
		now:      time.Now,
		key:      remoteIP,
		stop:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(rl.key(r)) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	kept := rl.visitors[ip][:0]
	for _, t := range rl.visitors[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.rate {
		rl.visitors[ip] = kept
		return false
	}
	rl.visitors[ip] = append(kept, now)
	return true
}

func (rl *rateLimiter) close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *rateLimiter) cleanupLoop() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-t.C:
			rl.cleanup()
		}
	}
}

// cleanup drops visitors idle for two windows.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.window)
	for ip, reqs := range rl.visitors {
		if len(reqs) == 0 || reqs[len(reqs)-1].Before(cutoff) {
			delete(rl.visitors, ip)
		}
	}
}
