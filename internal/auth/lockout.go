package auth

import (
	"sync"
	"time"
)

type attempt struct {
	count       int
	lastAttempt time.Time
	lockedUntil time.Time
}

// Lockout counts failures per key and locks the key once maxAttempts fail
// within window. Login keys on the client address; recovery keys on the phone.
type Lockout struct {
	mu              sync.Mutex
	attempts        map[string]*attempt
	maxAttempts     int
	lockoutDuration time.Duration
	window          time.Duration
	now             func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewLockout starts a background sweep that drops idle keys. Call Close to
// stop it.
func NewLockout(maxAttempts int, lockoutDuration, window time.Duration) *Lockout {
	l := newLockout(maxAttempts, lockoutDuration, window, time.Now)
	go l.sweepLoop(time.Hour)
	return l
}

func newLockout(maxAttempts int, lockoutDuration, window time.Duration, now func() time.Time) *Lockout {
	return &Lockout{
		attempts:        make(map[string]*attempt),
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
		window:          window,
		now:             now,
		stop:            make(chan struct{}),
	}
}

// Fail records a failure and reports whether key is now locked.
func (l *Lockout) Fail(key string) (locked bool, until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	a, ok := l.attempts[key]
	if !ok {
		a = &attempt{}
		l.attempts[key] = a
	}
	if now.Sub(a.lastAttempt) > l.window {
		a.count = 0
	}
	a.count++
	a.lastAttempt = now

	if a.count >= l.maxAttempts {
		a.lockedUntil = now.Add(l.lockoutDuration)
		a.count = 0
		return true, a.lockedUntil
	}
	return false, time.Time{}
}

// Reset clears key after a success.
func (l *Lockout) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}

// Clear drops every key. A password reset clears the login lockout this way.
func (l *Lockout) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.attempts)
}

// Locked reports whether key is locked right now.
func (l *Lockout) Locked(key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.attempts[key]
	if !ok {
		return false, time.Time{}
	}
	if !a.lockedUntil.IsZero() && l.now().Before(a.lockedUntil) {
		return true, a.lockedUntil
	}
	return false, time.Time{}
}

// Close stops the sweeper. It is safe to call more than once.
func (l *Lockout) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Lockout) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.sweep()
		}
	}
}

func (l *Lockout) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, a := range l.attempts {
		if (a.lockedUntil.IsZero() || now.After(a.lockedUntil)) && now.Sub(a.lastAttempt) > 2*l.window {
			delete(l.attempts, key)
		}
	}
}
