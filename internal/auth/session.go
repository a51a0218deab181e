package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Session is an authenticated browser session.
type Session struct {
	ID        string
	Owner     bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore keeps sessions between requests.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, bool)
	Delete(ctx context.Context, id string)
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MemorySessionStore is a process-local SessionStore. Sessions are lost on
// restart.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemorySessionStore starts a sweeper that evicts expired sessions every
// interval. A non-positive interval disables the sweeper.
func NewMemorySessionStore(interval time.Duration) *MemorySessionStore {
	m := &MemorySessionStore{
		sessions: make(map[string]Session),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	if interval > 0 {
		go m.sweepLoop(interval)
	}
	return m
}

func (m *MemorySessionStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

// Get returns a live session. An expired one is deleted and reported absent.
func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, id)
		return nil, false
	}
	return &s, true
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the sweeper.
func (m *MemorySessionStore) Close() {
	m.once.Do(func() { close(m.stop) })
}

func (m *MemorySessionStore) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.sweep()
		}
	}
}

func (m *MemorySessionStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
		}
	}
}
