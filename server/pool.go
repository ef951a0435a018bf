package server

import (
	"sync"

	"github.com/brightloom/vncd/session"
)

// ConnectionPool is the supervisor's weak membership registry: per
// spec.md §3, it enumerates and signals sessions for shutdown but never
// mutates session-private state, and it enforces the configured
// connection cap.
type ConnectionPool struct {
	mu       sync.Mutex
	max      int
	sessions map[*session.ClientSession]struct{}
}

// NewConnectionPool builds a pool capped at max concurrent sessions.
func NewConnectionPool(max int) *ConnectionPool {
	return &ConnectionPool{max: max, sessions: make(map[*session.ClientSession]struct{})}
}

// HasCapacity reports whether the pool has room for one more session,
// without registering anything.
func (p *ConnectionPool) HasCapacity() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions) < p.max
}

// TryAdd registers sess if the pool has room, reporting whether it was
// admitted.
func (p *ConnectionPool) TryAdd(sess *session.ClientSession) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sessions) >= p.max {
		return false
	}
	p.sessions[sess] = struct{}{}
	return true
}

// Remove drops sess from the registry; safe to call more than once.
func (p *ConnectionPool) Remove(sess *session.ClientSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, sess)
}

// Len reports the current number of registered sessions.
func (p *ConnectionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Sessions returns a snapshot of the currently registered sessions, safe
// to range over without holding the pool's lock.
func (p *ConnectionPool) Sessions() []*session.ClientSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*session.ClientSession, 0, len(p.sessions))
	for s := range p.sessions {
		out = append(out, s)
	}
	return out
}
