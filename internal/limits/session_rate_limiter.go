package limits

import (
	"sync"

	"golang.org/x/time/rate"
)

// SessionRateLimiter enforces a per-session inbound message rate,
// independent of the connection-admission limiter above: it protects
// the server from one already-connected session flooding it with
// subscribe/publish/service-call traffic.
type SessionRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	burst    int
	perSec   float64
}

func NewSessionRateLimiter(perSec float64, burst int) *SessionRateLimiter {
	return &SessionRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		burst:    burst,
		perSec:   perSec,
	}
}

// Allow reports whether the session identified by sessionID may send
// another inbound frame right now.
func (s *SessionRateLimiter) Allow(sessionID string) bool {
	s.mu.Lock()
	l, ok := s.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.perSec), s.burst)
		s.limiters[sessionID] = l
	}
	s.mu.Unlock()
	return l.Allow()
}

// Forget drops a session's limiter on disconnect.
func (s *SessionRateLimiter) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.limiters, sessionID)
	s.mu.Unlock()
}
