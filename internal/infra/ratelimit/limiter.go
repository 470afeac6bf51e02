package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Policy allows Max requests per Window for each key.
type Policy struct {
	Max    int
	Window time.Duration
}

// MemoryLimiter is a per-process token bucket. The bucket holds Max tokens
// and refills at Max per Window.
type MemoryLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	capacity float64
	perSec   float64
	ttl      time.Duration
	now      func() time.Time
}

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// NewMemoryLimiter constructs an in-memory limiter.
func NewMemoryLimiter(p Policy) *MemoryLimiter {
	ttl := 2 * p.Window
	if ttl < 5*time.Minute {
		ttl = 5 * time.Minute
	}
	return &MemoryLimiter{
		visitors: make(map[string]*visitor),
		capacity: float64(p.Max),
		perSec:   float64(p.Max) / p.Window.Seconds(),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{tokens: l.capacity, lastSeen: now}
		l.visitors[key] = v
	} else {
		if elapsed := now.Sub(v.lastSeen).Seconds(); elapsed > 0 {
			v.tokens = math.Min(l.capacity, v.tokens+elapsed*l.perSec)
		}
		v.lastSeen = now
	}
	l.cleanupLocked(now)
	if v.tokens < 1 {
		return false, nil
	}
	v.tokens--
	return true, nil
}

func (l *MemoryLimiter) cleanupLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

var _ Limiter = (*MemoryLimiter)(nil)
