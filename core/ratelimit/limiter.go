// Package ratelimit bounds the number of requests a client may issue to an
// endpoint within a fixed counting window. Counters live behind the Store
// interface so a single-instance deployment can use the in-memory store
// while a multi-instance one can plug in a shared backend with atomic
// increment and expiry, without changing the middleware contract.
package ratelimit

import (
	"sync"
	"time"
)

var nowFunc = time.Now // mockable

type (
	// Policy is the limit applied to one key: at most MaxRequests per
	// Window. The window resets entirely once elapsed.
	Policy struct {
		Window      time.Duration
		MaxRequests int
	}

	// Result describes the counter state after a Take.
	Result struct {
		Allowed   bool
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// Store tracks request counts per key. Implementations must be safe
	// for concurrent use.
	Store interface {
		Take(key string, p Policy) Result
	}
)

// Key builds the composite counter key. Counters are scoped per endpoint
// path AND per client, so exhausting one never affects the other.
func Key(path, clientIP string) string {
	return path + ":" + clientIP
}

type record struct {
	count   int
	resetAt time.Time
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*record
}

// NewMemoryStore returns a process-local Store. State is never persisted
// and does not survive restarts; stale keys self-heal on next access.
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[string]*record)}
}

func (s *memoryStore) Take(key string, p Policy) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowFunc()
	rec, ok := s.records[key]
	if !ok || !now.Before(rec.resetAt) {
		// first request for this key, or the window elapsed: start fresh
		rec = &record{count: 1, resetAt: now.Add(p.Window)}
		s.records[key] = rec
	} else if rec.count >= p.MaxRequests {
		return Result{Allowed: false, Limit: p.MaxRequests, Remaining: 0, ResetAt: rec.resetAt}
	} else {
		rec.count++
	}

	remaining := p.MaxRequests - rec.count
	if remaining < 0 {
		remaining = 0
		return Result{Allowed: false, Limit: p.MaxRequests, Remaining: 0, ResetAt: rec.resetAt}
	}
	return Result{Allowed: true, Limit: p.MaxRequests, Remaining: remaining, ResetAt: rec.resetAt}
}
