package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreDeniesPastLimit(t *testing.T) {
	store := NewMemoryStore()
	policy := Policy{Window: time.Minute, MaxRequests: 3}
	key := Key("/api/users/login", "203.0.113.7")

	for i := 1; i <= 3; i++ {
		res := store.Take(key, policy)
		if !res.Allowed {
			t.Fatalf("request %d should be allowed (limit is 3)", i)
		}
		if res.Remaining != 3-i {
			t.Errorf("request %d: remaining = %d, want %d", i, res.Remaining, 3-i)
		}
		if res.Limit != 3 {
			t.Errorf("request %d: limit = %d, want 3", i, res.Limit)
		}
	}

	// 4th and 5th requests within the window are denied
	for i := 4; i <= 5; i++ {
		res := store.Take(key, policy)
		if res.Allowed {
			t.Errorf("request %d should be denied (limit is 3)", i)
		}
		if res.Remaining != 0 {
			t.Errorf("request %d: remaining = %d, want 0", i, res.Remaining)
		}
	}
}

func TestMemoryStoreWindowReset(t *testing.T) {
	store := NewMemoryStore()
	policy := Policy{Window: time.Minute, MaxRequests: 2}
	key := Key("/api/applications", "203.0.113.7")

	now := time.Now()
	nowFunc = func() time.Time { return now }
	defer func() { nowFunc = time.Now }()

	first := store.Take(key, policy)
	if !first.Allowed {
		t.Fatal("first request should be allowed")
	}
	if want := now.Add(time.Minute); !first.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", first.ResetAt, want)
	}
	store.Take(key, policy)
	if res := store.Take(key, policy); res.Allowed {
		t.Error("request over the limit should be denied before the window resets")
	}

	// the first request of the next window is allowed again
	nowFunc = func() time.Time { return now.Add(time.Minute) }
	res := store.Take(key, policy)
	if !res.Allowed {
		t.Error("first request of a fresh window should be allowed")
	}
	if res.Remaining != 1 {
		t.Errorf("fresh window remaining = %d, want 1", res.Remaining)
	}
	if want := now.Add(2 * time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("fresh window ResetAt = %v, want %v", res.ResetAt, want)
	}
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	policy := Policy{Window: time.Minute, MaxRequests: 1}

	keys := []string{
		Key("/api/users/login", "203.0.113.7"),
		Key("/api/users/login", "203.0.113.8"), // same path, other IP
		Key("/api/applications", "203.0.113.7"), // same IP, other path
	}
	for _, key := range keys {
		if res := store.Take(key, policy); !res.Allowed {
			t.Errorf("key %q: first request should be allowed", key)
		}
	}
	// each key is now exhausted independently
	for _, key := range keys {
		if res := store.Take(key, policy); res.Allowed {
			t.Errorf("key %q: second request should be denied", key)
		}
	}
}

func TestMemoryStoreConcurrentTakesAreExact(t *testing.T) {
	store := NewMemoryStore()
	policy := Policy{Window: time.Minute, MaxRequests: 100}
	key := Key("/api/cohorts", "203.0.113.7")

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- store.Take(key, policy).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	var allowedCount int
	for ok := range allowed {
		if ok {
			allowedCount++
		}
	}
	if allowedCount != 100 {
		t.Errorf("expected exactly 100 allowed, got %d", allowedCount)
	}
}
