package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore_CountsWithinWindow(t *testing.T) {
	s := newTestRedisStore(t)
	now := time.Now()

	for i := 1; i <= 2; i++ {
		slot, allowed, err := s.Incr(context.Background(), "k", 2, time.Minute, now)
		if err != nil {
			t.Fatalf("incr %d failed: %v", i, err)
		}
		if !allowed || slot.Count != i {
			t.Errorf("incr %d: allowed=%v count=%d", i, allowed, slot.Count)
		}
	}

	slot, allowed, err := s.Incr(context.Background(), "k", 2, time.Minute, now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("third incr failed: %v", err)
	}
	if allowed {
		t.Error("third call within window must be rejected")
	}
	if slot.Count != 2 {
		t.Errorf("rejected count = %d, want 2", slot.Count)
	}
	// Window start survives for the retry-after computation.
	if got := slot.WindowStart.UnixMilli(); got != now.UnixMilli() {
		t.Errorf("window start = %d, want %d", got, now.UnixMilli())
	}
}

func TestRedisStore_LazyReset(t *testing.T) {
	s := newTestRedisStore(t)
	now := time.Now()

	for i := 0; i < 2; i++ {
		if _, _, err := s.Incr(context.Background(), "k", 2, time.Minute, now); err != nil {
			t.Fatalf("warmup incr failed: %v", err)
		}
	}

	slot, allowed, err := s.Incr(context.Background(), "k", 2, time.Minute, now.Add(61*time.Second))
	if err != nil {
		t.Fatalf("incr after expiry failed: %v", err)
	}
	if !allowed || slot.Count != 1 {
		t.Errorf("after expiry: allowed=%v count=%d, want fresh window", allowed, slot.Count)
	}
}

func TestRedisStore_KeysAreIndependent(t *testing.T) {
	s := newTestRedisStore(t)
	now := time.Now()

	if _, allowed, _ := s.Incr(context.Background(), "a", 1, time.Minute, now); !allowed {
		t.Fatal("first key rejected")
	}
	if _, allowed, _ := s.Incr(context.Background(), "b", 1, time.Minute, now); !allowed {
		t.Error("second key must have its own counter")
	}
	if _, allowed, _ := s.Incr(context.Background(), "a", 1, time.Minute, now); allowed {
		t.Error("first key second call must be rejected")
	}
}

func TestLimiter_WithRedisStore(t *testing.T) {
	l := New(newTestRedisStore(t))
	limits := Limits{PerMinute: 2}

	for i := 0; i < 2; i++ {
		if _, err := l.Check(context.Background(), "partner-1", limits); err != nil {
			t.Fatalf("call %d rejected: %v", i+1, err)
		}
	}
	if _, err := l.Check(context.Background(), "partner-1", limits); err == nil {
		t.Fatal("third call should be rejected")
	}
}
