package ratelimit

import (
	"errors"
	"testing"
	"time"
)

func TestUnlimitedWhenRateZero(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 100; i++ {
		if err := l.Allow("user-1"); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
}

func TestBurstExhaustion(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 3})
	for i := 0; i < 3; i++ {
		if err := l.Allow("user-1"); err != nil {
			t.Fatalf("request %d should pass: %v", i, err)
		}
	}
	if err := l.Allow("user-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCallersIsolated(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})
	if err := l.Allow("user-1"); err != nil {
		t.Fatalf("user-1 first request: %v", err)
	}
	if err := l.Allow("user-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("user-1 should be limited, got %v", err)
	}
	if err := l.Allow("user-2"); err != nil {
		t.Fatalf("user-2 should have its own bucket: %v", err)
	}
}

func TestLazyRefill(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})
	clock := time.Now()
	l.now = func() time.Time { return clock }

	if err := l.Allow("user-1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow("user-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// One token per second at 60 rpm.
	clock = clock.Add(1100 * time.Millisecond)
	if err := l.Allow("user-1"); err != nil {
		t.Fatalf("expected refill after a second: %v", err)
	}
}

func TestBurstDefaultsToRate(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2})
	if err := l.Allow("user-1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := l.Allow("user-1"); err != nil {
		t.Fatalf("second request within default burst: %v", err)
	}
	if err := l.Allow("user-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
