package notifier

import (
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 3, Window: time.Minute, Enabled: true})

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("call %d should be allowed", i)
		}
	}
	if rl.Allow() {
		t.Fatal("call over the limit should be dropped")
	}

	stats := rl.Stats()
	if stats.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.Dropped)
	}
	if stats.CurrentCount != 3 {
		t.Errorf("current = %d, want 3", stats.CurrentCount)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 1, Window: time.Minute, Enabled: false})

	for i := 0; i < 10; i++ {
		if !rl.Allow() {
			t.Fatal("disabled limiter should always allow")
		}
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 2, Window: 50 * time.Millisecond, Enabled: true})

	if !rl.Allow() || !rl.Allow() {
		t.Fatal("first two calls should be allowed")
	}
	if rl.Allow() {
		t.Fatal("third call should be dropped")
	}

	time.Sleep(60 * time.Millisecond)

	if !rl.Allow() {
		t.Fatal("call after the window slid should be allowed")
	}
}

func TestRateLimiter_Release(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: 1, Window: time.Minute, Enabled: true})

	if !rl.Allow() {
		t.Fatal("first call should be allowed")
	}
	// Delivery failed; the refunded slot lets the retry through.
	rl.Release()
	if !rl.Allow() {
		t.Fatal("retry after release should be allowed")
	}
}

func TestRateLimiter_DefaultsApplied(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxPerWindow: -1, Window: 0, Enabled: true})
	stats := rl.Stats()
	if stats.MaxPerWindow != 60 {
		t.Errorf("max = %d, want default 60", stats.MaxPerWindow)
	}
	if stats.Window != time.Minute {
		t.Errorf("window = %v, want default 1m", stats.Window)
	}
}
