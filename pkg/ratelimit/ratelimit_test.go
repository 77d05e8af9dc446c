package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestMessageRateLimiterCooldown(t *testing.T) {
	rl := NewMessageRateLimiter(2, 5*time.Second, 15*time.Second)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("u1") || !rl.Allow("u1") {
		t.Fatalf("first two sends should be allowed")
	}
	if rl.Allow("u1") {
		t.Fatalf("third send inside the window should be rejected")
	}
	if got := rl.CooldownSeconds("u1"); got != 16 {
		t.Fatalf("expected 16s cooldown, got %d", got)
	}
	if !rl.Allow("u2") {
		t.Fatalf("other users are not affected")
	}

	now = now.Add(10 * time.Second)
	if rl.Allow("u1") {
		t.Fatalf("still cooling down")
	}

	now = now.Add(6 * time.Second)
	if !rl.Allow("u1") {
		t.Fatalf("cooldown elapsed, send should be allowed")
	}
	if got := rl.CooldownSeconds("u1"); got != 0 {
		t.Fatalf("expected no cooldown, got %d", got)
	}
}

func TestMessageRateLimiterWindowReset(t *testing.T) {
	rl := NewMessageRateLimiter(1, time.Second, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("u1")
	now = now.Add(2 * time.Second)
	if !rl.Allow("u1") {
		t.Fatalf("new window should allow")
	}

	now = now.Add(2 * time.Second)
	rl.cleanup()
	if len(rl.buckets) != 0 {
		t.Fatalf("expired bucket should be cleaned up, have %d", len(rl.buckets))
	}
}

func TestIPLimiterBurst(t *testing.T) {
	l := NewIPLimiter(0.001, 2, time.Minute)
	defer l.Close()

	if !l.Allow("1.2.3.4") || !l.Allow("1.2.3.4") {
		t.Fatalf("burst of two should pass")
	}
	if l.Allow("1.2.3.4") {
		t.Fatalf("third connect should be limited")
	}
	if !l.Allow("5.6.7.8") {
		t.Fatalf("different ip has its own bucket")
	}

	l.evictIdle(time.Now().Add(2 * time.Minute))
	if l.Len() != 0 {
		t.Fatalf("idle entries should be evicted, have %d", l.Len())
	}
}

func TestExtractIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := ExtractIP(r); got != "10.0.0.1" {
		t.Fatalf("remote addr: got %q", got)
	}

	r.Header.Set("X-Real-IP", "9.9.9.9")
	if got := ExtractIP(r); got != "9.9.9.9" {
		t.Fatalf("x-real-ip: got %q", got)
	}

	r.Header.Set("X-Forwarded-For", "1.1.1.1, 2.2.2.2")
	if got := ExtractIP(r); got != "1.1.1.1" {
		t.Fatalf("x-forwarded-for: got %q", got)
	}
}
