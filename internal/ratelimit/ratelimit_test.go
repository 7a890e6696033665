package ratelimit

import (
	"testing"
	"time"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func newTestLimiter(rpm int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(rpm)
	l.now = clock.now
	return l, clock
}

func TestAllowWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(10)

	for i := 0; i < 10; i++ {
		if !l.Allow("ada") {
			t.Fatalf("request %d denied, want allowed", i)
		}
	}
	if l.Allow("ada") {
		t.Error("request 11 allowed, want denied")
	}
}

func TestZeroRPMUnlimited(t *testing.T) {
	l, _ := newTestLimiter(0)

	if l.Enabled() {
		t.Error("Enabled() = true with rpm 0")
	}
	for i := 0; i < 1000; i++ {
		if !l.Allow("ada") {
			t.Fatalf("request %d denied with unlimited rpm", i)
		}
	}
	if got := l.RetryAfter("ada"); got != 0 {
		t.Errorf("RetryAfter = %d, want 0", got)
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(2)

	l.Allow("ada")
	l.Allow("ada")
	if l.Allow("ada") {
		t.Error("ada over limit but allowed")
	}
	if !l.Allow("grace") {
		t.Error("grace denied despite a fresh bucket")
	}
}

func TestRefill(t *testing.T) {
	l, clock := newTestLimiter(60) // one token per second

	for i := 0; i < 60; i++ {
		l.Allow("ada")
	}
	if l.Allow("ada") {
		t.Fatal("bucket not exhausted")
	}

	clock.advance(2 * time.Second)
	if !l.Allow("ada") {
		t.Error("no token after refill window")
	}
	if !l.Allow("ada") {
		t.Error("second refilled token missing")
	}
	if l.Allow("ada") {
		t.Error("third request allowed after two-second refill")
	}
}

func TestRetryAfter(t *testing.T) {
	l, _ := newTestLimiter(60) // one token per second

	if got := l.RetryAfter("ada"); got != 0 {
		t.Errorf("RetryAfter with no bucket = %d, want 0", got)
	}

	for i := 0; i < 60; i++ {
		l.Allow("ada")
	}
	l.Allow("ada") // denied, bucket empty

	got := l.RetryAfter("ada")
	if got < 1 || got > 2 {
		t.Errorf("RetryAfter = %d, want 1 or 2", got)
	}
}

func TestCleanup(t *testing.T) {
	l, clock := newTestLimiter(10)

	l.Allow("ada")
	l.Allow("grace")
	if len(l.buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(l.buckets))
	}

	clock.advance(10 * time.Minute)
	l.Allow("grace") // refresh grace's bucket

	l.Cleanup(5 * time.Minute)
	if len(l.buckets) != 1 {
		t.Fatalf("buckets after cleanup = %d, want 1", len(l.buckets))
	}
	if _, ok := l.buckets["grace"]; !ok {
		t.Error("active bucket removed by cleanup")
	}
}
