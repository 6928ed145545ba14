package core

import (
	"testing"
	"time"
)

// fakeClock drives the throttle's notion of time without sleeping.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newThrottleWithClock(interval time.Duration) (*CommandThrottle, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	throttle := NewCommandThrottle(interval)
	throttle.now = func() time.Time { return clock.now }
	return throttle, clock
}

func TestThrottleFirstSightingAlwaysPasses(t *testing.T) {
	throttle, _ := newThrottleWithClock(100 * time.Millisecond)

	if !throttle.Allow("c1", "move") {
		t.Fatal("first move should pass")
	}
	if !throttle.Allow("c1", "command") {
		t.Fatal("different kind for same client should pass")
	}
	if !throttle.Allow("c2", "move") {
		t.Fatal("same kind for different client should pass")
	}
}

func TestThrottleGatesWithinInterval(t *testing.T) {
	throttle, clock := newThrottleWithClock(100 * time.Millisecond)

	if !throttle.Allow("c1", "move") {
		t.Fatal("first move should pass")
	}
	clock.advance(10 * time.Millisecond)
	if throttle.Allow("c1", "move") {
		t.Fatal("move 10ms after the last should be gated")
	}
	clock.advance(150 * time.Millisecond)
	if !throttle.Allow("c1", "move") {
		t.Fatal("move past the interval should pass")
	}
}

func TestThrottleRejectionDoesNotRefreshStamp(t *testing.T) {
	throttle, clock := newThrottleWithClock(100 * time.Millisecond)

	throttle.Allow("c1", "move")
	for i := 0; i < 9; i++ {
		clock.advance(11 * time.Millisecond)
		throttle.Allow("c1", "move")
	}
	// 99ms of hammering later one interval has elapsed in total.
	clock.advance(2 * time.Millisecond)
	if !throttle.Allow("c1", "move") {
		t.Fatal("hammering should not starve the client of its per-interval event")
	}
}

func TestThrottleForgetDropsClientStamps(t *testing.T) {
	throttle, _ := newThrottleWithClock(100 * time.Millisecond)

	throttle.Allow("c1", "move")
	throttle.Forget("c1")

	if !throttle.Allow("c1", "move") {
		t.Fatal("forgotten client should pass immediately")
	}
}

func TestThrottleExpireSweepsStaleStamps(t *testing.T) {
	throttle, clock := newThrottleWithClock(100 * time.Millisecond)

	throttle.Allow("c1", "move")
	clock.advance(2 * time.Second)
	throttle.Expire()

	throttle.mu.Lock()
	remaining := len(throttle.lastSeen)
	throttle.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected stale stamps swept, %d remain", remaining)
	}
}

func TestThrottleExpireKeepsStampsForLongIntervals(t *testing.T) {
	throttle, clock := newThrottleWithClock(2 * time.Second)

	throttle.Allow("c1", "move")
	clock.advance(1500 * time.Millisecond)
	throttle.Expire()

	if throttle.Allow("c1", "move") {
		t.Fatal("expire sweep reopened the gate mid-interval")
	}
	clock.advance(time.Second)
	if !throttle.Allow("c1", "move") {
		t.Fatal("move past the interval should pass")
	}
}
