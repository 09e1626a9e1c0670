package ledger

import (
	"testing"
	"time"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time        { return c.now }
func (c *stepClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func TestThrottleBurstThenDeny(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0)}
	th := newThrottle(3, time.Second, clock)

	for i := 0; i < 3; i++ {
		if !th.Allow() {
			t.Fatalf("request %d within the burst must be allowed", i)
		}
	}
	if th.Allow() {
		t.Fatal("request beyond the burst must be denied")
	}
}

func TestThrottleRefillsOverTime(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0)}
	th := newThrottle(2, time.Second, clock)

	th.Allow()
	th.Allow()
	if th.Allow() {
		t.Fatal("bucket should be empty")
	}

	clock.now = clock.now.Add(time.Second)
	if !th.Allow() {
		t.Error("one token should have refilled after one interval")
	}
	if th.Allow() {
		t.Error("only one token should have refilled")
	}

	// Refill never exceeds the burst size.
	clock.now = clock.now.Add(time.Hour)
	if !th.Allow() || !th.Allow() {
		t.Error("bucket should be full again")
	}
	if th.Allow() {
		t.Error("refill must cap at the burst size")
	}
}

func TestThrottleWaitBlocksUntilRefill(t *testing.T) {
	clock := &stepClock{now: time.Unix(0, 0)}
	th := newThrottle(1, time.Second, clock)

	th.Wait()
	before := clock.now
	th.Wait() // must sleep at least one interval for the refill
	if clock.now.Sub(before) < time.Second {
		t.Errorf("wait returned after %s, expected at least 1s", clock.now.Sub(before))
	}
}
