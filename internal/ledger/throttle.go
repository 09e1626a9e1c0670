// throttle.go - Token-bucket throttle for outbound ledger requests.
//
// Polling loops can hit the indexer at their full interval cadence across
// several concurrent sessions; the throttle caps the aggregate request rate
// at the client so the indexer never sees a burst beyond the bucket size.

package ledger

import (
	"sync"
	"time"

	"github.com/mrruby/bar-age-gate/internal/poll"
)

// Throttle is a token bucket: Burst tokens refill one per Interval.
type Throttle struct {
	mu       sync.Mutex
	clock    poll.Clock
	tokens   int
	burst    int
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a throttle allowing burst requests at once, refilling
// one token per interval.
func NewThrottle(burst int, interval time.Duration) *Throttle {
	return newThrottle(burst, interval, poll.SystemClock{})
}

func newThrottle(burst int, interval time.Duration, clock poll.Clock) *Throttle {
	return &Throttle{clock: clock, tokens: burst, burst: burst, interval: interval, last: clock.Now()}
}

// Allow consumes a token if one is available.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refill()
	if t.tokens > 0 {
		t.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available, then consumes it.
func (t *Throttle) Wait() {
	for !t.Allow() {
		t.clock.Sleep(t.interval)
	}
}

// refill credits tokens for the time elapsed since the last refill.
// Caller holds the lock.
func (t *Throttle) refill() {
	now := t.clock.Now()
	if t.interval <= 0 {
		t.tokens = t.burst
		return
	}
	earned := int(now.Sub(t.last) / t.interval)
	if earned > 0 {
		t.tokens += earned
		if t.tokens > t.burst {
			t.tokens = t.burst
		}
		t.last = t.last.Add(time.Duration(earned) * t.interval)
	}
}
