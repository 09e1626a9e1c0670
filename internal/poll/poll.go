// poll.go - Bounded polling primitive for observable external state.
//
// A single generic wait loop backs the three synchronization points of a
// session: wallet sync readiness, dust availability, and the post-submission
// contract-state change. The loop is a pure function of its arguments plus an
// injected clock, so tests drive it without real time passing.

package poll

import (
	"fmt"
	"time"
)

// Clock abstracts wall-clock sampling and sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the real clock used outside of tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// TimeoutError reports which condition was being awaited and the configured
// deadline once it elapsed.
type TimeoutError struct {
	What     string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Deadline, e.What)
}

// Until samples source immediately and then at interval cadence, returning
// the first state satisfying pred. Fails with TimeoutError once deadline has
// elapsed without a satisfying sample. Each retry sleeps for the full
// interval before resampling; the loop never busy-spins. An error from
// source is fatal and returned unchanged.
func Until[S any](clock Clock, what string, source func() (S, error), pred func(S) bool, interval, deadline time.Duration) (S, error) {
	var zero S
	start := clock.Now()
	for {
		state, err := source()
		if err != nil {
			return zero, err
		}
		if pred(state) {
			return state, nil
		}
		if clock.Now().Sub(start) >= deadline {
			return zero, &TimeoutError{What: what, Deadline: deadline}
		}
		clock.Sleep(interval)
	}
}
