package status

import (
	"errors"
	"testing"
	"time"

	"github.com/mrruby/bar-age-gate/internal/contract"
	"github.com/mrruby/bar-age-gate/internal/contract/agegate"
	"github.com/mrruby/bar-age-gate/internal/poll"
	"github.com/mrruby/bar-age-gate/internal/witness"
)

type fakeSource struct {
	state   []byte
	present bool
	err     error
}

func (f fakeSource) ContractState(string) ([]byte, bool, error) {
	return f.state, f.present, f.err
}

func TestReadAbsentStateIsZeroStatus(t *testing.T) {
	r, err := NewReader(fakeSource{present: false}, agegate.AgeGate{})
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	got, err := r.Read("addr", witness.NewCommitmentKey("bar", "alice"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != (ClientStatus{}) {
		t.Errorf("absent state should yield zero status, got %+v", got)
	}
}

func TestReadDecodesMappings(t *testing.T) {
	key := witness.NewCommitmentKey("bar", "alice")
	state := agegate.NewState()
	state.Commitments[string(key)] = []byte{1, 2, 3}
	state.Counters[string(key)] = 2
	blob, err := state.Encode()
	if err != nil {
		t.Fatalf("state encode failed: %v", err)
	}

	r, err := NewReader(fakeSource{state: blob, present: true}, agegate.AgeGate{})
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	got, err := r.Read("addr", key)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	want := ClientStatus{Registered: true, AdultVerified: false, CounterValue: 2}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// A different key sees the zero status in the same state.
	other, err := r.Read("addr", witness.NewCommitmentKey("bar", "bob"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if other != (ClientStatus{}) {
		t.Errorf("unrelated key should see zero status, got %+v", other)
	}
}

func TestReadPropagatesSourceError(t *testing.T) {
	boom := errors.New("indexer down")
	r, err := NewReader(fakeSource{err: boom}, agegate.AgeGate{})
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if _, err := r.Read("addr", "k"); !errors.Is(err, boom) {
		t.Errorf("expected indexer error to propagate, got %v", err)
	}
}

type tickClock struct {
	now time.Time
}

func (c *tickClock) Now() time.Time        { return c.now }
func (c *tickClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

// delayedSource reports no state for the first few reads, then the blob.
type delayedSource struct {
	reads int
	after int
	blob  []byte
}

func (m *delayedSource) ContractState(string) ([]byte, bool, error) {
	m.reads++
	if m.reads > m.after {
		return m.blob, true, nil
	}
	return nil, false, nil
}

func TestWaitReturnsOnceStateUpdates(t *testing.T) {
	key := witness.NewCommitmentKey("bar", "alice")
	state := agegate.NewState()
	state.Commitments[string(key)] = []byte{1}
	blob, err := state.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	src := &delayedSource{after: 3, blob: blob}
	r, err := NewReader(src, agegate.AgeGate{})
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	clock := &tickClock{now: time.Unix(0, 0)}
	got, err := r.Wait(clock, "addr", key,
		func(st ClientStatus) bool { return st.Registered },
		time.Second, time.Minute)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !got.Registered {
		t.Errorf("Wait returned before the predicate held: %+v", got)
	}
	if src.reads != 4 {
		t.Errorf("expected 4 polls, got %d", src.reads)
	}
}

func TestWaitTimesOutOnUnchangedState(t *testing.T) {
	r, err := NewReader(&delayedSource{after: 1 << 30}, agegate.AgeGate{})
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	clock := &tickClock{now: time.Unix(0, 0)}
	_, err = r.Wait(clock, "addr", "k",
		func(st ClientStatus) bool { return st.Registered },
		time.Second, 5*time.Second)
	var timeout *poll.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

type noMappingsModule struct{ agegate.AgeGate }

func (noMappingsModule) Manifest() contract.Manifest {
	return contract.Manifest{Name: "broken", Circuits: []string{"register"}}
}

func TestNewReaderRejectsModuleWithoutMappings(t *testing.T) {
	_, err := NewReader(fakeSource{}, noMappingsModule{})
	var missing *contract.MissingCapabilityError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCapabilityError, got %v", err)
	}
	if missing.Kind != "mapping" {
		t.Errorf("expected a missing mapping capability, got %+v", missing)
	}
}
