// agegate.go - The age-gate contract module.
//
// Public state is three named mappings keyed by commitment key:
//   - commitments: identity registrations (key -> record commitment)
//   - permits: identities with a verified adult proof
//   - counters: successful calls per identity
//
// The module satisfies the contract capability interface: manifest,
// initial-state constructor, and typed ledger view over a CBOR state blob.

package agegate

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/mrruby/bar-age-gate/internal/contract"
	"github.com/mrruby/bar-age-gate/internal/ledger"
)

// Capability names exported by the module.
const (
	Name = "age-gate"

	CircuitRegisterName   = "register"
	CircuitProveAdultName = "prove_adult"

	MappingCommitments = "commitments"
	MappingPermits     = "permits"
	MappingCounters    = "counters"
)

// State is the contract's public on-chain state.
type State struct {
	Commitments map[string][]byte `cbor:"1,keyasint" json:"commitments"`
	Permits     map[string]bool   `cbor:"2,keyasint" json:"permits"`
	Counters    map[string]uint64 `cbor:"3,keyasint" json:"counters"`
}

// NewState creates the empty contract state.
func NewState() *State {
	return &State{
		Commitments: make(map[string][]byte),
		Permits:     make(map[string]bool),
		Counters:    make(map[string]uint64),
	}
}

// Encode serializes the state blob.
func (s *State) Encode() ([]byte, error) {
	b, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("age-gate state encode failed: %w", err)
	}
	return b, nil
}

// DecodeState parses a state blob.
func DecodeState(b []byte) (*State, error) {
	s := NewState()
	if err := cbor.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("age-gate state decode failed: %w", err)
	}
	return s, nil
}

// AgeGate is the circuit module handed to the core.
type AgeGate struct{}

// Manifest implements contract.Module.
func (AgeGate) Manifest() contract.Manifest {
	return contract.Manifest{
		Name:     Name,
		Circuits: []string{CircuitRegisterName, CircuitProveAdultName},
		Mappings: []string{MappingCommitments, MappingPermits, MappingCounters},
	}
}

// InitialState implements contract.Module.
func (AgeGate) InitialState(contract.ConstructorContext) ([]byte, error) {
	return NewState().Encode()
}

// LedgerView implements contract.Module.
func (AgeGate) LedgerView(state []byte) (contract.View, error) {
	s, err := DecodeState(state)
	if err != nil {
		return nil, err
	}
	return &stateView{state: s}, nil
}

// stateView adapts State to the typed mapping accessors.
type stateView struct {
	state *State
}

func (v *stateView) Mapping(name string) (contract.Mapping, bool) {
	switch name {
	case MappingCommitments:
		return commitmentsMapping{v.state}, true
	case MappingPermits:
		return permitsMapping{v.state}, true
	case MappingCounters:
		return countersMapping{v.state}, true
	default:
		return nil, false
	}
}

type commitmentsMapping struct{ s *State }

func (m commitmentsMapping) Member(key string) bool { _, ok := m.s.Commitments[key]; return ok }
func (m commitmentsMapping) Lookup(string) uint64   { return 0 }

type permitsMapping struct{ s *State }

func (m permitsMapping) Member(key string) bool { return m.s.Permits[key] }
func (m permitsMapping) Lookup(string) uint64   { return 0 }

type countersMapping struct{ s *State }

func (m countersMapping) Member(key string) bool { _, ok := m.s.Counters[key]; return ok }
func (m countersMapping) Lookup(key string) uint64 {
	// Absent key is the zero value, never an error.
	return m.s.Counters[key]
}

// CallVerifier checks the proof attached to a contract call.
type CallVerifier interface {
	VerifyCall(call *ledger.ContractCall) error
}

// Apply executes a verified contract call against a state blob and returns
// the successor blob. Used by the local simulation of the ledger's contract
// runtime; the real chain performs the same transition.
func (g AgeGate) Apply(stateBlob []byte, call *ledger.ContractCall, verifier CallVerifier) ([]byte, error) {
	s, err := DecodeState(stateBlob)
	if err != nil {
		return nil, err
	}
	if len(call.PublicInputs) < 2 {
		return nil, fmt.Errorf("age-gate call %q missing public inputs", call.Circuit)
	}
	key := string(call.PublicInputs[0])
	cm := call.PublicInputs[1]

	if err := verifier.VerifyCall(call); err != nil {
		return nil, fmt.Errorf("age-gate call %q proof rejected: %w", call.Circuit, err)
	}

	switch call.Circuit {
	case CircuitRegisterName:
		s.Commitments[key] = cm
		s.Counters[key]++
	case CircuitProveAdultName:
		registered, ok := s.Commitments[key]
		if !ok {
			return nil, fmt.Errorf("age-gate: identity %s not registered", key)
		}
		if !bytes.Equal(registered, cm) {
			return nil, fmt.Errorf("age-gate: commitment mismatch for identity %s", key)
		}
		s.Permits[key] = true
		s.Counters[key]++
	default:
		return nil, fmt.Errorf("age-gate: unknown circuit %q", call.Circuit)
	}
	return s.Encode()
}
