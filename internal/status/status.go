// status.go - Typed client status over the indexed contract state.
//
// A pure read: fetch the latest indexed state for the contract, decode the
// three public mappings, and report membership/lookup for one commitment
// key. No caching and no retries here; poll semantics live in the caller.

package status

import (
	"fmt"
	"time"

	"github.com/mrruby/bar-age-gate/internal/contract"
	"github.com/mrruby/bar-age-gate/internal/poll"
	"github.com/mrruby/bar-age-gate/internal/witness"
)

// Mapping names the reader depends on.
const (
	mappingCommitments = "commitments"
	mappingPermits     = "permits"
	mappingCounters    = "counters"
)

// ClientStatus is the decoded on-chain view for one identity. Recomputed
// fresh on every read.
type ClientStatus struct {
	Registered    bool
	AdultVerified bool
	CounterValue  uint64
}

// StateSource is the slice of the indexer the reader needs.
type StateSource interface {
	ContractState(address string) (state []byte, ok bool, err error)
}

// Reader decodes client status from indexed contract state.
type Reader struct {
	source StateSource
	module contract.Module
}

// NewReader validates the module's capabilities once and returns a reader.
// A module missing one of the required mappings fails here, not on a later
// read.
func NewReader(source StateSource, module contract.Module) (*Reader, error) {
	err := contract.Load(module, contract.Requirements{
		Mappings: []string{mappingCommitments, mappingPermits, mappingCounters},
	})
	if err != nil {
		return nil, err
	}
	return &Reader{source: source, module: module}, nil
}

// Read fetches and decodes the status for a commitment key. A contract with
// no indexed state yet yields the all-false/zero status; an absent key in
// the counter mapping yields zero, never an error.
func (r *Reader) Read(address string, key witness.CommitmentKey) (ClientStatus, error) {
	state, ok, err := r.source.ContractState(address)
	if err != nil {
		return ClientStatus{}, fmt.Errorf("contract state query failed: %w", err)
	}
	if !ok {
		return ClientStatus{}, nil
	}
	view, err := r.module.LedgerView(state)
	if err != nil {
		return ClientStatus{}, fmt.Errorf("ledger view decode failed: %w", err)
	}

	var status ClientStatus
	if m, ok := view.Mapping(mappingCommitments); ok {
		status.Registered = m.Member(string(key))
	}
	if m, ok := view.Mapping(mappingPermits); ok {
		status.AdultVerified = m.Member(string(key))
	}
	if m, ok := view.Mapping(mappingCounters); ok {
		status.CounterValue = m.Lookup(string(key))
	}
	return status, nil
}

// Wait polls Read until pred is satisfied, within deadline. Used after a
// submission to wait for the indexer to reflect the state change.
func (r *Reader) Wait(clock poll.Clock, address string, key witness.CommitmentKey,
	pred func(ClientStatus) bool, interval, deadline time.Duration) (ClientStatus, error) {
	return poll.Until(clock, fmt.Sprintf("indexed state of contract %s to update", address),
		func() (ClientStatus, error) { return r.Read(address, key) },
		pred, interval, deadline)
}
