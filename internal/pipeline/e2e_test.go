package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mrruby/bar-age-gate/internal/compose"
	"github.com/mrruby/bar-age-gate/internal/contract/agegate"
	"github.com/mrruby/bar-age-gate/internal/ledger"
	"github.com/mrruby/bar-age-gate/internal/status"
	"github.com/mrruby/bar-age-gate/internal/wallet"
	"github.com/mrruby/bar-age-gate/internal/witness"
)

// localChain simulates the node and indexer in one process: submissions are
// verified, contract calls are applied through the real state transition, and
// the resulting state is immediately readable. Proof verification uses the
// real Groth16 verifier, so these tests exercise the whole client loop.
type localChain struct {
	states   map[string][]byte
	verifier agegate.CallVerifier
	snapshot ledger.WalletSnapshot
	height   uint64
}

func newLocalChain(verifier agegate.CallVerifier, snap ledger.WalletSnapshot) *localChain {
	return &localChain{states: make(map[string][]byte), verifier: verifier, snapshot: snap, height: 1}
}

func (c *localChain) ContractState(address string) ([]byte, bool, error) {
	s, ok := c.states[address]
	return s, ok, nil
}

func (c *localChain) WalletSnapshot([]byte) (ledger.WalletSnapshot, error) {
	return c.snapshot, nil
}

func (c *localChain) ChainTime() (time.Time, error) {
	return time.Unix(1_700_000_000, 0), nil
}

func (c *localChain) Submit(tx *ledger.Transaction) (ledger.TxHash, error) {
	if missing := tx.MissingSignatures(); len(missing) > 0 {
		return "", &ledger.SubmitError{Code: ledger.RejectMissingSignature,
			Message: fmt.Sprintf("unsigned input slots: %v", missing)}
	}
	for _, seg := range tx.SegmentIndexes() {
		intent := tx.Intents[seg]
		if intent.Deploy != nil {
			c.states[intent.Deploy.Address] = intent.Deploy.InitialState
		}
		if intent.Call != nil {
			state, ok := c.states[intent.Call.Address]
			if !ok {
				return "", &ledger.SubmitError{Code: ledger.RejectUnknown,
					Message: "no contract at " + intent.Call.Address}
			}
			next, err := (agegate.AgeGate{}).Apply(state, intent.Call, c.verifier)
			if err != nil {
				return "", &ledger.SubmitError{Code: ledger.RejectInvalidProof, Message: err.Error()}
			}
			c.states[intent.Call.Address] = next
		}
	}
	c.height++
	return ledger.TxHash(fmt.Sprintf("block-%d", c.height)), nil
}

type e2eSession struct {
	chain    *localChain
	pipeline *Pipeline
	store    *witness.Store
	reader   *status.Reader
	address  string
}

func newE2ESession(t *testing.T) *e2eSession {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Groth16 setup in short mode")
	}
	prover, err := agegate.NewProver(t.TempDir())
	require.NoError(t, err)

	snap := ledger.WalletSnapshot{
		Utxos:        []ledger.Utxo{{TxHash: "genesis", Index: 0, Value: 10_000}},
		DustBalance:  100_000,
		SyncedHeight: 1, TipHeight: 1,
	}
	chain := newLocalChain(prover, snap)

	w := wallet.New("e2e", []byte("owner"))
	w.Refresh(snap)
	p := &Pipeline{
		Composer:  compose.New(w, chain),
		Prover:    prover,
		Signer:    testSigner(t),
		Submitter: chain,
		Indexer:   chain,
		Clock:     &fakeClock{},
		Config:    DefaultConfig(),
		Log:       zerolog.Nop(),
	}

	rec, err := p.Deploy(agegate.AgeGate{}, []byte("owner"), time.Unix(1_700_000_000, 0))
	require.NoError(t, err)

	reader, err := status.NewReader(chain, agegate.AgeGate{})
	require.NoError(t, err)
	return &e2eSession{chain: chain, pipeline: p, store: witness.NewStore(), reader: reader, address: rec.ContractAddress}
}

func (s *e2eSession) register(t *testing.T, key witness.CommitmentKey, age uint64) (ledger.TxHash, error) {
	t.Helper()
	call, err := agegate.BuildRegisterCall(s.address, s.store, key, age)
	require.NoError(t, err)
	tx, err := s.pipeline.Composer.BuildContractCall(call)
	require.NoError(t, err)
	return s.pipeline.Submit(tx, []byte("owner"))
}

func (s *e2eSession) proveAdult(t *testing.T, key witness.CommitmentKey) (ledger.TxHash, error) {
	t.Helper()
	call, err := agegate.BuildProveAdultCall(s.address, s.store, key)
	require.NoError(t, err)
	tx, err := s.pipeline.Composer.BuildContractCall(call)
	require.NoError(t, err)
	return s.pipeline.Submit(tx, []byte("owner"))
}

func TestEndToEndAdultGetsPermitOnlyAfterProof(t *testing.T) {
	s := newE2ESession(t)
	key := witness.NewCommitmentKey("bar", "alice")

	_, err := s.register(t, key, 22)
	require.NoError(t, err)

	st, err := s.reader.Read(s.address, key)
	require.NoError(t, err)
	require.True(t, st.Registered)
	require.False(t, st.AdultVerified, "registration alone must not grant the permit")
	require.Equal(t, uint64(1), st.CounterValue)

	_, err = s.proveAdult(t, key)
	require.NoError(t, err)

	st, err = s.reader.Read(s.address, key)
	require.NoError(t, err)
	require.True(t, st.AdultVerified)
	require.Equal(t, uint64(2), st.CounterValue)
}

func TestEndToEndMinorNeverGetsPermit(t *testing.T) {
	s := newE2ESession(t)
	key := witness.NewCommitmentKey("bar", "mallory")

	// Registration is age-blind and succeeds for a minor.
	_, err := s.register(t, key, 17)
	require.NoError(t, err)

	// The threshold proof cannot be produced, so nothing is ever submitted
	// and the permit mapping stays empty.
	_, err = s.proveAdult(t, key)
	require.Error(t, err)

	st, err := s.reader.Read(s.address, key)
	require.NoError(t, err)
	require.True(t, st.Registered)
	require.False(t, st.AdultVerified)
	require.Equal(t, uint64(1), st.CounterValue)
}

func TestEndToEndUnknownIdentityReadsZeroStatus(t *testing.T) {
	s := newE2ESession(t)
	st, err := s.reader.Read(s.address, witness.NewCommitmentKey("bar", "nobody"))
	require.NoError(t, err)
	require.Equal(t, status.ClientStatus{}, st)
}
