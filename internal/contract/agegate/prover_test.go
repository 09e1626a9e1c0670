package agegate

import (
	"testing"

	"github.com/mrruby/bar-age-gate/internal/ledger"
	"github.com/mrruby/bar-age-gate/internal/witness"
)

// The Groth16 tests compile circuits and run a full setup, which takes
// tens of seconds. They are skipped under -short.

func newTestProver(t *testing.T) *Prover {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Groth16 setup in short mode")
	}
	p, err := NewProver(t.TempDir())
	if err != nil {
		t.Fatalf("prover setup failed: %v", err)
	}
	return p
}

func proveCall(t *testing.T, p *Prover, call *ledger.ContractCall) (*ledger.ContractCall, error) {
	t.Helper()
	tx := ledger.NewTransaction(&ledger.Intent{Call: call})
	proved, err := p.Prove(tx)
	if err != nil {
		return nil, err
	}
	return proved.Intents[0].Call, nil
}

func TestProveAndVerifyRegister(t *testing.T) {
	p := newTestProver(t)
	store := witness.NewStore()
	key := witness.NewCommitmentKey("bar", "alice")

	call, err := BuildRegisterCall("addr", store, key, 22)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	proved, err := proveCall(t, p, call)
	if err != nil {
		t.Fatalf("prove failed: %v", err)
	}
	if len(proved.Proof) == 0 {
		t.Fatal("no proof attached")
	}
	if proved.Witness != nil {
		t.Error("private assignment must be dropped after proving")
	}
	if err := p.VerifyCall(proved); err != nil {
		t.Errorf("proof must verify against its own public inputs: %v", err)
	}

	// Proof is bound to the commitment: a different one must not verify.
	tampered := *proved
	tampered.PublicInputs = [][]byte{proved.PublicInputs[0], {0xde, 0xad}}
	if err := p.VerifyCall(&tampered); err == nil {
		t.Error("proof must not verify against a tampered commitment")
	}
}

func TestAdultCanProveThreshold(t *testing.T) {
	p := newTestProver(t)
	store := witness.NewStore()
	key := witness.NewCommitmentKey("bar", "alice")

	if _, err := BuildRegisterCall("addr", store, key, 22); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	call, err := BuildProveAdultCall("addr", store, key)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	proved, err := proveCall(t, p, call)
	if err != nil {
		t.Fatalf("prove failed: %v", err)
	}
	if err := p.VerifyCall(proved); err != nil {
		t.Errorf("adult proof must verify: %v", err)
	}
}

func TestMinorCannotProveThreshold(t *testing.T) {
	p := newTestProver(t)
	store := witness.NewStore()
	key := witness.NewCommitmentKey("bar", "mallory")

	// Registration is age-blind; only the threshold proof can fail.
	if _, err := BuildRegisterCall("addr", store, key, 17); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	call, err := BuildProveAdultCall("addr", store, key)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := proveCall(t, p, call); err == nil {
		t.Fatal("a value below the threshold must not produce a proof")
	}
}

func TestProverKeysAreCachedOnDisk(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Groth16 setup in short mode")
	}
	dir := t.TempDir()
	first, err := NewProver(dir)
	if err != nil {
		t.Fatalf("first setup failed: %v", err)
	}
	store := witness.NewStore()
	key := witness.NewCommitmentKey("bar", "alice")
	call, err := BuildRegisterCall("addr", store, key, 30)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	proved, err := proveCall(t, first, call)
	if err != nil {
		t.Fatalf("prove failed: %v", err)
	}

	// A second prover over the same directory loads the cached keys and can
	// verify proofs produced by the first.
	second, err := NewProver(dir)
	if err != nil {
		t.Fatalf("second setup failed: %v", err)
	}
	if err := second.VerifyCall(proved); err != nil {
		t.Errorf("cached keys must verify earlier proofs: %v", err)
	}
}
