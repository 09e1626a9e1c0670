// prover.go - Local Groth16 prover and verifier for the age-gate circuits.
//
// Implements the proof-provider contract the submission pipeline consumes.
// Keys are generated once per circuit and cached on disk, so repeat sessions
// skip the expensive Groth16 setup.

package agegate

import (
	"bytes"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/mrruby/bar-age-gate/internal/ledger"
)

// circuitSetup is the compiled constraint system plus its Groth16 keys.
type circuitSetup struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// Prover proves and verifies age-gate circuit invocations locally.
type Prover struct {
	setups map[string]*circuitSetup
}

// NewProver compiles both circuits and loads or generates their keys under
// keyDir.
func NewProver(keyDir string) (*Prover, error) {
	if err := os.MkdirAll(keyDir, 0755); err != nil {
		return nil, fmt.Errorf("key dir creation failed: %w", err)
	}
	p := &Prover{setups: make(map[string]*circuitSetup)}

	circuits := map[string]frontend.Circuit{
		CircuitRegisterName:   &CircuitRegister{},
		CircuitProveAdultName: &CircuitProveAdult{},
	}
	for name, circuit := range circuits {
		ccs, err := frontend.Compile(ecc.BW6_761.ScalarField(), r1cs.NewBuilder, circuit)
		if err != nil {
			return nil, fmt.Errorf("circuit %s compilation failed: %w", name, err)
		}
		pk, vk, err := setupOrLoadKeys(ccs,
			filepath.Join(keyDir, name+"_pk.bin"),
			filepath.Join(keyDir, name+"_vk.bin"))
		if err != nil {
			return nil, fmt.Errorf("circuit %s key setup failed: %w", name, err)
		}
		p.setups[name] = &circuitSetup{ccs: ccs, pk: pk, vk: vk}
	}
	return p, nil
}

// Prove implements the proof-provider contract: every contract call in the
// transaction that still carries a private assignment gets its Groth16 proof
// attached, and the assignment is dropped. The input transaction is not
// modified.
func (p *Prover) Prove(tx *ledger.Transaction) (*ledger.Transaction, error) {
	proved := &ledger.Transaction{Intents: make(map[uint32]*ledger.Intent, len(tx.Intents)), Expiry: tx.Expiry}
	for seg, intent := range tx.Intents {
		next := *intent
		if intent.Call != nil && len(intent.Call.Proof) == 0 {
			call := *intent.Call
			assignment, ok := call.Witness.(frontend.Circuit)
			if !ok {
				return nil, fmt.Errorf("segment %d: call %q has no private assignment to prove", seg, call.Circuit)
			}
			setup, ok := p.setups[call.Circuit]
			if !ok {
				return nil, fmt.Errorf("segment %d: unknown circuit %q", seg, call.Circuit)
			}
			w, err := frontend.NewWitness(assignment, ecc.BW6_761.ScalarField())
			if err != nil {
				return nil, fmt.Errorf("segment %d: witness creation failed: %w", seg, err)
			}
			proof, err := groth16.Prove(setup.ccs, setup.pk, w)
			if err != nil {
				return nil, fmt.Errorf("segment %d: proof generation failed: %w", seg, err)
			}
			var buf bytes.Buffer
			if _, err := proof.WriteTo(&buf); err != nil {
				return nil, fmt.Errorf("segment %d: proof marshaling failed: %w", seg, err)
			}
			call.Proof = buf.Bytes()
			call.Witness = nil
			// Self-check against the public inputs before the proof leaves
			// the process.
			if err := p.VerifyCall(&call); err != nil {
				return nil, fmt.Errorf("segment %d: %w", seg, err)
			}
			next.Call = &call
		}
		proved.Intents[seg] = &next
	}
	return proved, nil
}

// VerifyCall checks the Groth16 proof of a contract call against its public
// inputs. Used before submission and by the local contract runtime.
func (p *Prover) VerifyCall(call *ledger.ContractCall) error {
	setup, ok := p.setups[call.Circuit]
	if !ok {
		return fmt.Errorf("unknown circuit %q", call.Circuit)
	}
	public, err := publicAssignment(call)
	if err != nil {
		return err
	}
	w, err := frontend.NewWitness(public, ecc.BW6_761.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	proof := groth16.NewProof(ecc.BW6_761)
	if _, err := proof.ReadFrom(bytes.NewReader(call.Proof)); err != nil {
		return fmt.Errorf("proof unmarshaling failed: %w", err)
	}
	if err := groth16.Verify(proof, setup.vk, w); err != nil {
		return fmt.Errorf("proof verification failed: %w", err)
	}
	return nil
}

// publicAssignment rebuilds the circuit's public inputs from a call.
func publicAssignment(call *ledger.ContractCall) (frontend.Circuit, error) {
	if len(call.PublicInputs) < 2 {
		return nil, fmt.Errorf("call %q missing public inputs", call.Circuit)
	}
	cm := new(big.Int).SetBytes(call.PublicInputs[1]).String()
	switch call.Circuit {
	case CircuitRegisterName:
		return &CircuitRegister{Commitment: cm}, nil
	case CircuitProveAdultName:
		if len(call.PublicInputs) < 3 {
			return nil, fmt.Errorf("prove_adult call missing threshold input")
		}
		threshold := new(big.Int).SetBytes(call.PublicInputs[2]).String()
		return &CircuitProveAdult{Commitment: cm, Threshold: threshold}, nil
	default:
		return nil, fmt.Errorf("unknown circuit %q", call.Circuit)
	}
}

// setupOrLoadKeys loads Groth16 keys from disk or generates and saves them.
func setupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := loadProvingKey(pkPath)
	vk, vkErr := loadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := saveKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := saveKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}

func saveKey(path string, k io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = k.WriteTo(f)
	return err
}

func loadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BW6_761)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func loadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BW6_761)
	_, err = vk.ReadFrom(f)
	return vk, err
}
