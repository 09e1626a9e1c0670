// invoke.go - Circuit invocations over the witness bridge.
//
// Building a call is the local computation step: it consults and mutates the
// private witness store, derives the public commitment, and packages the
// private assignment for the prover. The private record itself never leaves
// the witness bridge.

package agegate

import (
	"fmt"
	"math/big"

	"github.com/mrruby/bar-age-gate/internal/ledger"
	"github.com/mrruby/bar-age-gate/internal/witness"
)

// BuildRegisterCall stores a fresh private record for an identity in the
// witness bridge and builds the register call committing to it.
func BuildRegisterCall(address string, bridge witness.Bridge, key witness.CommitmentKey, age uint64) (*ledger.ContractCall, error) {
	rec, err := witness.NewPrivateRecord(age)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := bridge.Store(key, rec); err != nil {
		return nil, fmt.Errorf("register: witness store failed: %w", err)
	}
	cm := CommitRecord(rec.Value, rec.Salt)

	assignment := &CircuitRegister{
		Commitment: new(big.Int).SetBytes(cm).String(),
		Value:      new(big.Int).SetUint64(rec.Value).String(),
		Salt:       new(big.Int).SetBytes(rec.Salt[:]).String(),
	}
	return &ledger.ContractCall{
		Address:      address,
		Circuit:      CircuitRegisterName,
		PublicInputs: [][]byte{[]byte(key), cm},
		Witness:      assignment,
	}, nil
}

// BuildProveAdultCall loads the identity's private record from the witness
// bridge and builds the prove_adult call against its commitment. Fails with
// the bridge's MissingRecord error if the identity was never registered.
func BuildProveAdultCall(address string, bridge witness.Bridge, key witness.CommitmentKey) (*ledger.ContractCall, error) {
	rec, aux, err := bridge.Load(key)
	if err != nil {
		return nil, fmt.Errorf("prove_adult: %w", err)
	}
	cm := CommitRecord(rec.Value, aux.Salt)

	assignment := &CircuitProveAdult{
		Commitment: new(big.Int).SetBytes(cm).String(),
		Threshold:  new(big.Int).SetUint64(AdultThreshold).String(),
		Value:      new(big.Int).SetUint64(rec.Value).String(),
		Salt:       new(big.Int).SetBytes(aux.Salt[:]).String(),
	}
	return &ledger.ContractCall{
		Address: address,
		Circuit: CircuitProveAdultName,
		PublicInputs: [][]byte{
			[]byte(key),
			cm,
			new(big.Int).SetUint64(AdultThreshold).Bytes(),
		},
		Witness: assignment,
	}, nil
}
