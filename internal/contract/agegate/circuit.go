// circuit.go - ZK circuits for the age-gate contract.
//
// Two circuits over BW6-761 with MiMC, matching the native commitment in
// commit.go:
//   - register: proves knowledge of the (value, salt) opening of a published
//     commitment, so only well-formed records enter the commitment set.
//   - prove_adult: additionally proves value >= threshold without revealing
//     the value itself.

package agegate

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// CircuitRegister proves the opening of a record commitment.
type CircuitRegister struct {
	// ====== PUBLIC VARIABLES ======
	Commitment frontend.Variable `gnark:",public"`

	// ====== PRIVATE VARIABLES ======
	Value frontend.Variable
	Salt  frontend.Variable
}

// Define implements the registration constraints: cm = MiMC(value, salt).
func (c *CircuitRegister) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.Value)
	hasher.Write(c.Salt)
	api.AssertIsEqual(c.Commitment, hasher.Sum())
	return nil
}

// CircuitProveAdult proves the committed value meets a public threshold.
type CircuitProveAdult struct {
	// ====== PUBLIC VARIABLES ======
	Commitment frontend.Variable `gnark:",public"`
	Threshold  frontend.Variable `gnark:",public"`

	// ====== PRIVATE VARIABLES ======
	Value frontend.Variable
	Salt  frontend.Variable
}

// Define implements the adult-verification constraints:
// cm = MiMC(value, salt) and threshold <= value.
func (c *CircuitProveAdult) Define(api frontend.API) error {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	hasher.Write(c.Value)
	hasher.Write(c.Salt)
	api.AssertIsEqual(c.Commitment, hasher.Sum())

	api.AssertIsLessOrEqual(c.Threshold, c.Value)
	return nil
}
