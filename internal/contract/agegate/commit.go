// commit.go - Native record commitment matching the circuits.

package agegate

import (
	"math/big"

	mimcNative "github.com/consensys/gnark-crypto/ecc/bw6-761/fr/mimc"
)

// AdultThreshold is the public age threshold the prove_adult circuit
// enforces.
const AdultThreshold = 18

// CommitRecord computes the on-chain commitment of a private record as
// MiMC(value, salt), the native counterpart of the in-circuit hash.
func CommitRecord(value uint64, salt [32]byte) []byte {
	h := mimcNative.NewMiMC()
	h.Write(new(big.Int).SetUint64(value).Bytes())
	h.Write(salt[:])
	return h.Sum(nil)
}
