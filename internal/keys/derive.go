// derive.go - Role-scoped key derivation for a wallet session.
//
// A session derives all of its secret keys exactly once from a 32-byte seed.
// Each role (spend, receive, dust generation, transaction signing) gets its
// own secp256k1 scalar, produced by domain-separated BLAKE2b hashing of the
// seed so that compromising one role key reveals nothing about the others.

package keys

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/blake2b"
)

// SeedLen is the required seed length in bytes.
const SeedLen = 32

// ErrInvalidSeed is returned when the seed cannot produce valid role keys.
var ErrInvalidSeed = errors.New("keys: invalid seed")

// Role identifies one of the session's key roles.
type Role string

const (
	RoleSpend   Role = "spend"
	RoleReceive Role = "receive"
	RoleDust    Role = "dust"
	RoleSigning Role = "signing"
)

// deriveRoles is the fixed derivation order for a bundle.
var deriveRoles = []Role{RoleSpend, RoleReceive, RoleDust, RoleSigning}

// DeriveRoleKeys derives the full SecretKeyBundle for a session from a seed.
// Derivation is pure and deterministic: the same seed always yields the same
// bundle. Fails with ErrInvalidSeed if the seed has the wrong length or a
// derived scalar falls outside the curve order (vanishingly unlikely, but
// rejected rather than reduced so the mapping stays injective).
func DeriveRoleKeys(seed []byte) (*SecretKeyBundle, error) {
	if len(seed) != SeedLen {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidSeed, SeedLen, len(seed))
	}
	bundle := &SecretKeyBundle{keys: make(map[Role]*secp256k1.PrivateKey, len(deriveRoles))}
	for _, role := range deriveRoles {
		sk, err := deriveRoleKey(seed, role)
		if err != nil {
			return nil, err
		}
		bundle.keys[role] = sk
	}
	return bundle, nil
}

// deriveRoleKey produces a single role scalar as BLAKE2b-256(tag || seed).
func deriveRoleKey(seed []byte, role Role) (*secp256k1.PrivateKey, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("keys: hash init failed: %w", err)
	}
	h.Write([]byte("bar-age-gate/keys/v1/" + string(role)))
	h.Write(seed)
	digest := h.Sum(nil)

	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(digest); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("%w: derived %s scalar out of range", ErrInvalidSeed, role)
	}
	return secp256k1.NewPrivateKey(&scalar), nil
}
