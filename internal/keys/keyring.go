// keyring.go - Session keyring over the derived role keys.
//
// The keyring owns the SecretKeyBundle for exactly one session. It exposes
// signing and public-key derivation; raw private scalars never leave this
// package. Signatures are DER-encoded secp256k1 ECDSA over a 32-byte digest,
// compatible with the ledger's transparent signature checks.

package keys

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// PayloadLen is the only payload length Sign accepts: a 32-byte digest.
const PayloadLen = 32

// ErrInvalidPayload is returned when a signing payload has the wrong length.
var ErrInvalidPayload = errors.New("keys: signing payload must be a 32-byte digest")

// ErrKeyringClosed is returned when a keyring is used after Close.
var ErrKeyringClosed = errors.New("keys: keyring is closed")

// SecretKeyBundle holds the role-scoped private keys for one session.
// Immutable after derivation; zeroed on Close.
type SecretKeyBundle struct {
	keys map[Role]*secp256k1.PrivateKey
}

// Keyring exposes signing and public-key operations for a session without
// ever returning private key material.
type Keyring struct {
	bundle *SecretKeyBundle
}

// NewKeyring wraps a derived bundle in a session keyring.
func NewKeyring(bundle *SecretKeyBundle) *Keyring {
	return &Keyring{bundle: bundle}
}

// Sign signs a 32-byte payload digest with the session's signing key and
// returns the DER-encoded signature. Any other payload length is rejected
// with ErrInvalidPayload; a keyring that was already closed fails with
// ErrKeyringClosed.
func (k *Keyring) Sign(payload []byte) ([]byte, error) {
	if len(payload) != PayloadLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPayload, len(payload))
	}
	sk, ok := k.bundle.keys[RoleSigning]
	if !ok {
		return nil, ErrKeyringClosed
	}
	sig := ecdsa.Sign(sk, payload)
	return sig.Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key for the given role,
// or nil after Close.
func (k *Keyring) PublicKey(role Role) []byte {
	sk, ok := k.bundle.keys[role]
	if !ok {
		return nil
	}
	return sk.PubKey().SerializeCompressed()
}

// SigningPublicKey returns the compressed public key matching Sign.
func (k *Keyring) SigningPublicKey() []byte {
	return k.PublicKey(RoleSigning)
}

// Verify checks a DER signature produced by Sign against a compressed
// public key. Exposed for tests and pre-submission sanity checks.
func Verify(pubKey, payload, sigDER []byte) bool {
	if len(payload) != PayloadLen {
		return false
	}
	pk, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(sigDER)
	if err != nil {
		return false
	}
	return sig.Verify(payload, pk)
}

// Close zeroes the bundle's key material. The keyring must not be used
// afterwards.
func (k *Keyring) Close() {
	for role, sk := range k.bundle.keys {
		sk.Zero()
		delete(k.bundle.keys, role)
	}
}
