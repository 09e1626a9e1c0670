// signer.go - Per-segment intent signing.
//
// Each intent segment is independently signable: its canonical payload is a
// hash of the segment index and the segment's signable encoding, which is
// re-derived from bytes so that attached-but-not-final material (private
// assignments, existing signatures) never leaks into what gets signed. The
// signer is an immutable fold: it returns a new transaction per pass and
// never mutates its input, so no caller observes a half-signed value.

package sign

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/mrruby/bar-age-gate/internal/keys"
	"github.com/mrruby/bar-age-gate/internal/ledger"
)

// Signer signs transaction segments with a session keyring.
type Signer struct {
	keyring *keys.Keyring
}

// New creates a signer over a keyring.
func New(kr *keys.Keyring) *Signer {
	return &Signer{keyring: kr}
}

// SigningPayload computes the canonical 32-byte signing payload of one
// segment: BLAKE2b-256 over a domain tag, the segment index, and the
// segment's signable encoding (all signature slots cleared, private material
// stripped by the encode/decode round trip). The payload is identical no
// matter which co-signers have already signed, so every party signs the same
// bytes.
func SigningPayload(segment uint32, intent *ledger.Intent) ([]byte, error) {
	encoded, err := ledger.EncodeIntent(intent)
	if err != nil {
		return nil, err
	}
	signable, err := ledger.DecodeIntent(encoded)
	if err != nil {
		return nil, err
	}
	for _, offer := range []*ledger.SpendOffer{signable.Guaranteed, signable.Fallible} {
		if offer == nil {
			continue
		}
		for i := range offer.Inputs {
			offer.Inputs[i].Signature = nil
		}
	}
	canonical, err := ledger.EncodeIntent(signable)
	if err != nil {
		return nil, err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, fmt.Errorf("payload hash init failed: %w", err)
	}
	h.Write([]byte("bar-age-gate/intent/v1"))
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], segment)
	h.Write(idx[:])
	h.Write(canonical)
	return h.Sum(nil), nil
}

// SignTransaction signs every segment of the transaction and returns a new
// transaction with the session's signature applied to each input slot that
// does not already carry one. A slot signed by a different co-signer is
// preserved, never overwritten; signing an already-fully-signed transaction
// is therefore a no-op that yields identical bytes. Segments are processed
// independently and order does not affect the result.
func (s *Signer) SignTransaction(tx *ledger.Transaction) (*ledger.Transaction, error) {
	signed, err := tx.Clone()
	if err != nil {
		return nil, err
	}
	for _, seg := range signed.SegmentIndexes() {
		intent := signed.Intents[seg]
		payload, err := SigningPayload(seg, intent)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg, err)
		}
		sig, err := s.keyring.Sign(payload)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg, err)
		}
		for _, offer := range []*ledger.SpendOffer{intent.Guaranteed, intent.Fallible} {
			if offer == nil {
				continue
			}
			for i := range offer.Inputs {
				if len(offer.Inputs[i].Signature) == 0 {
					offer.Inputs[i].Signature = sig
				}
			}
		}
	}
	return signed, nil
}
