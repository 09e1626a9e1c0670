// types.go - Transaction data model for the remote ledger.
//
// A transaction is a set of independently signable segments ("intents"),
// addressed by segment index. Each intent carries a guaranteed spend offer,
// an optional fallible (best-effort) offer, and optionally a contract call
// with its zero-knowledge proof. The wire encoding is canonical CBOR so that
// a segment's signable bytes are reproducible on every node.

package ledger

import (
	"fmt"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// TxHash identifies a submitted transaction on the ledger.
type TxHash string

// Utxo is an unspent output as reported by the indexer.
type Utxo struct {
	TxHash string `cbor:"1,keyasint" json:"tx_hash"`
	Index  uint32 `cbor:"2,keyasint" json:"index"`
	Value  uint64 `cbor:"3,keyasint" json:"value"`
	Owner  []byte `cbor:"4,keyasint" json:"owner"`
}

// UtxoSpend is an input consuming a Utxo. Signature is empty until the
// intent signer (or a co-signer) fills the slot; submission requires every
// slot to be populated.
type UtxoSpend struct {
	Utxo      Utxo   `cbor:"1,keyasint" json:"utxo"`
	Signature []byte `cbor:"2,keyasint,omitempty" json:"signature,omitempty"`
}

// Output sends value to a recipient public key.
type Output struct {
	Recipient []byte `cbor:"1,keyasint" json:"recipient"`
	Value     uint64 `cbor:"2,keyasint" json:"value"`
}

// SpendOffer groups the inputs and outputs of one side of an intent.
type SpendOffer struct {
	Inputs  []UtxoSpend `cbor:"1,keyasint,omitempty" json:"inputs,omitempty"`
	Outputs []Output    `cbor:"2,keyasint,omitempty" json:"outputs,omitempty"`
}

// ContractCall invokes a named circuit of a deployed contract. Proof is
// attached by the proof provider before signing.
type ContractCall struct {
	Address      string   `cbor:"1,keyasint" json:"address"`
	Circuit      string   `cbor:"2,keyasint" json:"circuit"`
	PublicInputs [][]byte `cbor:"3,keyasint,omitempty" json:"public_inputs,omitempty"`
	Proof        []byte   `cbor:"4,keyasint,omitempty" json:"proof,omitempty"`

	// Witness carries the private assignment consumed by the proof provider.
	// Never serialized: the signable encoding and the wire form exclude it.
	Witness interface{} `cbor:"-" json:"-"`
}

// ContractDeploy publishes a contract with its constructed initial state.
type ContractDeploy struct {
	Address      string `cbor:"1,keyasint" json:"address"`
	InitialState []byte `cbor:"2,keyasint" json:"initial_state"`
}

// Intent is one independently signable segment of a transaction.
type Intent struct {
	Guaranteed *SpendOffer     `cbor:"1,keyasint,omitempty" json:"guaranteed,omitempty"`
	Fallible   *SpendOffer     `cbor:"2,keyasint,omitempty" json:"fallible,omitempty"`
	Call       *ContractCall   `cbor:"3,keyasint,omitempty" json:"call,omitempty"`
	Deploy     *ContractDeploy `cbor:"4,keyasint,omitempty" json:"deploy,omitempty"`
}

// Transaction is a sequence of intents keyed by segment index plus an
// absolute expiry. It is submittable once the signer has filled every input
// slot.
type Transaction struct {
	Intents map[uint32]*Intent `cbor:"1,keyasint" json:"intents"`
	Expiry  int64              `cbor:"2,keyasint,omitempty" json:"expiry,omitempty"` // unix seconds
}

// NewTransaction creates a transaction with a single intent at segment 0.
func NewTransaction(intent *Intent) *Transaction {
	return &Transaction{Intents: map[uint32]*Intent{0: intent}}
}

// SegmentIndexes returns the intent indexes in ascending order.
func (tx *Transaction) SegmentIndexes() []uint32 {
	idx := make([]uint32, 0, len(tx.Intents))
	for i := range tx.Intents {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
	return idx
}

// MissingSignatures reports every input slot that is still unsigned, as
// "segment/offer/input" strings. Submission must be rejected while any slot
// is empty.
func (tx *Transaction) MissingSignatures() []string {
	var missing []string
	for _, seg := range tx.SegmentIndexes() {
		intent := tx.Intents[seg]
		for name, offer := range map[string]*SpendOffer{"guaranteed": intent.Guaranteed, "fallible": intent.Fallible} {
			if offer == nil {
				continue
			}
			for i, in := range offer.Inputs {
				if len(in.Signature) == 0 {
					missing = append(missing, fmt.Sprintf("%d/%s/%d", seg, name, i))
				}
			}
		}
	}
	sort.Strings(missing)
	return missing
}

// SetExpiry attaches an absolute time-to-live to the transaction.
func (tx *Transaction) SetExpiry(t time.Time) {
	tx.Expiry = t.Unix()
}

// canonical CBOR: deterministic map ordering so signable bytes are stable.
var encMode, _ = cbor.CanonicalEncOptions().EncMode()

// Encode serializes the transaction to canonical CBOR.
func (tx *Transaction) Encode() ([]byte, error) {
	b, err := encMode.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("transaction encode failed: %w", err)
	}
	return b, nil
}

// DecodeTransaction parses a canonical CBOR transaction.
func DecodeTransaction(b []byte) (*Transaction, error) {
	var tx Transaction
	if err := cbor.Unmarshal(b, &tx); err != nil {
		return nil, fmt.Errorf("transaction decode failed: %w", err)
	}
	return &tx, nil
}

// Clone deep-copies the transaction via a CBOR round trip. Signing operates
// on clones so no caller ever observes a half-signed transaction.
func (tx *Transaction) Clone() (*Transaction, error) {
	b, err := tx.Encode()
	if err != nil {
		return nil, err
	}
	return DecodeTransaction(b)
}

// EncodeIntent serializes a single intent to canonical CBOR.
func EncodeIntent(intent *Intent) ([]byte, error) {
	b, err := encMode.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("intent encode failed: %w", err)
	}
	return b, nil
}

// DecodeIntent parses a canonical CBOR intent.
func DecodeIntent(b []byte) (*Intent, error) {
	var intent Intent
	if err := cbor.Unmarshal(b, &intent); err != nil {
		return nil, fmt.Errorf("intent decode failed: %w", err)
	}
	return &intent, nil
}
