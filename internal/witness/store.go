// store.go - Private witness store bridging off-chain data to on-chain commitments.
//
// The store maps a commitment key (a one-way hash of a stable public
// identifier) to the private record behind it. Circuit execution consults and
// mutates the store during local proof construction; only a commitment derived
// from a record ever reaches the chain. The store is the single component that
// knows the private payload behind a public commitment.
//
// NOTE: Store is not thread-safe by itself; each session owns its own instance.

package witness

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"
)

// CommitmentKey is the hex-encoded, domain-separated hash of a public
// identifier. Deterministic and collision-resistant for distinct identifiers
// within one domain.
type CommitmentKey string

// NewCommitmentKey derives the commitment key for an identifier within a
// domain. The domain tag keeps keys from different deployments disjoint.
func NewCommitmentKey(domain, identifier string) CommitmentKey {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("bar-age-gate/commitment-key/v1/"))
	h.Write([]byte(domain))
	h.Write([]byte{0})
	h.Write([]byte(identifier))
	return CommitmentKey(hex.EncodeToString(h.Sum(nil)))
}

// PrivateRecord is a private fact held off-chain, e.g. a person's age.
// Never transmitted on-chain; only a commitment over (Value, Salt) is.
type PrivateRecord struct {
	Value uint64   `json:"value"`
	Salt  [32]byte `json:"salt"`
}

// NewPrivateRecord builds a record for a value with fresh random salt.
// A failed entropy read is an error, never a zero salt: the commitment over
// (Value, Salt) is only hiding if the salt is unpredictable.
func NewPrivateRecord(value uint64) (PrivateRecord, error) {
	var rec PrivateRecord
	rec.Value = value
	if _, err := rand.Read(rec.Salt[:]); err != nil {
		return PrivateRecord{}, fmt.Errorf("witness salt generation failed: %w", err)
	}
	return rec, nil
}

// PublicAux carries the values a circuit needs re-exposed at proof time,
// currently just the salt used when the record was committed.
type PublicAux struct {
	Salt [32]byte
}

// Bridge is the capability a circuit-execution engine holds on a witness
// store. A party only ever receives a Bridge over its own private data; see
// Restricted for the instantiation handed to everyone else.
type Bridge interface {
	Store(key CommitmentKey, rec PrivateRecord) error
	Load(key CommitmentKey) (PrivateRecord, PublicAux, error)
}

// Store is the in-memory witness state for one session.
type Store struct {
	records map[CommitmentKey]PrivateRecord
}

// NewStore creates an empty witness store.
func NewStore() *Store {
	return &Store{records: make(map[CommitmentKey]PrivateRecord)}
}

// Store inserts or overwrites the record at key, leaving every other entry
// unchanged. No external I/O.
func (s *Store) Store(key CommitmentKey, rec PrivateRecord) error {
	s.records[key] = rec
	return nil
}

// Load returns the record stored at key together with the auxiliary public
// values the circuit re-exposes. Fails with MissingRecordError if the key was
// never stored; a record is never synthesized.
func (s *Store) Load(key CommitmentKey) (PrivateRecord, PublicAux, error) {
	rec, ok := s.records[key]
	if !ok {
		return PrivateRecord{}, PublicAux{}, &MissingRecordError{Key: key}
	}
	return rec, PublicAux{Salt: rec.Salt}, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	return len(s.records)
}

// SaveToFile persists the store to a JSON file. Overwrites the file if it
// exists.
func (s *Store) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("witness store save failed: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s.records)
}

// LoadStoreFromFile loads a previously saved witness store.
func LoadStoreFromFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("witness store load failed: %w", err)
	}
	defer f.Close()
	s := NewStore()
	if err := json.NewDecoder(f).Decode(&s.records); err != nil {
		return nil, fmt.Errorf("witness store decode failed: %w", err)
	}
	return s, nil
}
