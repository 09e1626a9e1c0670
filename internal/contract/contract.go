// contract.go - Capability contract for compiled circuit modules.
//
// A deployed contract artifact is opaque to the core: the client only needs
// its initial-state constructor, its typed ledger view, and the names of the
// circuits it can be called with. Instead of assuming those capabilities
// exist and failing on a late field access, every module declares a Manifest
// and Load validates it once up front, failing fast with MissingCapability.

package contract

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DeriveAddress computes the deterministic address of a contract deployment
// from the deployer key and the constructed initial state.
func DeriveAddress(deployer, initialState []byte) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte("bar-age-gate/contract-address/v1"))
	h.Write(deployer)
	h.Write(initialState)
	return hex.EncodeToString(h.Sum(nil)[:20])
}

// Manifest declares the capabilities a circuit module exports.
type Manifest struct {
	Name     string
	Circuits []string // callable circuit names
	Mappings []string // named public mappings exposed by the ledger view
}

// ConstructorContext is passed to a module's initial-state constructor.
type ConstructorContext struct {
	Deployer   []byte
	DeployedAt time.Time
}

// Mapping is the typed accessor over one named public mapping. An absent key
// in a lookup-only mapping is the type's zero value, never an error.
type Mapping interface {
	Member(key string) bool
	Lookup(key string) uint64
}

// View is the typed ledger view decoded from a contract's public state.
type View interface {
	Mapping(name string) (Mapping, bool)
}

// Module is the interface every compiled circuit module must satisfy.
type Module interface {
	Manifest() Manifest
	InitialState(ctx ConstructorContext) ([]byte, error)
	LedgerView(state []byte) (View, error)
}

// MissingCapabilityError reports a capability a module was expected to
// export but does not declare.
type MissingCapabilityError struct {
	Module     string
	Kind       string // "circuit" or "mapping"
	Capability string
}

func (e *MissingCapabilityError) Error() string {
	return fmt.Sprintf("contract module %q does not export %s %q", e.Module, e.Kind, e.Capability)
}

// Requirements names the circuits and mappings a caller depends on.
type Requirements struct {
	Circuits []string
	Mappings []string
}

// Load validates a module's manifest against the caller's requirements.
// Called once when the module is wired up, so a missing capability surfaces
// before any transaction is composed against it.
func Load(m Module, req Requirements) error {
	manifest := m.Manifest()
	if manifest.Name == "" {
		return fmt.Errorf("contract module manifest has no name")
	}
	have := func(list []string, want string) bool {
		for _, s := range list {
			if s == want {
				return true
			}
		}
		return false
	}
	for _, c := range req.Circuits {
		if !have(manifest.Circuits, c) {
			return &MissingCapabilityError{Module: manifest.Name, Kind: "circuit", Capability: c}
		}
	}
	for _, mp := range req.Mappings {
		if !have(manifest.Mappings, mp) {
			return &MissingCapabilityError{Module: manifest.Name, Kind: "mapping", Capability: mp}
		}
	}
	return nil
}
