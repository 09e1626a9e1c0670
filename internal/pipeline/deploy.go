// deploy.go - Deploying a contract module and recording where it landed.

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mrruby/bar-age-gate/internal/contract"
	"github.com/mrruby/bar-age-gate/internal/ledger"
)

// DeploymentRecord is the durable handle to a deployed contract, written
// after a successful deploy so later sessions can find the contract again.
type DeploymentRecord struct {
	ContractAddress string    `json:"contract_address"`
	TxHash          string    `json:"tx_hash"`
	DeployedAt      time.Time `json:"deployed_at"`
}

// Save writes the record as JSON.
func (r *DeploymentRecord) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("deployment record encode failed: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("deployment record write failed: %w", err)
	}
	return nil
}

// LoadDeploymentRecord reads a record written by Save.
func LoadDeploymentRecord(path string) (*DeploymentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deployment record read failed: %w", err)
	}
	var r DeploymentRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("deployment record decode failed: %w", err)
	}
	return &r, nil
}

// Deploy constructs a module's initial state, derives its address, and
// submits the deployment through the full pipeline. The deployer key both
// derives the address and receives change.
func (p *Pipeline) Deploy(module contract.Module, deployer []byte, now time.Time) (*DeploymentRecord, error) {
	initial, err := module.InitialState(contract.ConstructorContext{Deployer: deployer, DeployedAt: now})
	if err != nil {
		return nil, fmt.Errorf("initial state construction failed: %w", err)
	}
	address := contract.DeriveAddress(deployer, initial)

	tx, err := p.Composer.BuildDeploy(&ledger.ContractDeploy{Address: address, InitialState: initial})
	if err != nil {
		return nil, err
	}
	hash, err := p.Submit(tx, deployer)
	if err != nil {
		return nil, err
	}
	p.Log.Info().Str("contract_address", address).Str("tx_hash", string(hash)).Msg("contract deployed")
	return &DeploymentRecord{ContractAddress: address, TxHash: string(hash), DeployedAt: now}, nil
}
