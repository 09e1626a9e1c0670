// compose.go - Building and balancing transactions from high-level intents.
//
// Composition produces an unsigned transaction from an intent (transfer or
// contract call); balancing selects inputs and change so the transaction
// nets to zero after fees and attaches a time-to-live. The two are separate
// because balancing may be retried while the dust balance replenishes,
// whereas signing must happen exactly once per finalized segment set.

package compose

import (
	"errors"
	"fmt"
	"time"

	"github.com/mrruby/bar-age-gate/internal/ledger"
	"github.com/mrruby/bar-age-gate/internal/wallet"
)

// ErrInsufficientFeeResource is the single recoverable balancing failure:
// the session's dust balance cannot cover the transaction fee yet. Callers
// retry on it within a bounded deadline; every other error is fatal.
var ErrInsufficientFeeResource = errors.New("insufficient fee resource (dust)")

// InsufficientFundsError is an input error: the wallet cannot cover the
// requested outputs at all. Never retried.
type InsufficientFundsError struct {
	Need uint64
	Have uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d, have %d unspent", e.Need, e.Have)
}

// FeePolicy prices a transaction in dust units.
type FeePolicy struct {
	Base      uint64
	PerInput  uint64
	PerOutput uint64
}

// DefaultFeePolicy matches the ledger's published fee schedule.
var DefaultFeePolicy = FeePolicy{Base: 100, PerInput: 10, PerOutput: 10}

// Fee computes the dust cost of a transaction under the policy.
func (p FeePolicy) Fee(tx *ledger.Transaction) uint64 {
	fee := p.Base
	for _, intent := range tx.Intents {
		for _, offer := range []*ledger.SpendOffer{intent.Guaranteed, intent.Fallible} {
			if offer == nil {
				continue
			}
			fee += p.PerInput * uint64(len(offer.Inputs))
			fee += p.PerOutput * uint64(len(offer.Outputs))
		}
	}
	return fee
}

// ChainClock is the slice of the indexer the composer needs: the ledger's
// notion of now, for computing a safety-margined expiry.
type ChainClock interface {
	ChainTime() (time.Time, error)
}

// BalancedRecipe is a balanced transaction ready for proving and signing.
type BalancedRecipe struct {
	Tx     *ledger.Transaction
	Fee    uint64
	Expiry time.Time
}

// Composer builds transactions against one session's wallet.
type Composer struct {
	Wallet *wallet.Wallet
	Chain  ChainClock
	Fees   FeePolicy
}

// New creates a composer over a wallet with the default fee policy.
func New(w *wallet.Wallet, chain ChainClock) *Composer {
	return &Composer{Wallet: w, Chain: chain, Fees: DefaultFeePolicy}
}

// BuildTransfer constructs an unsigned transaction moving value to one or
// more destinations, selecting unspent inputs in descending value order
// until the requested amount is covered.
func (c *Composer) BuildTransfer(outputs []ledger.Output) (*ledger.Transaction, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("transfer needs at least one output")
	}
	var need uint64
	for _, out := range outputs {
		need += out.Value
	}
	offer := &ledger.SpendOffer{Outputs: outputs}
	var covered uint64
	for _, u := range c.Wallet.Unspent() {
		if covered >= need {
			break
		}
		offer.Inputs = append(offer.Inputs, ledger.UtxoSpend{Utxo: u})
		covered += u.Value
	}
	if covered < need {
		return nil, &InsufficientFundsError{Need: need, Have: c.Wallet.Balance()}
	}
	return ledger.NewTransaction(&ledger.Intent{Guaranteed: offer}), nil
}

// BuildTransferFromInput constructs a transfer that consumes one specific
// output, used by flows that try candidate inputs in turn.
func (c *Composer) BuildTransferFromInput(input ledger.Utxo, outputs []ledger.Output) *ledger.Transaction {
	offer := &ledger.SpendOffer{
		Inputs:  []ledger.UtxoSpend{{Utxo: input}},
		Outputs: outputs,
	}
	return ledger.NewTransaction(&ledger.Intent{Guaranteed: offer})
}

// BuildContractCall wraps a circuit invocation into a transaction intent.
// The invocation has already run its witness-store operations locally; the
// proof is attached later by the proof provider.
func (c *Composer) BuildContractCall(call *ledger.ContractCall) (*ledger.Transaction, error) {
	if call == nil {
		return nil, fmt.Errorf("contract call is nil")
	}
	return ledger.NewTransaction(&ledger.Intent{
		Guaranteed: &ledger.SpendOffer{},
		Call:       call,
	}), nil
}

// BuildDeploy wraps a constructed contract deployment into a transaction
// intent.
func (c *Composer) BuildDeploy(deploy *ledger.ContractDeploy) (*ledger.Transaction, error) {
	if deploy == nil || deploy.Address == "" {
		return nil, fmt.Errorf("contract deploy is missing an address")
	}
	return ledger.NewTransaction(&ledger.Intent{
		Guaranteed: &ledger.SpendOffer{},
		Deploy:     deploy,
	}), nil
}

// Balance finalizes an unsigned transaction: checks the dust balance covers
// the fee, adds a change output returning any input surplus to the session's
// receive key, and attaches an expiry of chain time + ttl. Fails with
// ErrInsufficientFeeResource when the dust balance cannot cover costs; the
// caller retries that one error, nothing else.
func (c *Composer) Balance(tx *ledger.Transaction, changeTo []byte, ttl time.Duration) (*BalancedRecipe, error) {
	fee := c.Fees.Fee(tx)
	if c.Wallet.DustBalance < fee {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientFeeResource, fee, c.Wallet.DustBalance)
	}

	balanced, err := tx.Clone()
	if err != nil {
		return nil, err
	}
	// Clone drops private call assignments; carry them over for the prover.
	for seg, intent := range tx.Intents {
		if intent.Call != nil && balanced.Intents[seg].Call != nil {
			balanced.Intents[seg].Call.Witness = intent.Call.Witness
		}
	}

	for _, intent := range balanced.Intents {
		offer := intent.Guaranteed
		if offer == nil {
			continue
		}
		var in, out uint64
		for _, spend := range offer.Inputs {
			in += spend.Utxo.Value
		}
		for _, o := range offer.Outputs {
			out += o.Value
		}
		if in > out {
			offer.Outputs = append(offer.Outputs, ledger.Output{Recipient: changeTo, Value: in - out})
		}
	}

	now, err := c.Chain.ChainTime()
	if err != nil {
		return nil, fmt.Errorf("chain time query failed: %w", err)
	}
	expiry := now.Add(ttl)
	balanced.SetExpiry(expiry)

	return &BalancedRecipe{Tx: balanced, Fee: fee, Expiry: expiry}, nil
}
