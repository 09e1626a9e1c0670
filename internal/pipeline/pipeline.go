// pipeline.go - The submission state machine.
//
// One submission attempt runs COMPOSE -> BALANCE -> PROVE -> SIGN -> SUBMIT
// strictly in sequence. Exactly one failure is recoverable inside the
// machine: balancing that fails for lack of dust loops back after a poll
// interval (the dust balance accrues over time) until an overall deadline.
// Every other failure from balancing, proving, or submission aborts the
// attempt: a blind retry there could double-spend or leak a partial proof.

package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrruby/bar-age-gate/internal/compose"
	"github.com/mrruby/bar-age-gate/internal/ledger"
	"github.com/mrruby/bar-age-gate/internal/poll"
	"github.com/mrruby/bar-age-gate/internal/sign"
)

// NopProver passes transactions through unchanged. Used by flows that carry
// no contract calls (transfers, deployments, dust registration).
type NopProver struct{}

func (NopProver) Prove(tx *ledger.Transaction) (*ledger.Transaction, error) { return tx, nil }

// NoCandidateAcceptedError is returned by RegisterDust when every candidate
// input was rejected as ineligible.
type NoCandidateAcceptedError struct {
	Attempts int
}

func (e *NoCandidateAcceptedError) Error() string {
	return fmt.Sprintf("no dust registration candidate accepted after %d attempts", e.Attempts)
}

// Config bounds the pipeline's waits.
type Config struct {
	BalanceInterval time.Duration // poll cadence while dust accrues
	BalanceDeadline time.Duration // overall bound on the balance retry loop
	TTL             time.Duration // transaction time-to-live past chain time
}

// DefaultConfig returns the default pipeline bounds.
func DefaultConfig() Config {
	return Config{
		BalanceInterval: 5 * time.Second,
		BalanceDeadline: 2 * time.Minute,
		TTL:             30 * time.Minute,
	}
}

// Pipeline wires the session's composer, prover, signer, and ledger
// endpoints into one submission flow.
type Pipeline struct {
	Composer  *compose.Composer
	Prover    ledger.ProofProvider
	Signer    *sign.Signer
	Submitter ledger.Submitter
	Indexer   ledger.Indexer
	Clock     poll.Clock
	Config    Config
	Log       zerolog.Logger
}

// Submit balances, proves, signs, and submits a composed transaction,
// sending change to changeTo. Balancing retries on insufficient dust within
// the configured deadline; all other failures abort.
func (p *Pipeline) Submit(tx *ledger.Transaction, changeTo []byte) (ledger.TxHash, error) {
	recipe, err := p.balanceWithRetry(tx, changeTo)
	if err != nil {
		return "", err
	}
	p.Log.Debug().Uint64("fee", recipe.Fee).Time("expiry", recipe.Expiry).Msg("transaction balanced")

	proved, err := p.Prover.Prove(recipe.Tx)
	if err != nil {
		return "", fmt.Errorf("prove stage failed: %w", err)
	}

	signed, err := p.Signer.SignTransaction(proved)
	if err != nil {
		return "", fmt.Errorf("sign stage failed: %w", err)
	}

	hash, err := p.Submitter.Submit(signed)
	if err != nil {
		return "", fmt.Errorf("submit stage failed: %w", err)
	}
	p.Log.Info().Str("tx_hash", string(hash)).Msg("transaction submitted")
	p.markInputsSpent(signed)
	return hash, nil
}

// balanceWithRetry polls the balance step until the dust balance covers the
// fee or the deadline elapses. Between attempts the wallet is refreshed from
// the indexer so newly accrued dust is visible.
func (p *Pipeline) balanceWithRetry(tx *ledger.Transaction, changeTo []byte) (*compose.BalancedRecipe, error) {
	attempt := 0
	source := func() (*compose.BalancedRecipe, error) {
		if attempt > 0 {
			snap, err := p.Indexer.WalletSnapshot(p.Composer.Wallet.Owner)
			if err != nil {
				return nil, fmt.Errorf("wallet refresh failed: %w", err)
			}
			p.Composer.Wallet.Refresh(snap)
		}
		attempt++
		recipe, err := p.Composer.Balance(tx, changeTo, p.Config.TTL)
		if errors.Is(err, compose.ErrInsufficientFeeResource) {
			p.Log.Debug().Int("attempt", attempt).Msg("dust balance insufficient, waiting")
			return nil, nil
		}
		return recipe, err
	}
	return poll.Until(p.Clock, "dust balance to cover the transaction fee", source,
		func(r *compose.BalancedRecipe) bool { return r != nil },
		p.Config.BalanceInterval, p.Config.BalanceDeadline)
}

// RegisterDust submits a fee-resource-registration transaction, trying
// candidate inputs in descending value order. A rejection with the
// fee-ineligible-input code means the candidate is structurally unusable
// (already registered) and the next one is tried; any other failure is
// fatal. Returns NoCandidateAcceptedError once the list is exhausted.
func (p *Pipeline) RegisterDust(registerTo []byte) (ledger.TxHash, error) {
	candidates := p.Composer.Wallet.Unspent()
	if len(candidates) == 0 {
		return "", fmt.Errorf("no unspent outputs available for dust registration")
	}
	attempts := 0
	for _, candidate := range candidates {
		attempts++
		tx := p.Composer.BuildTransferFromInput(candidate, []ledger.Output{
			{Recipient: registerTo, Value: candidate.Value},
		})
		hash, err := p.Submit(tx, registerTo)
		if err == nil {
			return hash, nil
		}
		if code, ok := ledger.RejectionOf(err); ok && code.Recoverable() {
			p.Log.Warn().
				Str("utxo", fmt.Sprintf("%s:%d", candidate.TxHash, candidate.Index)).
				Stringer("code", code).
				Msg("candidate ineligible for dust registration, trying next")
			continue
		}
		return "", err
	}
	return "", &NoCandidateAcceptedError{Attempts: attempts}
}

// markInputsSpent marks every consumed input in the local wallet so it is
// not offered again before the indexer catches up.
func (p *Pipeline) markInputsSpent(tx *ledger.Transaction) {
	for _, intent := range tx.Intents {
		for _, offer := range []*ledger.SpendOffer{intent.Guaranteed, intent.Fallible} {
			if offer == nil {
				continue
			}
			for _, in := range offer.Inputs {
				p.Composer.Wallet.MarkSpent(in.Utxo)
			}
		}
	}
}
