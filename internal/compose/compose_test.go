package compose

import (
	"errors"
	"testing"
	"time"

	"github.com/mrruby/bar-age-gate/internal/ledger"
	"github.com/mrruby/bar-age-gate/internal/wallet"
)

type fakeChain struct {
	now time.Time
}

func (f fakeChain) ChainTime() (time.Time, error) { return f.now, nil }

func fundedWallet(dust uint64, values ...uint64) *wallet.Wallet {
	w := wallet.New("test", []byte{2})
	snap := ledger.WalletSnapshot{SyncedHeight: 1, TipHeight: 1, DustBalance: dust}
	for i, v := range values {
		snap.Utxos = append(snap.Utxos, ledger.Utxo{TxHash: "t", Index: uint32(i), Value: v})
	}
	w.Refresh(snap)
	return w
}

func TestBuildTransferSelectsLargestInputsFirst(t *testing.T) {
	c := New(fundedWallet(1000, 5, 100, 40), fakeChain{})
	tx, err := c.BuildTransfer([]ledger.Output{{Recipient: []byte{3}, Value: 120}})
	if err != nil {
		t.Fatalf("BuildTransfer failed: %v", err)
	}
	inputs := tx.Intents[0].Guaranteed.Inputs
	if len(inputs) != 2 {
		t.Fatalf("expected 2 inputs, got %d", len(inputs))
	}
	if inputs[0].Utxo.Value != 100 || inputs[1].Utxo.Value != 40 {
		t.Errorf("inputs not selected in descending order: %+v", inputs)
	}
}

func TestBuildTransferInsufficientFunds(t *testing.T) {
	c := New(fundedWallet(1000, 10), fakeChain{})
	_, err := c.BuildTransfer([]ledger.Output{{Recipient: []byte{3}, Value: 120}})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if insufficient.Need != 120 || insufficient.Have != 10 {
		t.Errorf("error should carry need/have: %+v", insufficient)
	}
}

func TestBalanceZeroDustFailsWithFeeResourceError(t *testing.T) {
	c := New(fundedWallet(0, 500), fakeChain{now: time.Unix(1000, 0)})
	tx, err := c.BuildTransfer([]ledger.Output{{Recipient: []byte{3}, Value: 100}})
	if err != nil {
		t.Fatalf("BuildTransfer failed: %v", err)
	}
	_, err = c.Balance(tx, []byte{2}, time.Hour)
	if !errors.Is(err, ErrInsufficientFeeResource) {
		t.Fatalf("zero dust must fail with ErrInsufficientFeeResource, got %v", err)
	}
}

func TestBalanceAddsChangeAndExpiry(t *testing.T) {
	now := time.Unix(5000, 0)
	c := New(fundedWallet(10000, 500), fakeChain{now: now})
	tx, err := c.BuildTransfer([]ledger.Output{{Recipient: []byte{3}, Value: 120}})
	if err != nil {
		t.Fatalf("BuildTransfer failed: %v", err)
	}
	recipe, err := c.Balance(tx, []byte{9}, time.Hour)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}

	outputs := recipe.Tx.Intents[0].Guaranteed.Outputs
	if len(outputs) != 2 {
		t.Fatalf("expected destination + change outputs, got %d", len(outputs))
	}
	change := outputs[1]
	if change.Value != 380 || change.Recipient[0] != 9 {
		t.Errorf("wrong change output: %+v", change)
	}
	if recipe.Tx.Expiry != now.Add(time.Hour).Unix() {
		t.Errorf("expiry not chain time + ttl: %d", recipe.Tx.Expiry)
	}
	// The original transaction is untouched.
	if len(tx.Intents[0].Guaranteed.Outputs) != 1 {
		t.Errorf("Balance mutated its input transaction")
	}
}

func TestBalancePreservesCallWitness(t *testing.T) {
	c := New(fundedWallet(10000), fakeChain{now: time.Unix(1, 0)})
	call := &ledger.ContractCall{Address: "addr", Circuit: "register", Witness: "assignment"}
	tx, err := c.BuildContractCall(call)
	if err != nil {
		t.Fatalf("BuildContractCall failed: %v", err)
	}
	recipe, err := c.Balance(tx, []byte{2}, time.Minute)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if recipe.Tx.Intents[0].Call.Witness != "assignment" {
		t.Errorf("private assignment lost during balancing")
	}
}
