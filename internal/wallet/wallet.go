// wallet.go - Local wallet state for one session.
//
// The wallet tracks the session's spendable outputs, spent markers, dust
// balance, and how far it has caught up with the indexer. It is persisted as
// a JSON file per session owner, and refreshed from the indexer's snapshot
// view rather than by scanning the chain itself.
//
// NOTE: Wallet is not thread-safe by itself; each session owns its own
// instance and sessions share no mutable state.

package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mrruby/bar-age-gate/internal/ledger"
)

// Wallet is the session-local funds view.
type Wallet struct {
	Name         string        `json:"name"`
	Owner        []byte        `json:"owner"` // compressed spend public key
	Utxos        []ledger.Utxo `json:"utxos"`
	Spent        []bool        `json:"spent"` // parallel to Utxos
	DustBalance  uint64        `json:"dust_balance"`
	SyncedHeight uint64        `json:"synced_height"`
	TipHeight    uint64        `json:"tip_height"`
}

// New creates an empty wallet for an owner key.
func New(name string, owner []byte) *Wallet {
	return &Wallet{Name: name, Owner: owner}
}

// Load reads a wallet from a JSON file. Spent markers are parallel to the
// output list; a file that breaks that invariant (truncated write, older
// format) is rejected rather than risking a wrong spent decision.
func Load(path string) (*Wallet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var w Wallet
	if err := json.NewDecoder(f).Decode(&w); err != nil {
		return nil, fmt.Errorf("wallet decode failed: %w", err)
	}
	if len(w.Spent) != len(w.Utxos) {
		return nil, fmt.Errorf("wallet file %s is corrupt: %d outputs but %d spent markers",
			path, len(w.Utxos), len(w.Spent))
	}
	return &w, nil
}

// Save writes the wallet to a JSON file.
func (w *Wallet) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(w)
}

// Refresh replaces the wallet's funds view with the indexer's snapshot.
// Locally spent outputs that the indexer still reports (submission not yet
// indexed) stay marked as spent so they are not offered twice.
func (w *Wallet) Refresh(snap ledger.WalletSnapshot) {
	spentKeys := make(map[string]bool)
	for i, u := range w.Utxos {
		if w.Spent[i] {
			spentKeys[utxoKey(u)] = true
		}
	}
	w.Utxos = snap.Utxos
	w.Spent = make([]bool, len(snap.Utxos))
	for i, u := range snap.Utxos {
		if spentKeys[utxoKey(u)] {
			w.Spent[i] = true
		}
	}
	w.DustBalance = snap.DustBalance
	w.SyncedHeight = snap.SyncedHeight
	w.TipHeight = snap.TipHeight
}

// Synced reports whether the last refresh reflected the chain tip.
func (w *Wallet) Synced() bool {
	return w.TipHeight > 0 && w.SyncedHeight >= w.TipHeight
}

// Unspent returns the spendable outputs in descending value order, largest
// first, which is also the candidate order for fee-resource registration.
func (w *Wallet) Unspent() []ledger.Utxo {
	var out []ledger.Utxo
	for i, u := range w.Utxos {
		if !w.Spent[i] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Value > out[b].Value })
	return out
}

// Balance returns the total value of unspent outputs.
func (w *Wallet) Balance() uint64 {
	var total uint64
	for i, u := range w.Utxos {
		if !w.Spent[i] {
			total += u.Value
		}
	}
	return total
}

// MarkSpent marks an output as consumed so it is not offered again before
// the next refresh.
func (w *Wallet) MarkSpent(u ledger.Utxo) {
	key := utxoKey(u)
	for i, have := range w.Utxos {
		if utxoKey(have) == key {
			w.Spent[i] = true
			return
		}
	}
}

func utxoKey(u ledger.Utxo) string {
	return fmt.Sprintf("%s:%d", u.TxHash, u.Index)
}
