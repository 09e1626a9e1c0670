// client.go - External service contracts and their HTTP clients.
//
// The core only needs three collaborators over the network: an indexer for
// eventually-consistent chain state, a submission endpoint, and (optionally)
// a remote proof service. Each is specified as an interface here; the HTTP
// implementations speak plain JSON. Tests substitute in-memory fakes.

package ledger

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WalletSnapshot is the indexer's view of one owner's funds and how far the
// indexer has caught up for that owner.
type WalletSnapshot struct {
	Utxos        []Utxo `json:"utxos"`
	DustBalance  uint64 `json:"dust_balance"`
	SyncedHeight uint64 `json:"synced_height"`
	TipHeight    uint64 `json:"tip_height"`
}

// Synced reports whether the snapshot reflects the chain tip.
func (s WalletSnapshot) Synced() bool {
	return s.TipHeight > 0 && s.SyncedHeight >= s.TipHeight
}

// Indexer queries the asynchronously indexed public view of the chain.
// All operations are pure reads; retry and poll semantics live in callers.
type Indexer interface {
	// ContractState returns the latest indexed state blob for a contract
	// address, or ok=false if the indexer has no state for it yet.
	ContractState(address string) (state []byte, ok bool, err error)

	// WalletSnapshot returns the indexed funds view for an owner key.
	WalletSnapshot(owner []byte) (WalletSnapshot, error)

	// ChainTime returns the ledger's current notion of time, used to compute
	// a safety-margined transaction expiry.
	ChainTime() (time.Time, error)
}

// Submitter submits a fully signed transaction. A ledger-side rejection is
// surfaced as *SubmitError; transport failures as plain errors.
type Submitter interface {
	Submit(tx *Transaction) (TxHash, error)
}

// ProofProvider attaches proofs to every contract call in a transaction,
// returning a provable transaction. Implementations may be remote services
// or a local prover.
type ProofProvider interface {
	Prove(tx *Transaction) (*Transaction, error)
}

// Client talks JSON over HTTP to an indexer/node pair. Outbound requests
// pass through a token-bucket throttle so polling loops cannot flood the
// endpoints.
type Client struct {
	IndexerURL string
	NodeURL    string
	HTTP       *http.Client
	Throttle   *Throttle
}

// NewClient creates a client for the given endpoints with a sane timeout.
func NewClient(indexerURL, nodeURL string) *Client {
	return &Client{
		IndexerURL: indexerURL,
		NodeURL:    nodeURL,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
		Throttle:   NewThrottle(20, 100*time.Millisecond),
	}
}

type contractStateResponse struct {
	Present bool   `json:"present"`
	State   []byte `json:"state,omitempty"`
}

// ContractState implements Indexer.
func (c *Client) ContractState(address string) ([]byte, bool, error) {
	var resp contractStateResponse
	if err := c.getJSON(fmt.Sprintf("%s/contract/%s/state", c.IndexerURL, address), &resp); err != nil {
		return nil, false, err
	}
	if !resp.Present {
		return nil, false, nil
	}
	return resp.State, true, nil
}

// WalletSnapshot implements Indexer.
func (c *Client) WalletSnapshot(owner []byte) (WalletSnapshot, error) {
	var snap WalletSnapshot
	url := fmt.Sprintf("%s/wallet/%s", c.IndexerURL, base64.URLEncoding.EncodeToString(owner))
	if err := c.getJSON(url, &snap); err != nil {
		return WalletSnapshot{}, err
	}
	return snap, nil
}

type chainTimeResponse struct {
	Unix int64 `json:"unix"`
}

// ChainTime implements Indexer.
func (c *Client) ChainTime() (time.Time, error) {
	var resp chainTimeResponse
	if err := c.getJSON(c.IndexerURL+"/chain/time", &resp); err != nil {
		return time.Time{}, err
	}
	return time.Unix(resp.Unix, 0), nil
}

type submitResponse struct {
	TxHash  string `json:"tx_hash,omitempty"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Submit implements Submitter. A non-2xx response with a rejection body is
// decoded into a structured *SubmitError.
func (c *Client) Submit(tx *Transaction) (TxHash, error) {
	if missing := tx.MissingSignatures(); len(missing) > 0 {
		return "", &SubmitError{Code: RejectMissingSignature,
			Message: fmt.Sprintf("unsigned input slots: %v", missing)}
	}
	raw, err := tx.Encode()
	if err != nil {
		return "", err
	}
	if c.Throttle != nil {
		c.Throttle.Wait()
	}
	httpResp, err := c.HTTP.Post(c.NodeURL+"/submit", "application/cbor", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("submit request failed: %w", err)
	}
	defer httpResp.Body.Close()
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("submit response read failed: %w", err)
	}
	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("submit response decode failed: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", &SubmitError{Code: RejectionCode(resp.Code), Message: resp.Message}
	}
	return TxHash(resp.TxHash), nil
}

// getJSON fetches a URL and decodes the JSON body into out.
func (c *Client) getJSON(url string, out interface{}) error {
	if c.Throttle != nil {
		c.Throttle.Wait()
	}
	resp, err := c.HTTP.Get(url)
	if err != nil {
		return fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("indexer returned status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("indexer response decode failed: %w", err)
	}
	return nil
}
