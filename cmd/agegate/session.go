// session.go - Wiring a client session from configuration
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrruby/bar-age-gate/internal/compose"
	"github.com/mrruby/bar-age-gate/internal/contract/agegate"
	"github.com/mrruby/bar-age-gate/internal/keys"
	"github.com/mrruby/bar-age-gate/internal/ledger"
	"github.com/mrruby/bar-age-gate/internal/pipeline"
	"github.com/mrruby/bar-age-gate/internal/poll"
	"github.com/mrruby/bar-age-gate/internal/sign"
	"github.com/mrruby/bar-age-gate/internal/status"
	"github.com/mrruby/bar-age-gate/internal/wallet"
	"github.com/mrruby/bar-age-gate/internal/witness"
)

// Session is one fully wired client: keys, wallet, witness store, ledger
// client, prover, and the submission pipeline.
type Session struct {
	Config   *Config
	Log      zerolog.Logger
	Keyring  *keys.Keyring
	Wallet   *wallet.Wallet
	Witness  *witness.Store
	Client   *ledger.Client
	Pipeline *pipeline.Pipeline
	Reader   *status.Reader
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

// loadOrCreateSeed reads the session seed, generating and persisting a fresh
// one on first use.
func loadOrCreateSeed(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("seed file %s is not valid hex: %w", path, err)
		}
		return seed, nil
	}
	seed := make([]byte, keys.SeedLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("seed generation failed: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, fmt.Errorf("seed save failed: %w", err)
	}
	return seed, nil
}

// NewSession wires a session from configuration. The Groth16 prover is only
// constructed when withProver is set; read-only commands skip the expensive
// circuit compilation.
func NewSession(cfg *Config, withProver bool) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := newLogger(cfg.LogLevel)

	seed, err := loadOrCreateSeed(cfg.SeedPath)
	if err != nil {
		return nil, err
	}
	bundle, err := keys.DeriveRoleKeys(seed)
	if err != nil {
		return nil, err
	}
	keyring := keys.NewKeyring(bundle)

	w, err := wallet.Load(cfg.WalletPath)
	if err != nil {
		w = wallet.New("session", keyring.PublicKey(keys.RoleSpend))
	}
	store, err := witness.LoadStoreFromFile(cfg.WitnessPath)
	if err != nil {
		store = witness.NewStore()
	}

	client := ledger.NewClient(cfg.IndexerURL, cfg.NodeURL)

	s := &Session{
		Config:  cfg,
		Log:     log,
		Keyring: keyring,
		Wallet:  w,
		Witness: store,
		Client:  client,
	}
	s.Pipeline = &pipeline.Pipeline{
		Composer:  compose.New(w, client),
		Prover:    pipeline.NopProver{},
		Signer:    sign.New(keyring),
		Submitter: client,
		Indexer:   client,
		Clock:     poll.SystemClock{},
		Config: pipeline.Config{
			BalanceInterval: time.Duration(cfg.BalanceIntervalSeconds) * time.Second,
			BalanceDeadline: time.Duration(cfg.BalanceDeadlineSeconds) * time.Second,
			TTL:             time.Duration(cfg.TTLMinutes) * time.Minute,
		},
		Log: log,
	}
	if withProver {
		log.Info().Str("key_dir", cfg.KeyDir).Msg("compiling circuits and loading proving keys")
		prover, err := agegate.NewProver(cfg.KeyDir)
		if err != nil {
			return nil, fmt.Errorf("prover setup failed: %w", err)
		}
		s.Pipeline.Prover = prover
	}
	s.Reader, err = status.NewReader(client, agegate.AgeGate{})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SyncWallet refreshes the wallet from the indexer, waiting until the
// indexer has caught up with the chain tip.
func (s *Session) SyncWallet() error {
	snap, err := poll.Until(s.Pipeline.Clock, "indexer to reach the chain tip",
		func() (ledger.WalletSnapshot, error) { return s.Client.WalletSnapshot(s.Wallet.Owner) },
		ledger.WalletSnapshot.Synced,
		time.Duration(s.Config.BalanceIntervalSeconds)*time.Second,
		time.Duration(s.Config.BalanceDeadlineSeconds)*time.Second)
	if err != nil {
		return err
	}
	s.Wallet.Refresh(snap)
	return nil
}

// WaitForStatus polls the contract status reader until pred holds, using the
// session's configured poll bounds.
func (s *Session) WaitForStatus(address string, key witness.CommitmentKey, pred func(status.ClientStatus) bool) (status.ClientStatus, error) {
	return s.Reader.Wait(s.Pipeline.Clock, address, key, pred,
		time.Duration(s.Config.BalanceIntervalSeconds)*time.Second,
		time.Duration(s.Config.BalanceDeadlineSeconds)*time.Second)
}

// ContractAddress resolves the deployed contract address from the persisted
// deployment record.
func (s *Session) ContractAddress() (string, error) {
	rec, err := pipeline.LoadDeploymentRecord(s.Config.DeploymentPath)
	if err != nil {
		return "", fmt.Errorf("no deployment record; run deploy first: %w", err)
	}
	return rec.ContractAddress, nil
}

// Close persists the mutable session state and zeroes the keys.
func (s *Session) Close() {
	if err := s.Wallet.Save(s.Config.WalletPath); err != nil {
		s.Log.Error().Err(err).Msg("wallet save failed")
	}
	if err := s.Witness.SaveToFile(s.Config.WitnessPath); err != nil {
		s.Log.Error().Err(err).Msg("witness store save failed")
	}
	s.Keyring.Close()
}
