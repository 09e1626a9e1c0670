// main.go - Command-line client for the age-gate contract.
//
// The client manages one session: a seeded keyring, a wallet synced from the
// indexer, and a private witness store. Commands:
//
//	deploy               deploy the age-gate contract and save its address
//	register <id> <age>  commit an identity's age on-chain
//	prove-adult <id>     prove the committed age meets the threshold
//	status <id>          read the on-chain status for an identity
//	register-dust        register an output as a fee resource
//	balance              show the synced wallet balance
//	doctor               check connectivity and the deployment record
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrruby/bar-age-gate/internal/contract/agegate"
	"github.com/mrruby/bar-age-gate/internal/keys"
	"github.com/mrruby/bar-age-gate/internal/status"
	"github.com/mrruby/bar-age-gate/internal/witness"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "agegate",
		Short:         "Privacy-preserving age verification client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "agegate.json", "path to the config file")

	root.AddCommand(deployCmd(), registerCmd(), proveAdultCmd(), statusCmd(), registerDustCmd(), balanceCmd(), doctorCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openSession loads config and wires a session for a command run.
func openSession(withProver bool) (*Session, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewSession(cfg, withProver)
}

func deployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the age-gate contract and record its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SyncWallet(); err != nil {
				return err
			}
			deployer := s.Keyring.PublicKey(keys.RoleSpend)
			rec, err := s.Pipeline.Deploy(agegate.AgeGate{}, deployer, time.Now().UTC())
			if err != nil {
				return err
			}
			if err := rec.Save(s.Config.DeploymentPath); err != nil {
				return err
			}
			fmt.Printf("deployed age-gate at %s (tx %s)\n", rec.ContractAddress, rec.TxHash)
			return nil
		},
	}
}

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <identity> <age>",
		Short: "Commit an identity's age on-chain without revealing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("age must be a non-negative integer: %w", err)
			}
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()
			address, err := s.ContractAddress()
			if err != nil {
				return err
			}
			if err := s.SyncWallet(); err != nil {
				return err
			}
			key := witness.NewCommitmentKey(s.Config.Domain, args[0])
			call, err := agegate.BuildRegisterCall(address, s.Witness, key, age)
			if err != nil {
				return err
			}
			tx, err := s.Pipeline.Composer.BuildContractCall(call)
			if err != nil {
				return err
			}
			hash, err := s.Pipeline.Submit(tx, s.Keyring.PublicKey(keys.RoleReceive))
			if err != nil {
				return err
			}
			if _, err := s.WaitForStatus(address, key, func(st status.ClientStatus) bool {
				return st.Registered
			}); err != nil {
				return fmt.Errorf("submitted as %s but the indexer has not shown the registration: %w", hash, err)
			}
			fmt.Printf("registered %s (tx %s)\n", args[0], hash)
			return nil
		},
	}
}

func proveAdultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prove-adult <identity>",
		Short: "Prove a registered identity meets the age threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(true)
			if err != nil {
				return err
			}
			defer s.Close()
			address, err := s.ContractAddress()
			if err != nil {
				return err
			}
			if err := s.SyncWallet(); err != nil {
				return err
			}
			key := witness.NewCommitmentKey(s.Config.Domain, args[0])
			call, err := agegate.BuildProveAdultCall(address, s.Witness, key)
			if err != nil {
				return err
			}
			tx, err := s.Pipeline.Composer.BuildContractCall(call)
			if err != nil {
				return err
			}
			hash, err := s.Pipeline.Submit(tx, s.Keyring.PublicKey(keys.RoleReceive))
			if err != nil {
				return err
			}
			if _, err := s.WaitForStatus(address, key, func(st status.ClientStatus) bool {
				return st.AdultVerified
			}); err != nil {
				return fmt.Errorf("submitted as %s but the indexer has not shown the permit: %w", hash, err)
			}
			fmt.Printf("adult proof accepted for %s (tx %s)\n", args[0], hash)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <identity>",
		Short: "Read the on-chain status for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			address, err := s.ContractAddress()
			if err != nil {
				return err
			}
			key := witness.NewCommitmentKey(s.Config.Domain, args[0])
			st, err := s.Reader.Read(address, key)
			if err != nil {
				return err
			}
			fmt.Printf("identity:       %s\n", args[0])
			fmt.Printf("registered:     %v\n", st.Registered)
			fmt.Printf("adult verified: %v\n", st.AdultVerified)
			fmt.Printf("call counter:   %d\n", st.CounterValue)
			return nil
		},
	}
}

func registerDustCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register-dust",
		Short: "Register an unspent output as a fee resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SyncWallet(); err != nil {
				return err
			}
			hash, err := s.Pipeline.RegisterDust(s.Keyring.PublicKey(keys.RoleDust))
			if err != nil {
				return err
			}
			fmt.Printf("dust registration accepted (tx %s)\n", hash)
			return nil
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the synced wallet balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.SyncWallet(); err != nil {
				return err
			}
			fmt.Printf("unspent outputs: %d\n", len(s.Wallet.Unspent()))
			fmt.Printf("balance:         %d\n", s.Wallet.Balance())
			fmt.Printf("dust balance:    %d\n", s.Wallet.DustBalance)
			fmt.Printf("synced height:   %d / %d\n", s.Wallet.SyncedHeight, s.Wallet.TipHeight)
			return nil
		},
	}
}
