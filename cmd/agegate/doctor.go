// doctor.go - Connectivity and session health checks
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrruby/bar-age-gate/internal/pipeline"
)

// componentCheck is one named probe with its outcome.
type componentCheck struct {
	name    string
	latency time.Duration
	err     error
}

func runChecks(s *Session) []componentCheck {
	probes := []struct {
		name  string
		probe func() error
	}{
		{"indexer chain time", func() error {
			_, err := s.Client.ChainTime()
			return err
		}},
		{"indexer wallet view", func() error {
			_, err := s.Client.WalletSnapshot(s.Wallet.Owner)
			return err
		}},
		{"deployment record", func() error {
			_, err := pipeline.LoadDeploymentRecord(s.Config.DeploymentPath)
			return err
		}},
		{"contract state", func() error {
			rec, err := pipeline.LoadDeploymentRecord(s.Config.DeploymentPath)
			if err != nil {
				return err
			}
			_, _, err = s.Client.ContractState(rec.ContractAddress)
			return err
		}},
	}

	checks := make([]componentCheck, 0, len(probes))
	for _, p := range probes {
		start := time.Now()
		err := p.probe()
		checks = append(checks, componentCheck{name: p.name, latency: time.Since(start), err: err})
	}
	return checks
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check connectivity to the indexer, node, and deployment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			failed := 0
			for _, c := range runChecks(s) {
				if c.err != nil {
					failed++
					fmt.Printf("FAIL  %-22s %v\n", c.name, c.err)
					continue
				}
				fmt.Printf("ok    %-22s %s\n", c.name, c.latency.Round(time.Millisecond))
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Println("all checks passed")
			return nil
		},
	}
}
