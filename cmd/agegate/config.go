// config.go - Configuration management for the age-gate client
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the client configuration
type Config struct {
	// Ledger endpoints
	IndexerURL string `json:"indexer_url"`
	NodeURL    string `json:"node_url"`

	// Contract deployment domain, part of every commitment key
	Domain string `json:"domain"`

	// File paths
	SeedPath       string `json:"seed_path"`
	WalletPath     string `json:"wallet_path"`
	WitnessPath    string `json:"witness_path"`
	KeyDir         string `json:"key_dir"`
	DeploymentPath string `json:"deployment_path"`

	// Logging
	LogLevel string `json:"log_level"`

	// Submission bounds
	BalanceIntervalSeconds int `json:"balance_interval_seconds"`
	BalanceDeadlineSeconds int `json:"balance_deadline_seconds"`
	TTLMinutes             int `json:"ttl_minutes"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		IndexerURL:             "http://localhost:8600",
		NodeURL:                "http://localhost:8601",
		Domain:                 "bar",
		SeedPath:               "seed.hex",
		WalletPath:             "wallet.json",
		WitnessPath:            "witness.json",
		KeyDir:                 "keys",
		DeploymentPath:         "deployment.json",
		LogLevel:               "info",
		BalanceIntervalSeconds: 5,
		BalanceDeadlineSeconds: 120,
		TTLMinutes:             30,
	}
}

// LoadConfig loads configuration from file or creates the default. Endpoint
// values may be overridden through AGEGATE_INDEXER_URL and AGEGATE_NODE_URL.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}

	if v := os.Getenv("AGEGATE_INDEXER_URL"); v != "" {
		config.IndexerURL = v
	}
	if v := os.Getenv("AGEGATE_NODE_URL"); v != "" {
		config.NodeURL = v
	}
	if v := os.Getenv("AGEGATE_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.IndexerURL == "" {
		return fmt.Errorf("indexer_url must be set")
	}
	if c.NodeURL == "" {
		return fmt.Errorf("node_url must be set")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain must be set")
	}
	if c.BalanceIntervalSeconds <= 0 {
		return fmt.Errorf("balance_interval_seconds must be positive")
	}
	if c.BalanceDeadlineSeconds <= 0 {
		return fmt.Errorf("balance_deadline_seconds must be positive")
	}
	if c.TTLMinutes <= 0 {
		return fmt.Errorf("ttl_minutes must be positive")
	}
	return nil
}
