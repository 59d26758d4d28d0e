package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds user-level configuration loaded from
// ~/.config/lattice/config.toml.
type Config struct {
	Daemon    DaemonConfig    `toml:"daemon"`
	Extractor ExtractorConfig `toml:"extractor"`
	Vault     VaultConfig     `toml:"vault"`
}

// DaemonConfig configures the daemon address shared by server and clients.
type DaemonConfig struct {
	Port int `toml:"port"`
}

// ExtractorConfig configures the external concept extraction service.
type ExtractorConfig struct {
	URL   string `toml:"url"`
	Model string `toml:"model"`
	// ReviewThreshold marks extracted concepts below this confidence as
	// needing review.
	ReviewThreshold float64 `toml:"review_threshold"`
}

// VaultConfig configures markdown export.
type VaultConfig struct {
	Dir string `toml:"dir"`
}

func defaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{Port: 2840},
		Extractor: ExtractorConfig{
			URL:             "http://localhost:11434",
			Model:           "concept-extractor",
			ReviewThreshold: 0.7,
		},
	}
}

// loadConfig reads ~/.config/lattice/config.toml with defaults applied for
// missing fields. A missing file is not an error.
func loadConfig() (*Config, error) {
	cfg := defaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home dir: %w", err)
	}
	path := filepath.Join(home, ".config", "lattice", "config.toml")

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults re-fills fields the config file left empty.
func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.Daemon.Port == 0 {
		cfg.Daemon.Port = def.Daemon.Port
	}
	if cfg.Extractor.URL == "" {
		cfg.Extractor.URL = def.Extractor.URL
	}
	if cfg.Extractor.Model == "" {
		cfg.Extractor.Model = def.Extractor.Model
	}
	if cfg.Extractor.ReviewThreshold == 0 {
		cfg.Extractor.ReviewThreshold = def.Extractor.ReviewThreshold
	}
}

// stateDir returns ~/.local/state/lattice, creating it on first use.
func stateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	dir := filepath.Join(home, ".local", "state", "lattice")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return dir, nil
}

// vaultDir resolves the export directory: config value or
// ~/.local/state/lattice/vault.
func vaultDir(cfg *Config) (string, error) {
	if cfg.Vault.Dir != "" {
		return cfg.Vault.Dir, nil
	}
	state, err := stateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "vault"), nil
}
