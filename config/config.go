package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/crypto"

	"moneymarket/native/lending"
)

// Config is the protocol configuration: network identity, operator pauses,
// per-account quotas and the lending genesis.
type Config struct {
	NetworkName  string          `toml:"NetworkName"`
	AdminKeyPath string          `toml:"AdminKeyPath"`
	Pauses       Pauses          `toml:"pauses"`
	Quota        Quota           `toml:"quota"`
	Lending      lending.Genesis `toml:"lending"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration with a freshly generated admin key.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0].String())
	}

	if strings.TrimSpace(cfg.Lending.Comptroller.Admin) == "" {
		if err := ensureAdminKey(path, cfg); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "moneymarket-local"
	}
	if err := ValidateConfig(*cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// ensureAdminKey derives the comptroller admin from the admin key, generating
// the key on first use.
func ensureAdminKey(configPath string, cfg *Config) error {
	keyPath := cfg.AdminKeyPath
	if keyPath == "" {
		keyPath = defaultKeyPath(configPath)
	}

	key, err := crypto.LoadECDSA(keyPath)
	if os.IsNotExist(err) {
		if key, err = crypto.GenerateKey(); err != nil {
			return err
		}
		if err := crypto.SaveECDSA(keyPath, key); err != nil {
			return fmt.Errorf("save admin key: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("load admin key: %w", err)
	}

	cfg.Lending.Comptroller.Admin = crypto.PubkeyToAddress(key.PublicKey).Hex()
	if cfg.AdminKeyPath != keyPath {
		cfg.AdminKeyPath = keyPath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		NetworkName: "moneymarket-local",
		Quota:       Quota{EpochSeconds: 3600},
		Lending: lending.Genesis{
			Comptroller: lending.ComptrollerGenesis{
				CloseFactor:          "0.5",
				LiquidationIncentive: "1.08",
			},
		},
	}
	if err := ensureAdminKey(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeyPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "admin.key")
}
