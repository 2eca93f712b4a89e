package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime settings for the lending daemon.
type Config struct {
	ListenAddress   string          `yaml:"listen"`
	Environment     string          `yaml:"env"`
	DataDir         string          `yaml:"data_dir"`
	GenesisPath     string          `yaml:"genesis"`
	BlockInterval   time.Duration   `yaml:"block_interval"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	EventBuffer     int             `yaml:"event_buffer"`
	TLS             TLSConfig       `yaml:"tls"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Log             LogConfig       `yaml:"log"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
}

// TLSConfig describes the TLS material for the HTTP server.
type TLSConfig struct {
	CertPath      string `yaml:"cert"`
	KeyPath       string `yaml:"key"`
	ClientCAPath  string `yaml:"client_ca"`
	AllowInsecure bool   `yaml:"allow_insecure"`
}

// AuthConfig lists the authenticators accepted for mutating requests.
type AuthConfig struct {
	APITokens []string       `yaml:"api_tokens"`
	MTLS      MTLSAuthConfig `yaml:"mtls"`
}

// MTLSAuthConfig enumerates the allowed client certificate identities.
type MTLSAuthConfig struct {
	AllowedCommonNames []string `yaml:"allowed_common_names"`
}

// RateLimitConfig throttles each client address.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// LogConfig selects the log level and an optional rotating file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig wires the OTLP exporters.
type TelemetryConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	Traces      bool              `yaml:"traces"`
	Metrics     bool              `yaml:"metrics"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

const (
	defaultListen          = ":8546"
	defaultDataDir         = "./lendingd-data"
	defaultGenesis         = "config.toml"
	defaultBlockInterval   = 5 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultEventBuffer     = 256
)

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	cfg := Config{ListenAddress: defaultListen}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg == nil {
		return
	}
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.GenesisPath = strings.TrimSpace(cfg.GenesisPath)
	if cfg.GenesisPath == "" {
		cfg.GenesisPath = defaultGenesis
	}
	if cfg.BlockInterval == 0 {
		cfg.BlockInterval = defaultBlockInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	cfg.TLS.normalize()
	cfg.Auth.normalize()
	cfg.Log.File = strings.TrimSpace(cfg.Log.File)
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
}

func (cfg *Config) validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.BlockInterval < 0 {
		return fmt.Errorf("block_interval must not be negative")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0, 1]")
	}
	if err := cfg.TLS.validate(); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if err := cfg.Auth.validate(cfg.TLS); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (cfg *TLSConfig) normalize() {
	if cfg == nil {
		return
	}
	cfg.CertPath = strings.TrimSpace(cfg.CertPath)
	cfg.KeyPath = strings.TrimSpace(cfg.KeyPath)
	cfg.ClientCAPath = strings.TrimSpace(cfg.ClientCAPath)
}

func (cfg TLSConfig) validate() error {
	hasCert := cfg.CertPath != ""
	hasKey := cfg.KeyPath != ""
	if hasCert != hasKey {
		return fmt.Errorf("cert and key must either both be provided or both be empty")
	}
	if !cfg.AllowInsecure && !hasCert {
		return fmt.Errorf("cert and key are required unless allow_insecure=true")
	}
	if cfg.ClientCAPath != "" && !hasCert {
		return fmt.Errorf("client_ca requires a server certificate and key")
	}
	return nil
}

// Enabled reports whether the server should terminate TLS.
func (cfg TLSConfig) Enabled() bool {
	return cfg.CertPath != "" && cfg.KeyPath != ""
}

// MTLSEnabled reports whether mutual TLS verification is configured.
func (cfg TLSConfig) MTLSEnabled() bool {
	return strings.TrimSpace(cfg.ClientCAPath) != ""
}

func (cfg *AuthConfig) normalize() {
	if cfg == nil {
		return
	}
	tokens := make([]string, 0, len(cfg.APITokens))
	for _, token := range cfg.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	cfg.APITokens = tokens

	names := make([]string, 0, len(cfg.MTLS.AllowedCommonNames))
	for _, name := range cfg.MTLS.AllowedCommonNames {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	cfg.MTLS.AllowedCommonNames = names
}

func (cfg AuthConfig) validate(tls TLSConfig) error {
	hasTokens := len(cfg.APITokens) > 0
	hasMTLS := len(cfg.MTLS.AllowedCommonNames) > 0
	if !hasTokens && !hasMTLS {
		return fmt.Errorf("at least one api token or mTLS common name must be configured")
	}
	if hasMTLS && strings.TrimSpace(tls.ClientCAPath) == "" {
		return fmt.Errorf("mtls.allowed_common_names requires tls.client_ca to be configured")
	}
	return nil
}
