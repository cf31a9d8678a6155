package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values. propd and propctl load a
// .env file before calling Load, so these may also come from there.
const (
	EnvDataDir        = "PROPCHAIN_DATA_DIR"
	EnvStorageBackend = "PROPCHAIN_STORAGE_BACKEND"
	EnvEnvironment    = "PROPCHAIN_ENV"
	EnvLogLevel       = "PROPCHAIN_LOG_LEVEL"
)

// DefaultEscrowVault holds custodied escrow funds unless configured otherwise.
const DefaultEscrowVault = "0x000000000000000000000000000000000000e5c0"

type Config struct {
	DataDir        string    `toml:"DataDir" yaml:"dataDir" validate:"required"`
	StorageBackend string    `toml:"StorageBackend" yaml:"storageBackend" validate:"oneof=memory leveldb bolt"`
	EventLogPath   string    `toml:"EventLogPath" yaml:"eventLogPath"`
	MetricsAddress string    `toml:"MetricsAddress" yaml:"metricsAddress" validate:"omitempty,hostname_port"`
	QueryRateLimit float64   `toml:"QueryRateLimit" yaml:"queryRateLimit" validate:"gte=0"`
	QueryBurst     int       `toml:"QueryBurst" yaml:"queryBurst" validate:"gte=0"`
	Environment    string    `toml:"Environment" yaml:"environment"`
	LogFile        string    `toml:"LogFile" yaml:"logFile"`
	LogLevel       string    `toml:"LogLevel" yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
	EscrowVault    string    `toml:"EscrowVault" yaml:"escrowVault" validate:"required,eth_addr"`
	PausedModules  []string  `toml:"PausedModules" yaml:"pausedModules" validate:"dive,oneof=ownership lease verification escrow"`
	Pricing        Pricing   `toml:"Pricing" yaml:"pricing"`
	Telemetry      Telemetry `toml:"Telemetry" yaml:"telemetry"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		DataDir:        "./propchain-data",
		StorageBackend: "leveldb",
		MetricsAddress: "127.0.0.1:9464",
		QueryRateLimit: 20,
		QueryBurst:     40,
		Environment:    "local",
		LogLevel:       "info",
		EscrowVault:    DefaultEscrowVault,
		PausedModules:  []string{},
		Pricing:        DefaultPricing(),
	}
}

// Load reads the configuration at path, creating a default file when none
// exists. Files ending in .yaml or .yml are decoded as YAML, anything else as
// TOML. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return finish(cfg)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	for i, module := range cfg.PausedModules {
		cfg.PausedModules[i] = strings.ToLower(strings.TrimSpace(module))
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		key    string
		target *string
	}{
		{EnvDataDir, &cfg.DataDir},
		{EnvStorageBackend, &cfg.StorageBackend},
		{EnvEnvironment, &cfg.Environment},
		{EnvLogLevel, &cfg.LogLevel},
	}
	for _, o := range overrides {
		if value, ok := os.LookupEnv(o.key); ok && strings.TrimSpace(value) != "" {
			*o.target = strings.TrimSpace(value)
		}
	}
}

// StatePath is the on-disk location of the state database for the
// configured backend. It is empty for the memory backend.
func (c *Config) StatePath() string {
	switch c.StorageBackend {
	case "leveldb":
		return filepath.Join(c.DataDir, "state")
	case "bolt":
		return filepath.Join(c.DataDir, "state.bolt")
	default:
		return ""
	}
}

// EventLogDSN resolves the event log location, defaulting to events.db under
// the data directory.
func (c *Config) EventLogDSN() string {
	if path := strings.TrimSpace(c.EventLogPath); path != "" {
		return path
	}
	return filepath.Join(c.DataDir, "events.db")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
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

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
